// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sblflash/internal/journal"
)

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show past flashing runs",
	Long: `Print the flash journal, newest run last.

Every flash run records the connection, the image and its SHA-256, how far
the write got and how the run ended. The journal file is set with the
[flash] journal key of the config file or --journal on the flash command.`,
	Args: cobra.NoArgs,
	RunE: runJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Show at most this many runs (0 for all)")
}

func runJournal(cmd *cobra.Command, args []string) error {
	path, err := journalPath()
	if err != nil {
		return withExitCode(ExitUsage, err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return withExitCode(ExitUsage, err)
	}

	records, err := j.ReadAll()
	if err != nil {
		logger.WithError(err).Warn("journal is damaged, showing intact records")
	}

	if len(records) == 0 {
		fmt.Printf("No runs recorded in %s\n", path)
		return nil
	}

	if journalLimit > 0 && len(records) > journalLimit {
		records = records[len(records)-journalLimit:]
	}

	for _, r := range records {
		fmt.Println(formatRecord(r))
	}
	return nil
}

func formatRecord(r journal.Record) string {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	outcomeStyle := errorStyle
	if r.Outcome == journal.OutcomeSuccess {
		outcomeStyle = okStyle
	}

	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s %s\n",
		headerStyle.Render(r.Time.Format("2006-01-02 15:04:05")),
		outcomeStyle.Render(strings.ToUpper(r.Outcome)),
		headerStyle.Render("("+humanize.Time(r.Time)+")"),
	))
	s.WriteString(fmt.Sprintf("  Image:  %s (%s, sha256 %s)\n",
		r.Image, humanize.IBytes(uint64(r.Size)), shortHash(r.SHA256)))
	s.WriteString(fmt.Sprintf("  Conn:   %s\n", r.Port))

	written := fmt.Sprintf("  Blocks: %d/%d written", r.BlocksWritten, r.Blocks)
	if r.LastOffset >= 0 {
		written += fmt.Sprintf(", last offset 0x%06X", r.LastOffset)
	}
	if r.Verified {
		written += ", verified"
	}
	if r.Enabled {
		written += ", enabled"
	}
	s.WriteString(written + "\n")

	if r.Error != "" {
		s.WriteString(fmt.Sprintf("  Error:  %s\n", r.Error))
	}
	return s.String()
}

func shortHash(sum []byte) string {
	h := hex.EncodeToString(sum)
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
