// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display bootloader frames in human-readable format",
	Long: `Continuously decode and display bootloader frames as they arrive.

Both requests and replies are shown, with timestamp, direction, command and
decoded payload. Bytes between frames are skipped and frames that fail their
FCS are reported. Nothing is ever sent.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorTUI     bool
	monitorShowAll bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Show live counters and events instead of a frame log")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "List every frame in the TUI event log, not just failures")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// a passive reader waits for traffic indefinitely
	cfg.Timeout = 0

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if monitorTUI {
		return runMonitorTUI(conn, connInfo)
	}

	fmt.Printf("sblflash - Frame Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := sbl.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if errors.Is(err, ErrReadTimeout) {
			continue
		}
		if err != nil {
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(err, ErrConnectionClosed) {
				logger.Info("Connection closed")
				return nil
			}
			return withExitCode(ExitUsage, errors.Wrap(err, "read failed"))
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame != nil {
				fmt.Print(sbl.FormatFrame(frame))
			}
		}
	}
}
