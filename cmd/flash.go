// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/sblflash/internal/journal"
	"github.com/Thermoquad/sblflash/pkg/sbl"
)

var (
	flashWait      int
	flashVerify    bool
	flashNoEnable  bool
	flashTUI       bool
	flashJournal   string
	flashNoJournal bool
)

var flashCmd = &cobra.Command{
	Use:   "flash FIRMWARE",
	Short: "Write a firmware image and start it",
	Long: `Handshake with the bootloader, write FIRMWARE in 64 byte blocks and
tell the bootloader to run it.

The final block is padded with zero bytes. The image is addressed in 32-bit
words with a 16-bit offset, so images larger than 256 KiB are rejected.

Nothing is retried: the first failed exchange aborts the run and blocks that
were already written stay written. Each run is appended to the flash journal
(see the journal command) unless --no-journal is given.

Examples:
  sblflash flash --port /dev/ttyO4 app.bin
  sblflash flash --url ws://bridge.local/sbl --verify app.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runFlash,
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().IntVar(&flashWait, "wait", sbl.DefaultHandshakeWait, "Handshake wait byte")
	flashCmd.Flags().BoolVar(&flashVerify, "verify", false, "Read the image back before enabling it")
	flashCmd.Flags().BoolVar(&flashNoEnable, "no-enable", false, "Do not start the image after writing")
	flashCmd.Flags().BoolVar(&flashTUI, "tui", term.IsTerminal(int(os.Stdout.Fd())), "Use terminal UI (false for plain progress)")
	flashCmd.Flags().StringVar(&flashJournal, "journal", "", "Flash journal file (default in the user cache directory)")
	flashCmd.Flags().BoolVar(&flashNoJournal, "no-journal", false, "Do not record this run in the journal")
}

// flashProgress receives progress from a flashJob
type flashProgress interface {
	// Phase starts a new step of total units
	Phase(name string, total int)
	// Advance marks one unit of the current phase done
	Advance()
	// Log reports a line of status text
	Log(msg string)
}

// flashJob runs the handshake, write, verify and enable sequence
type flashJob struct {
	session *sbl.Session
	image   []byte
	wait    byte
	verify  bool
	enable  bool
	record  *journal.Record
}

func (j *flashJob) run(progress flashProgress) error {
	progress.Phase("Handshake", 1)
	if _, err := j.session.Handshake(j.wait); err != nil {
		return err
	}
	progress.Advance()
	progress.Log("Bootloader answered handshake")

	blocks := sbl.BlockCount(len(j.image))
	j.record.Blocks = blocks

	progress.Phase("Writing", blocks)
	for offset, err := range j.session.WriteImage(j.image) {
		if err != nil {
			return errors.Wrapf(err, "block at 0x%06X", offset)
		}
		j.record.BlocksWritten++
		j.record.LastOffset = offset
		progress.Advance()
	}
	progress.Log(fmt.Sprintf("Wrote %d blocks (%s)", blocks, humanize.IBytes(uint64(len(j.image)))))

	if j.verify {
		progress.Phase("Verifying", blocks)
		for offset, err := range j.session.VerifyImage(j.image) {
			if err != nil {
				return errors.Wrapf(err, "block at 0x%06X", offset)
			}
			progress.Advance()
		}
		j.record.Verified = true
		progress.Log("Image verified")
	}

	if j.enable {
		progress.Phase("Enabling", 1)
		if _, err := j.session.Enable(); err != nil {
			return err
		}
		progress.Advance()
		j.record.Enabled = true
		progress.Log("Image enabled")
	}

	return nil
}

func runFlash(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	image, err := readImage(imagePath)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	record := journal.NewRecord(connInfo, imagePath, image)
	stats := sbl.NewStatistics()
	session := sbl.NewSession(conn,
		sbl.WithLogger(logger.WithField("conn", connInfo)),
		sbl.WithObserver(stats.Observe),
	)

	job := &flashJob{
		session: session,
		image:   image,
		wait:    cfg.Wait,
		verify:  cfg.Verify,
		enable:  !flashNoEnable,
		record:  &record,
	}

	logger.WithFields(log.Fields{
		"image":  imagePath,
		"size":   len(image),
		"blocks": sbl.BlockCount(len(image)),
	}).Info("flashing")

	if flashTUI {
		err = runFlashTUI(job, connInfo, conn)
	} else {
		fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
		err = job.run(newBarProgress())
	}

	record.Outcome = outcome(err)
	if err != nil {
		record.Error = err.Error()
	}
	if !flashNoJournal {
		appendJournal(record)
	}

	fmt.Fprint(os.Stderr, "\n"+stats.String())

	if err != nil {
		return err
	}
	logger.Info("flash complete")
	return nil
}

// readImage loads and validates a firmware image
func readImage(path string) ([]byte, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, withExitCode(ExitUsage, errors.Wrap(err, "failed to read firmware"))
	}

	for _, f := range sbl.ValidateImage(image) {
		if f.Fatal {
			return nil, withExitCode(ExitUsage, errors.Wrap(&f, path))
		}
		logger.WithFields(log.Fields(f.Details)).Warn(f.Message)
	}

	return image, nil
}

// appendJournal records a run; failing to do so only warns
func appendJournal(record journal.Record) {
	path, err := journalPath()
	if err != nil {
		logger.WithError(err).Warn("cannot locate flash journal")
		return
	}

	j, err := journal.Open(path)
	if err == nil {
		err = j.Append(record)
	}
	if err != nil {
		logger.WithError(err).Warn("failed to record flash journal entry")
		return
	}
	logger.WithField("journal", path).Debug("recorded flash run")
}

func journalPath() (string, error) {
	if cfg.Journal != "" {
		return cfg.Journal, nil
	}
	return journal.DefaultPath()
}

// barProgress renders progress with a plain progress bar on stderr
type barProgress struct {
	bar *progressbar.ProgressBar
}

func newBarProgress() *barProgress {
	return &barProgress{}
}

func (b *barProgress) Phase(name string, total int) {
	b.finish()
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("%-10s", name)),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}

func (b *barProgress) Advance() {
	if b.bar != nil {
		b.bar.Add(1)
	}
}

func (b *barProgress) Log(msg string) {
	logger.Info(msg)
}

func (b *barProgress) finish() {
	if b.bar != nil && !b.bar.IsFinished() {
		b.bar.Finish()
	}
}
