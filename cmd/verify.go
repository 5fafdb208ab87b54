// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

var verifyCmd = &cobra.Command{
	Use:   "verify FIRMWARE",
	Short: "Compare flash contents with a firmware image",
	Long: `Handshake with the bootloader and read every block of FIRMWARE back,
comparing it byte for byte. The zero padding of the final block is compared
too. The first difference is reported with its image offset.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	image, err := readImage(args[0])
	if err != nil {
		return err
	}

	conn, connInfo, session, err := openSession()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)

	progress := newBarProgress()

	progress.Phase("Handshake", 1)
	if _, err := session.Handshake(cfg.Wait); err != nil {
		return err
	}
	progress.Advance()

	progress.Phase("Verifying", sbl.BlockCount(len(image)))
	for offset, err := range session.VerifyImage(image) {
		if err != nil {
			return errors.Wrapf(err, "block at 0x%06X", offset)
		}
		progress.Advance()
	}

	fmt.Printf("Verify: %s matches\n", args[0])
	return nil
}
