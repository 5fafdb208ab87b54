// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the image already in flash",
	Long: `Handshake with the bootloader and tell it to run the flashed image.

Use after "flash --no-enable" once the image has been checked.`,
	Args: cobra.NoArgs,
	RunE: runEnable,
}

func init() {
	rootCmd.AddCommand(enableCmd)
}

func runEnable(cmd *cobra.Command, args []string) error {
	conn, connInfo, session, err := openSession()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	if _, err := session.Handshake(cfg.Wait); err != nil {
		return err
	}

	status, err := session.Enable()
	if err != nil {
		return err
	}

	fmt.Printf("Enable: %s\n", status)
	return nil
}
