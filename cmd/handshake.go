// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Check that the bootloader is waiting for a host",
	Long: `Send a single handshake and report the bootloader's status.

Useful to check wiring and baud rate before flashing. A bootloader that
accepts the handshake stays in update mode.`,
	Args: cobra.NoArgs,
	RunE: runHandshake,
}

func init() {
	rootCmd.AddCommand(handshakeCmd)
	handshakeCmd.Flags().IntVar(&flashWait, "wait", sbl.DefaultHandshakeWait, "Handshake wait byte")
}

// openSession opens the configured connection and starts a session on it
func openSession() (Connection, string, *sbl.Session, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, "", nil, err
	}

	session := sbl.NewSession(conn, sbl.WithLogger(logger.WithField("conn", connInfo)))
	return conn, connInfo, session, nil
}

func runHandshake(cmd *cobra.Command, args []string) error {
	conn, connInfo, session, err := openSession()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	status, err := session.Handshake(cfg.Wait)
	if err != nil {
		return err
	}

	fmt.Printf("Handshake: %s\n", status)
	return nil
}
