// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long:  `List the serial ports found on this host, with USB details where known.`,
	Args:  cobra.NoArgs,
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return withExitCode(ExitUsage, errors.Wrap(err, "failed to list serial ports"))
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	for _, port := range ports {
		fmt.Println(formatPort(port))
	}
	return nil
}

func formatPort(port *enumerator.PortDetails) string {
	if !port.IsUSB {
		return port.Name
	}

	result := fmt.Sprintf("%s  USB %s:%s", port.Name, port.VID, port.PID)
	if port.SerialNumber != "" {
		result += fmt.Sprintf("  serial %s", port.SerialNumber)
	}
	if port.Product != "" {
		result += fmt.Sprintf("  (%s)", port.Product)
	}
	return result
}
