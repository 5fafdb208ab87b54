// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// sblflash - Serial Bootloader Flashing Client
//
// A CLI tool for writing firmware images through a serial bootloader over a
// serial port or a WebSocket bridge.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/sblflash/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cmd.ExitCode(err))
}
