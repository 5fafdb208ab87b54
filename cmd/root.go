// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/sblflash/internal/config"
	"github.com/Thermoquad/sblflash/internal/logging"
)

var (
	configPath string

	// Serial connection flags
	portName    string
	baudRate    int
	readTimeout time.Duration

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel  string
	logFormat string
)

var (
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sblflash",
	Short: "Serial bootloader flashing client",
	Long: `sblflash - Flash firmware images through the serial bootloader.

The host announces itself with a handshake, writes the image in 64 byte
blocks and finally tells the bootloader to run the new image.

Connection modes:
  Serial:    --port /dev/ttyO4 [--baud 115200] [--timeout 10s]
  WebSocket: --url ws://host/path [--username user]

Settings can also be read from an ini file given with --config; flags given
on the command line take precedence.

For WebSocket authentication, the password is read from the SBL_PASSWORD
environment variable, or prompted interactively if not set.

Exit codes:
  0 - Success
  1 - Handshake, write, verify or enable failed, or the device broke protocol
  2 - Connection, configuration or file error`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an ini config file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", config.DefaultPort, "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", config.DefaultBaud, "Baud rate (serial only)")
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "timeout", config.DefaultTimeout, "Read timeout for each reply")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
}

// loadConfig builds cfg from the config file and the flags that were set
func loadConfig(cmd *cobra.Command, args []string) error {
	iniConf := config.Default()
	if configPath != "" {
		var err error
		if iniConf, err = config.LoadIniFile(configPath); err != nil {
			return withExitCode(ExitUsage, err)
		}
	}

	applyFlagOverrides(cmd, iniConf)

	var err error
	if cfg, err = config.NewConfig(iniConf); err != nil {
		return withExitCode(ExitUsage, errors.Wrap(err, "invalid configuration"))
	}

	logger = logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(log.Fields{
		"config": configPath,
		"port":   cfg.Port,
		"url":    cfg.URL,
	}).Debug("configuration loaded")
	return nil
}

// applyFlagOverrides copies explicitly set flags over the file values
func applyFlagOverrides(cmd *cobra.Command, iniConf *config.IniConfig) {
	flags := cmd.Flags()

	if flags.Changed("port") {
		iniConf.Serial.Port = portName
	}
	if flags.Changed("baud") {
		iniConf.Serial.Baud = baudRate
	}
	if flags.Changed("timeout") {
		iniConf.Serial.Timeout = readTimeout
	}
	if flags.Changed("url") {
		iniConf.WebSocket.URL = wsURL
	}
	if flags.Changed("username") {
		iniConf.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		iniConf.WebSocket.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("log-level") {
		iniConf.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		iniConf.Log.Format = logFormat
	}

	// flash flags are local to the flash command
	if flags.Changed("wait") {
		iniConf.Flash.Wait = flashWait
	}
	if flags.Changed("verify") {
		iniConf.Flash.Verify = flashVerify
	}
	if flags.Changed("journal") {
		iniConf.Flash.Journal = flashJournal
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
