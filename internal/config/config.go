// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads sblflash settings from an ini file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

// Defaults match the serial settings the bootloader ships with
const (
	DefaultPort    = "/dev/ttyO4"
	DefaultBaud    = 115200
	DefaultTimeout = 10 * time.Second
)

type SerialSection struct {
	Port    string        `ini:"port"`
	Baud    int           `ini:"baud"`
	Timeout time.Duration `ini:"timeout"`
}

type WebSocketSection struct {
	URL         string `ini:"url"`
	Username    string `ini:"username"`
	NoSSLVerify bool   `ini:"no_ssl_verify"`
}

type LogSection struct {
	Level  string `ini:"level"`
	Format string `ini:"format"`
}

type FlashSection struct {
	Wait    int    `ini:"wait"`
	Verify  bool   `ini:"verify"`
	Journal string `ini:"journal"`
}

// IniConfig mirrors the sections of the config file
type IniConfig struct {
	Serial    SerialSection    `ini:"serial"`
	WebSocket WebSocketSection `ini:"websocket"`
	Log       LogSection       `ini:"log"`
	Flash     FlashSection     `ini:"flash"`
}

// Config is the validated configuration used by the commands
type Config struct {
	Port    string
	Baud    int
	Timeout time.Duration

	URL         string
	Username    string
	NoSSLVerify bool

	LogLevel  log.Level
	LogFormat string

	Wait    byte
	Verify  bool
	Journal string
}

// Default returns the settings used when no config file is given
func Default() *IniConfig {
	return &IniConfig{
		Serial: SerialSection{
			Port:    DefaultPort,
			Baud:    DefaultBaud,
			Timeout: DefaultTimeout,
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
		Flash: FlashSection{
			Wait: sbl.DefaultHandshakeWait,
		},
	}
}

// LoadIniFile reads path over the defaults. Keys missing from the file keep
// their default values.
func LoadIniFile(path string) (*IniConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ini")
	}

	iniConf := Default()
	if err := f.MapTo(iniConf); err != nil {
		return nil, errors.Wrap(err, "failed to map ini struct")
	}

	log.WithFields(log.Fields{
		"path": path,
	}).Debug("read and parse ini file")
	return iniConf, nil
}

// NewConfig validates iniConf and resolves derived values
func NewConfig(iniConf *IniConfig) (*Config, error) {
	level, err := log.ParseLevel(iniConf.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log level")
	}

	format := strings.ToLower(iniConf.Log.Format)
	if format != "text" && format != "json" {
		return nil, errors.Errorf("invalid log format %q (want text or json)", iniConf.Log.Format)
	}

	if iniConf.Serial.Baud <= 0 {
		return nil, errors.Errorf("invalid baud rate %d", iniConf.Serial.Baud)
	}
	if iniConf.Serial.Timeout <= 0 {
		return nil, errors.Errorf("invalid read timeout %s", iniConf.Serial.Timeout)
	}

	if iniConf.Flash.Wait < 0 || iniConf.Flash.Wait > 0xFF {
		return nil, errors.Errorf("handshake wait %d does not fit in a byte", iniConf.Flash.Wait)
	}

	journal, err := ExpandHome(iniConf.Flash.Journal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve journal path")
	}

	return &Config{
		Port:        iniConf.Serial.Port,
		Baud:        iniConf.Serial.Baud,
		Timeout:     iniConf.Serial.Timeout,
		URL:         iniConf.WebSocket.URL,
		Username:    iniConf.WebSocket.Username,
		NoSSLVerify: iniConf.WebSocket.NoSSLVerify,
		LogLevel:    level,
		LogFormat:   format,
		Wait:        byte(iniConf.Flash.Wait),
		Verify:      iniConf.Flash.Verify,
		Journal:     journal,
	}, nil
}

// ExpandHome replaces a leading ~/ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
