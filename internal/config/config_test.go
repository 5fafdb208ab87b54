// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func writeIni(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sblflash.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewConfig(Default())
	if err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	if c.Port != "/dev/ttyO4" || c.Baud != 115200 || c.Timeout != 10*time.Second {
		t.Errorf("unexpected serial defaults: %+v", c)
	}
	if c.Wait != 2 {
		t.Errorf("Wait = %d, want 2", c.Wait)
	}
	if c.LogLevel != log.InfoLevel || c.LogFormat != "text" {
		t.Errorf("unexpected log defaults: %s %s", c.LogLevel, c.LogFormat)
	}
}

func TestLoadIniFile(t *testing.T) {
	path := writeIni(t, `
[serial]
port = /dev/ttyUSB0
timeout = 2s

[websocket]
url = wss://bridge.local/ws
username = admin
no_ssl_verify = true

[log]
level = debug
format = json

[flash]
wait = 5
verify = true
journal = /tmp/journal.cbor
`)

	iniConf, err := LoadIniFile(path)
	if err != nil {
		t.Fatalf("LoadIniFile error: %v", err)
	}
	c, err := NewConfig(iniConf)
	if err != nil {
		t.Fatalf("NewConfig error: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"port", c.Port, "/dev/ttyUSB0"},
		{"baud keeps default", c.Baud, 115200},
		{"timeout", c.Timeout, 2 * time.Second},
		{"url", c.URL, "wss://bridge.local/ws"},
		{"username", c.Username, "admin"},
		{"no_ssl_verify", c.NoSSLVerify, true},
		{"level", c.LogLevel, log.DebugLevel},
		{"format", c.LogFormat, "json"},
		{"wait", c.Wait, byte(5)},
		{"verify", c.Verify, true},
		{"journal", c.Journal, "/tmp/journal.cbor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadIniFile_Missing(t *testing.T) {
	if _, err := LoadIniFile(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IniConfig)
	}{
		{"log level", func(c *IniConfig) { c.Log.Level = "loud" }},
		{"log format", func(c *IniConfig) { c.Log.Format = "xml" }},
		{"baud", func(c *IniConfig) { c.Serial.Baud = 0 }},
		{"timeout", func(c *IniConfig) { c.Serial.Timeout = 0 }},
		{"wait too large", func(c *IniConfig) { c.Flash.Wait = 256 }},
		{"wait negative", func(c *IniConfig) { c.Flash.Wait = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iniConf := Default()
			tt.mutate(iniConf)
			if _, err := NewConfig(iniConf); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~", home},
		{"~/x/journal.cbor", filepath.Join(home, "x", "journal.cbor")},
	}

	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
