// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging configures the logrus logger shared by the commands.
package logging

import (
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr with the given level and format.
// format is "text" or "json".
func New(level log.Level, format string) *log.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination
func NewWithOutput(w io.Writer, level log.Level, format string) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(level)

	if format == "json" {
		logger.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}

	return logger
}
