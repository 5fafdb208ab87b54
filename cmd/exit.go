// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/pkg/errors"

	"github.com/Thermoquad/sblflash/internal/journal"
	"github.com/Thermoquad/sblflash/pkg/sbl"
)

// Process exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1 // the bootloader rejected or broke an exchange
	ExitUsage   = 2 // connection, configuration or file problem
)

// errAborted is returned when the user quits the progress UI mid-flash
var errAborted = errors.New("aborted by user")

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// withExitCode pins the exit code for err
func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	if isProtocolFailure(err) || errors.Is(err, errAborted) {
		return ExitFailure
	}

	return ExitUsage
}

// isProtocolFailure reports whether err came from an exchange with the device
func isProtocolFailure(err error) bool {
	var (
		framing   *sbl.FramingError
		fcs       *sbl.ChecksumError
		protocol  *sbl.ProtocolError
		transport *sbl.TransportError
		device    *sbl.DeviceError
		verify    *sbl.VerifyError
	)

	return errors.As(err, &framing) ||
		errors.As(err, &fcs) ||
		errors.As(err, &protocol) ||
		errors.As(err, &transport) ||
		errors.As(err, &device) ||
		errors.As(err, &verify)
}

// outcome classifies a flashing result for the journal
func outcome(err error) string {
	var (
		verify    *sbl.VerifyError
		transport *sbl.TransportError
	)

	switch {
	case err == nil:
		return journal.OutcomeSuccess
	case errors.Is(err, errAborted):
		return journal.OutcomeAborted
	case errors.Is(err, sbl.ErrHandshakeFailed):
		return journal.OutcomeHandshakeFailed
	case errors.Is(err, sbl.ErrWriteFailed):
		return journal.OutcomeWriteFailed
	case errors.Is(err, sbl.ErrReadFailed), errors.As(err, &verify):
		return journal.OutcomeVerifyFailed
	case errors.Is(err, sbl.ErrEnableFailed):
		return journal.OutcomeEnableFailed
	case errors.As(err, &transport):
		return journal.OutcomeTransportError
	default:
		return journal.OutcomeProtocolError
	}
}
