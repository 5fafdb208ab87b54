// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"errors"
	"fmt"
)

// Per-command failure sentinels. A *DeviceError unwraps to one of these.
var (
	ErrHandshakeFailed = errors.New("handshake failed")
	ErrWriteFailed     = errors.New("flash write failed")
	ErrEnableFailed    = errors.New("execute image failed")
	ErrReadFailed      = errors.New("flash read failed")
)

// ErrImageTooLarge is returned for an image whose last block would not be
// addressable with a 16-bit word offset.
var ErrImageTooLarge = errors.New("firmware image too large")

// FramingError is returned when a frame does not start with SOF.
type FramingError struct {
	Got byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("bad start of frame: expected 0x%02X, got 0x%02X", SOF, e.Got)
}

// ChecksumError is returned when the received FCS does not match the
// calculated one.
type ChecksumError struct {
	Expected byte
	Actual   byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("FCS mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Actual)
}

// ProtocolError reports a well-formed frame that breaks the request/response
// contract: a missing response flag, a reply to the wrong command, or a
// payload of the wrong shape.
type ProtocolError struct {
	Command byte // command that was sent, 0 when decoding outside a session
	Got     byte // command code found in the reply
	Reason  string
}

func (e *ProtocolError) Error() string {
	if e.Command != 0 {
		return fmt.Sprintf("protocol error on %s (got 0x%02X): %s", FormatCommand(e.Command), e.Got, e.Reason)
	}
	return fmt.Sprintf("protocol error (cmd 0x%02X): %s", e.Got, e.Reason)
}

// TransportError wraps a failed or short transport read or write.
type TransportError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Want > 0 {
		return fmt.Sprintf("%s: got %d of %d bytes: %v", e.Op, e.Got, e.Want, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceError is returned when the bootloader answers with a non-success
// status.
type DeviceError struct {
	Command byte
	Status  Status
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.sentinel(), e.Status, byte(e.Status))
}

// Unwrap returns the per-command sentinel so callers can use errors.Is.
func (e *DeviceError) Unwrap() error {
	return e.sentinel()
}

func (e *DeviceError) sentinel() error {
	switch e.Command {
	case CmdHandshake:
		return ErrHandshakeFailed
	case CmdWrite:
		return ErrWriteFailed
	case CmdEnable:
		return ErrEnableFailed
	case CmdRead:
		return ErrReadFailed
	default:
		return fmt.Errorf("command 0x%02X failed", e.Command)
	}
}

// VerifyError is returned when a block read back from the device differs
// from the image.
type VerifyError struct {
	Offset int // byte offset of the block in the image
	Index  int // first differing byte within the block
	Want   byte
	Got    byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify mismatch at 0x%06X: expected 0x%02X, read 0x%02X",
		e.Offset+e.Index, e.Want, e.Got)
}
