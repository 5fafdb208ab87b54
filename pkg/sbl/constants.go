// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbl implements the host side of the serial bootloader (SBL)
// protocol spoken by the bootloader agent on MT-RPC based microcontrollers.
//
// A frame on the wire is
//
//	SOF | LEN | CMD1 | CMD2 | PAYLOAD[LEN] | FCS
//
// where FCS is the XOR of every byte from LEN through the end of the
// payload. This package provides frame encoding/decoding, a request/response
// Session, and a chunker that turns a firmware image into 64-byte writes.
package sbl

// Protocol framing
const (
	SOF = 0xFE

	HeaderSize = 4 // SOF, LEN, CMD1, CMD2
	Overhead   = HeaderSize + 1

	MaxPayloadSize = 255
)

// CMD1 is the subsystem tag of the bootloader group plus the AREQ flag.
const (
	SubsystemSBL = 13   // MT_RPC_SYS_SBL
	FlagAREQ     = 0x40 // asynchronous request
	GroupSBL     = FlagAREQ | SubsystemSBL

	// ResponseFlag is set on CMD2 of every reply from the bootloader.
	ResponseFlag = 0x80
)

// Operation codes (CMD2)
const (
	CmdWrite     = 0x01
	CmdRead      = 0x02
	CmdEnable    = 0x03
	CmdHandshake = 0x04
)

// Transfer geometry
const (
	BlockSize        = 64
	OffsetSize       = 2
	WritePayloadSize = OffsetSize + BlockSize
	ReadReplySize    = 1 + OffsetSize + BlockSize

	// Block offsets travel as 16-bit word (4 byte) addresses.
	WordSize     = 4
	MaxImageSize = 0x10000 * WordSize
)

// DefaultHandshakeWait is the handshake payload byte sent by default. The
// bootloader interprets it; the host treats it as an opaque value.
const DefaultHandshakeWait = 2

// Status is the first payload byte of a bootloader reply.
type Status byte

// Status values
const (
	StatusSuccess         Status = 0
	StatusFailure         Status = 1
	StatusInvalidFCS      Status = 2
	StatusInvalidFile     Status = 3
	StatusFilesystemError Status = 4
	StatusAlreadyStarted  Status = 5
	StatusNoResponse      Status = 6
	StatusValidateFailed  Status = 7
	StatusCanceled        Status = 8
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength
	stateCmd1
	stateCmd2
	statePayload
	stateFCS
)
