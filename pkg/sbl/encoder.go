// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"encoding/binary"
	"fmt"
)

// Encode builds a request frame for cmd. The payload must not exceed
// MaxPayloadSize; a longer payload is a programming error and panics.
func Encode(cmd byte, payload []byte) []byte {
	return encodeFrame(GroupSBL, cmd, payload)
}

// EncodeResponse builds a reply frame as the bootloader would send it, with
// the response flag set on cmd. Used by device emulators.
func EncodeResponse(cmd byte, payload []byte) []byte {
	return encodeFrame(GroupSBL, cmd|ResponseFlag, payload)
}

func encodeFrame(cmd1, cmd2 byte, payload []byte) []byte {
	if len(payload) > MaxPayloadSize {
		panic(fmt.Sprintf("sbl: payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize))
	}

	frame := make([]byte, 0, len(payload)+Overhead)
	frame = append(frame, SOF, byte(len(payload)), cmd1, cmd2)
	frame = append(frame, payload...)

	// SOF is not covered by the FCS
	return append(frame, CalculateFCS(frame[1:]))
}

// WritePayload lays out a write request: LE word offset followed by the block.
func WritePayload(offsetWords uint16, data []byte) []byte {
	payload := make([]byte, OffsetSize+len(data))
	binary.LittleEndian.PutUint16(payload, offsetWords)
	copy(payload[OffsetSize:], data)
	return payload
}

// ReadPayload lays out a read request: the LE word offset only.
func ReadPayload(offsetWords uint16) []byte {
	payload := make([]byte, OffsetSize)
	binary.LittleEndian.PutUint16(payload, offsetWords)
	return payload
}
