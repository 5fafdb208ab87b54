// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FormatCommand returns the human-readable name for an operation code.
// The response flag is ignored.
func FormatCommand(cmd byte) string {
	switch cmd &^ ResponseFlag {
	case CmdWrite:
		return "WRITE"
	case CmdRead:
		return "READ"
	case CmdEnable:
		return "ENABLE"
	case CmdHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// String returns the human-readable name for a status
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusInvalidFCS:
		return "INVALID_FCS"
	case StatusInvalidFile:
		return "INVALID_FILE"
	case StatusFilesystemError:
		return "FILESYSTEM_ERROR"
	case StatusAlreadyStarted:
		return "ALREADY_STARTED"
	case StatusNoResponse:
		return "NO_RESPONSE"
	case StatusValidateFailed:
		return "VALIDATE_FAILED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(s))
	}
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Timestamp.Format("15:04:05.000")
	direction := "->"
	if f.IsResponse() {
		direction = "<-"
	}

	result := fmt.Sprintf("[%s] %s %s (0x%02X) cmd1=0x%02X len=%d\n",
		timestamp, direction, FormatCommand(f.Cmd2), f.Cmd2, f.Cmd1, len(f.Payload))

	if f.Cmd1 != GroupSBL {
		result += fmt.Sprintf("  (unexpected group 0x%02X)\n", f.Cmd1)
	}

	return result + formatPayload(f)
}

func formatPayload(f *Frame) string {
	p := f.Payload

	if f.IsResponse() {
		if len(p) == 0 {
			return "  (no status)\n"
		}
		result := fmt.Sprintf("  Status: %s\n", Status(p[0]))
		if f.Command() == CmdRead && len(p) == ReadReplySize {
			offset := binary.LittleEndian.Uint16(p[1:3])
			result += fmt.Sprintf("  Offset: 0x%04X words (0x%06X)\n", offset, int(offset)*WordSize)
			result += hexDump(p[3:])
		}
		return result
	}

	switch f.Command() {
	case CmdHandshake:
		if len(p) == 1 {
			return fmt.Sprintf("  Wait: %d\n", p[0])
		}
	case CmdEnable:
		if len(p) == 0 {
			return "  (no payload)\n"
		}
	case CmdRead:
		if len(p) == OffsetSize {
			offset := binary.LittleEndian.Uint16(p)
			return fmt.Sprintf("  Offset: 0x%04X words (0x%06X)\n", offset, int(offset)*WordSize)
		}
	case CmdWrite:
		if len(p) == WritePayloadSize {
			offset := binary.LittleEndian.Uint16(p)
			return fmt.Sprintf("  Offset: 0x%04X words (0x%06X)\n", offset, int(offset)*WordSize) + hexDump(p[OffsetSize:])
		}
	}

	if len(p) == 0 {
		return ""
	}
	return hexDump(p)
}

// hexDump renders data 16 bytes per line
func hexDump(data []byte) string {
	var b strings.Builder
	b.WriteString("  Data: ")
	for i, v := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n        ")
		}
		fmt.Fprintf(&b, "%02X ", v)
	}
	b.WriteString("\n")
	return b.String()
}
