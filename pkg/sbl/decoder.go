// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"fmt"
	"io"
	"time"
)

// ReadResponse reads exactly one reply frame from r. It blocks until the
// whole frame has arrived or the transport gives up. Short reads are
// returned as *TransportError and are never retried.
func ReadResponse(r io.Reader) (*Response, error) {
	header := make([]byte, HeaderSize)
	if err := readFull(r, header, "read header"); err != nil {
		return nil, err
	}

	sof, length, cmd1, cmd2 := header[0], header[1], header[2], header[3]
	if sof != SOF {
		return nil, &FramingError{Got: sof}
	}

	payload := make([]byte, length)
	if err := readFull(r, payload, "read payload"); err != nil {
		return nil, err
	}

	fcs := make([]byte, 1)
	if err := readFull(r, fcs, "read FCS"); err != nil {
		return nil, err
	}

	calculated := CalculateFCS(header[1:]) ^ CalculateFCS(payload)
	if calculated != fcs[0] {
		return nil, &ChecksumError{Expected: calculated, Actual: fcs[0]}
	}

	if cmd2&ResponseFlag == 0 {
		return nil, &ProtocolError{Got: cmd2, Reason: "response flag not set"}
	}

	return NewResponse(cmd1, cmd2, payload), nil
}

func readFull(r io.Reader, buf []byte, op string) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return &TransportError{Op: op, Want: len(buf), Got: n, Err: err}
	}
	return nil
}

// Decoder is a resynchronizing stream decoder for passively watching a
// line. Bytes outside a frame are skipped until the next SOF.
type Decoder struct {
	state   int
	frame   *Frame
	length  int
	fcs     byte
	skipped int
}

// NewDecoder creates a new stream decoder
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle}
}

// Reset returns the decoder to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.frame = nil
	d.length = 0
	d.fcs = 0
}

// Skipped returns how many bytes were discarded while idle
func (d *Decoder) Skipped() int {
	return d.skipped
}

// DecodeByte feeds one byte to the decoder. It returns a frame when one is
// complete, nil while a frame is in progress, and an error for a frame that
// fails its FCS.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case stateIdle:
		if b != SOF {
			d.skipped++
			return nil, nil
		}
		d.frame = &Frame{}
		d.fcs = 0
		d.state = stateLength
		return nil, nil

	case stateLength:
		d.length = int(b)
		d.frame.Payload = make([]byte, 0, d.length)
		d.fcs ^= b
		d.state = stateCmd1
		return nil, nil

	case stateCmd1:
		d.frame.Cmd1 = b
		d.fcs ^= b
		d.state = stateCmd2
		return nil, nil

	case stateCmd2:
		d.frame.Cmd2 = b
		d.fcs ^= b
		if d.length == 0 {
			d.state = stateFCS
		} else {
			d.state = statePayload
		}
		return nil, nil

	case statePayload:
		d.frame.Payload = append(d.frame.Payload, b)
		d.fcs ^= b
		if len(d.frame.Payload) >= d.length {
			d.state = stateFCS
		}
		return nil, nil

	case stateFCS:
		frame := d.frame
		calculated := d.fcs
		d.Reset()
		if calculated != b {
			return nil, &ChecksumError{Expected: calculated, Actual: b}
		}
		frame.FCS = b
		frame.Timestamp = time.Now()
		return frame, nil

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", state)
	}
}
