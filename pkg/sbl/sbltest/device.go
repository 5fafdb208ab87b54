// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sbltest provides an in-memory serial bootloader for exercising
// sbl sessions without hardware.
package sbltest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/Thermoquad/sblflash/pkg/sbl"
)

// ErrTimeout is returned by Read when the device has nothing to send, the
// way a serial port with a read timeout behaves.
var ErrTimeout = errors.New("sbltest: read timeout")

// erased is the value of flash that was never written
const erased = 0xFF

// Device emulates a bootloader on the far side of a serial link. Frames
// written to it are parsed and answered; replies are read back with Read.
type Device struct {
	mu sync.Mutex

	decoder *sbl.Decoder
	out     bytes.Buffer

	// Flash holds written blocks keyed by word offset
	Flash map[uint16][]byte

	// Requests records every request frame received
	Requests []*sbl.Frame

	Handshaken bool
	Enabled    bool

	// Status overrides the reply status per command
	Status map[byte]sbl.Status

	// FailWriteAt makes the write to the given word offset fail
	FailWriteAt map[uint16]sbl.Status

	// ReplyAs answers a command with a different command code
	ReplyAs map[byte]byte

	// Silent swallows requests without replying
	Silent bool

	// NoStatus answers with an empty payload
	NoStatus bool
}

// NewDevice creates an emulated bootloader with erased flash
func NewDevice() *Device {
	return &Device{
		decoder:     sbl.NewDecoder(),
		Flash:       make(map[uint16][]byte),
		Status:      make(map[byte]sbl.Status),
		FailWriteAt: make(map[uint16]sbl.Status),
		ReplyAs:     make(map[byte]byte),
	}
}

// Write feeds request bytes to the device
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range p {
		frame, err := d.decoder.DecodeByte(b)
		if err != nil {
			d.reply(sbl.CmdHandshake, []byte{byte(sbl.StatusInvalidFCS)})
			continue
		}
		if frame != nil {
			d.Requests = append(d.Requests, frame)
			d.handle(frame)
		}
	}
	return len(p), nil
}

// Read returns queued reply bytes, or ErrTimeout if there are none
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out.Len() == 0 {
		return 0, ErrTimeout
	}
	return d.out.Read(p)
}

// Inject queues raw bytes as if the device had sent them
func (d *Device) Inject(raw []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out.Write(raw)
}

// Image returns size bytes of flash starting at word offset 0
func (d *Device) Image(size int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	image := make([]byte, 0, size+sbl.BlockSize)
	for offset := 0; offset < size; offset += sbl.BlockSize {
		image = append(image, d.block(uint16(offset/sbl.WordSize))...)
	}
	return image[:size]
}

func (d *Device) block(offsetWords uint16) []byte {
	if data, ok := d.Flash[offsetWords]; ok {
		return data
	}
	return bytes.Repeat([]byte{erased}, sbl.BlockSize)
}

func (d *Device) handle(f *sbl.Frame) {
	if d.Silent {
		return
	}

	cmd := f.Command()
	status, overridden := d.Status[cmd]
	if !overridden {
		status = sbl.StatusSuccess
	}

	var extra []byte

	switch cmd {
	case sbl.CmdHandshake:
		if status == sbl.StatusSuccess {
			d.Handshaken = true
		}

	case sbl.CmdWrite:
		if len(f.Payload) != sbl.WritePayloadSize {
			status = sbl.StatusFailure
			break
		}
		offset := binary.LittleEndian.Uint16(f.Payload)
		if st, ok := d.FailWriteAt[offset]; ok {
			status = st
		}
		if status == sbl.StatusSuccess {
			d.Flash[offset] = bytes.Clone(f.Payload[sbl.OffsetSize:])
		}

	case sbl.CmdRead:
		if len(f.Payload) != sbl.OffsetSize {
			status = sbl.StatusFailure
			break
		}
		if status == sbl.StatusSuccess {
			extra = append(bytes.Clone(f.Payload), d.block(binary.LittleEndian.Uint16(f.Payload))...)
		}

	case sbl.CmdEnable:
		if status == sbl.StatusSuccess {
			d.Enabled = true
		}

	default:
		status = sbl.StatusFailure
	}

	if as, ok := d.ReplyAs[cmd]; ok {
		cmd = as
	}
	if d.NoStatus {
		d.reply(cmd, nil)
		return
	}
	d.reply(cmd, append([]byte{byte(status)}, extra...))
}

func (d *Device) reply(cmd byte, payload []byte) {
	d.out.Write(sbl.EncodeResponse(cmd, payload))
}
