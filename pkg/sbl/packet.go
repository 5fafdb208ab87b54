// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import "time"

// Response is a decoded bootloader reply
type Response struct {
	group     byte
	command   byte // response flag cleared
	payload   []byte
	status    Status
	hasStatus bool
}

// NewResponse builds a Response from raw frame fields. cmd2 is taken as
// received; the response flag is cleared here.
func NewResponse(cmd1, cmd2 byte, payload []byte) *Response {
	r := &Response{
		group:   cmd1,
		command: cmd2 &^ ResponseFlag,
		payload: payload,
	}
	if len(payload) > 0 {
		r.status = Status(payload[0])
		r.hasStatus = true
	}
	return r
}

// Group returns the CMD1 byte of the reply
func (r *Response) Group() byte {
	return r.group
}

// Command returns the operation code with the response flag cleared
func (r *Response) Command() byte {
	return r.command
}

// Payload returns the raw reply payload, status byte included
func (r *Response) Payload() []byte {
	return r.payload
}

// Status returns the status byte, and false if the reply had no payload
func (r *Response) Status() (Status, bool) {
	return r.status, r.hasStatus
}

// Frame is any frame seen on the line, request or reply. It is produced by
// the stream Decoder.
type Frame struct {
	Cmd1      byte
	Cmd2      byte
	Payload   []byte
	FCS       byte
	Timestamp time.Time
}

// IsResponse reports whether the frame carries the response flag
func (f *Frame) IsResponse() bool {
	return f.Cmd2&ResponseFlag != 0
}

// Command returns the operation code without the response flag
func (f *Frame) Command() byte {
	return f.Cmd2 &^ ResponseFlag
}

// Response converts a reply frame into a Response
func (f *Frame) Response() *Response {
	return NewResponse(f.Cmd1, f.Cmd2, f.Payload)
}
