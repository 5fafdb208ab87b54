// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Exchange describes one completed request/response round trip. It is
// handed to the observer installed with WithObserver.
type Exchange struct {
	Command  byte
	Request  []byte
	Response *Response // nil if no valid reply was decoded
	Err      error
	Elapsed  time.Duration
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for per-exchange debug output
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver installs a callback invoked after every exchange, including
// failed ones. It runs on the caller's goroutine and must return quickly.
func WithObserver(fn func(Exchange)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session talks to a bootloader over rw. Exactly one command is in flight
// at a time: every send blocks until its reply has been read. The session
// is the only user of rw for its lifetime; whoever opened rw closes it.
//
// A Session is not safe for concurrent use.
type Session struct {
	rw       io.ReadWriter
	logger   logrus.FieldLogger
	observer func(Exchange)
}

// NewSession creates a session over an open transport
func NewSession(rw io.ReadWriter, opts ...Option) *Session {
	if rw == nil {
		panic("sbl: transport cannot be nil")
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Session{
		rw:     rw,
		logger: discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send writes a request for cmd and reads its reply. The reply must answer
// the same command; anything else is a fatal *ProtocolError and the session
// makes no attempt to resynchronize.
func (s *Session) Send(cmd byte, payload []byte) (*Response, error) {
	start := time.Now()
	frame := Encode(cmd, payload)

	resp, err := s.roundTrip(cmd, frame)

	if s.observer != nil {
		s.observer(Exchange{
			Command:  cmd,
			Request:  frame,
			Response: resp,
			Err:      err,
			Elapsed:  time.Since(start),
		})
	}

	log := s.logger.WithFields(logrus.Fields{
		"cmd":     FormatCommand(cmd),
		"len":     len(payload),
		"elapsed": time.Since(start),
	})
	if err != nil {
		log.WithError(err).Debug("exchange failed")
	} else {
		st, _ := resp.Status()
		log.WithField("status", st).Debug("exchange")
	}

	return resp, err
}

func (s *Session) roundTrip(cmd byte, frame []byte) (*Response, error) {
	n, err := s.rw.Write(frame)
	if err != nil {
		return nil, &TransportError{Op: "write frame", Want: len(frame), Got: n, Err: err}
	}
	if n != len(frame) {
		return nil, &TransportError{Op: "write frame", Want: len(frame), Got: n, Err: io.ErrShortWrite}
	}

	resp, err := ReadResponse(s.rw)
	if err != nil {
		return nil, err
	}

	if resp.Command() != cmd {
		return resp, &ProtocolError{
			Command: cmd,
			Got:     resp.Command(),
			Reason:  fmt.Sprintf("reply answers %s", FormatCommand(resp.Command())),
		}
	}

	return resp, nil
}

// command sends cmd and requires a success status in the reply
func (s *Session) command(cmd byte, payload []byte) (*Response, Status, error) {
	resp, err := s.Send(cmd, payload)
	if err != nil {
		return nil, 0, err
	}

	status, ok := resp.Status()
	if !ok {
		return resp, 0, &ProtocolError{Command: cmd, Got: resp.Command(), Reason: "reply has no status byte"}
	}
	if status != StatusSuccess {
		return resp, status, &DeviceError{Command: cmd, Status: status}
	}
	return resp, status, nil
}

// Handshake announces the host to a waiting bootloader. wait is sent as
// the single payload byte; DefaultHandshakeWait is the usual value.
func (s *Session) Handshake(wait byte) (Status, error) {
	_, status, err := s.command(CmdHandshake, []byte{wait})
	return status, err
}

// WriteBlock writes one BlockSize block at the given word offset
func (s *Session) WriteBlock(offsetWords uint16, data []byte) (Status, error) {
	if len(data) != BlockSize {
		return 0, fmt.Errorf("write block: data must be %d bytes, got %d", BlockSize, len(data))
	}
	_, status, err := s.command(CmdWrite, WritePayload(offsetWords, data))
	return status, err
}

// Enable tells the bootloader to execute the flashed image
func (s *Session) Enable() (Status, error) {
	_, status, err := s.command(CmdEnable, nil)
	return status, err
}

// ReadBlock reads one BlockSize block back from the given word offset.
// The reply carries status, the echoed offset and the data.
func (s *Session) ReadBlock(offsetWords uint16) ([]byte, error) {
	resp, _, err := s.command(CmdRead, ReadPayload(offsetWords))
	if err != nil {
		return nil, err
	}

	payload := resp.Payload()
	if len(payload) != ReadReplySize {
		return nil, &ProtocolError{
			Command: CmdRead,
			Got:     resp.Command(),
			Reason:  fmt.Sprintf("read reply is %d bytes, expected %d", len(payload), ReadReplySize),
		}
	}

	echoed := binary.LittleEndian.Uint16(payload[1:3])
	if echoed != offsetWords {
		return nil, &ProtocolError{
			Command: CmdRead,
			Got:     resp.Command(),
			Reason:  fmt.Sprintf("read reply for offset 0x%04X, requested 0x%04X", echoed, offsetWords),
		}
	}

	return bytes.Clone(payload[1+OffsetSize:]), nil
}
