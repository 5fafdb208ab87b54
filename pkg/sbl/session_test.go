// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Thermoquad/sblflash/pkg/sbl"
	"github.com/Thermoquad/sblflash/pkg/sbl/sbltest"
)

func newSession(dev *sbltest.Device, opts ...sbl.Option) *sbl.Session {
	return sbl.NewSession(dev, opts...)
}

func testImage(size int) []byte {
	image := make([]byte, size)
	for i := range image {
		image[i] = byte(i*13 + 1)
	}
	return image
}

// ============================================================
// Handshake
// ============================================================

func TestHandshake_Success(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)

	status, err := s.Handshake(sbl.DefaultHandshakeWait)
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}
	if status != sbl.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", status)
	}
	if !dev.Handshaken {
		t.Error("device did not see a handshake")
	}

	req := dev.Requests[0]
	if req.Command() != sbl.CmdHandshake || !bytes.Equal(req.Payload, []byte{0x02}) {
		t.Errorf("unexpected request: cmd 0x%02X payload % X", req.Cmd2, req.Payload)
	}
}

func TestHandshake_Failure(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Status[sbl.CmdHandshake] = sbl.StatusFailure
	s := newSession(dev)

	status, err := s.Handshake(sbl.DefaultHandshakeWait)
	if !errors.Is(err, sbl.ErrHandshakeFailed) {
		t.Fatalf("expected ErrHandshakeFailed, got %v", err)
	}

	var devErr *sbl.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected *DeviceError, got %T", err)
	}
	if devErr.Status != sbl.StatusFailure || status != sbl.StatusFailure {
		t.Errorf("status = %s / %s, want FAILURE", devErr.Status, status)
	}
}

func TestHandshake_NoReply(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Silent = true
	s := newSession(dev)

	_, err := s.Handshake(sbl.DefaultHandshakeWait)
	var transport *sbl.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if !errors.Is(err, sbltest.ErrTimeout) {
		t.Errorf("expected timeout cause, got %v", transport.Err)
	}
}

func TestHandshake_NoStatusByte(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.NoStatus = true
	s := newSession(dev)

	_, err := s.Handshake(sbl.DefaultHandshakeWait)
	var proto *sbl.ProtocolError
	if !errors.As(err, &proto) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
}

func TestSend_CorruptReply(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Silent = true
	reply := sbl.EncodeResponse(sbl.CmdHandshake, []byte{0x00})
	reply[len(reply)-1] ^= 0x10
	dev.Inject(reply)
	s := newSession(dev)

	_, err := s.Handshake(sbl.DefaultHandshakeWait)
	var fcs *sbl.ChecksumError
	if !errors.As(err, &fcs) {
		t.Fatalf("expected *ChecksumError, got %v", err)
	}
}

func TestSend_BadStartByte(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Silent = true
	dev.Inject([]byte{0x00, 0x01, 0x4D, 0x84, 0x00, 0xC8})
	s := newSession(dev)

	_, err := s.Handshake(sbl.DefaultHandshakeWait)
	var framing *sbl.FramingError
	if !errors.As(err, &framing) {
		t.Fatalf("expected *FramingError, got %v", err)
	}
}

// ============================================================
// Write
// ============================================================

func TestWriteBlock_WrongOpcode(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.ReplyAs[sbl.CmdWrite] = sbl.CmdEnable
	s := newSession(dev)

	_, err := s.WriteBlock(0, make([]byte, sbl.BlockSize))
	var proto *sbl.ProtocolError
	if !errors.As(err, &proto) {
		t.Fatalf("expected *ProtocolError, got %v", err)
	}
	if proto.Command != sbl.CmdWrite || proto.Got != sbl.CmdEnable {
		t.Errorf("Command = 0x%02X Got = 0x%02X", proto.Command, proto.Got)
	}
}

func TestWriteBlock_WrongSize(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)

	if _, err := s.WriteBlock(0, make([]byte, sbl.BlockSize-1)); err == nil {
		t.Fatal("expected an error for a short block")
	}
	if len(dev.Requests) != 0 {
		t.Error("no frame should be sent for an invalid block")
	}
}

func TestWriteImage_Offsets(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		offsets []int
	}{
		{name: "exact", size: 128, offsets: []int{0, 64}},
		{name: "padded", size: 70, offsets: []int{0, 64}},
		{name: "single byte", size: 1, offsets: []int{0}},
		{name: "empty", size: 0, offsets: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := sbltest.NewDevice()
			s := newSession(dev)
			image := testImage(tt.size)

			var offsets []int
			for offset, err := range s.WriteImage(image) {
				if err != nil {
					t.Fatalf("offset %d: %v", offset, err)
				}
				offsets = append(offsets, offset)
			}

			if len(offsets) != len(tt.offsets) {
				t.Fatalf("offsets = %v, want %v", offsets, tt.offsets)
			}
			for i := range offsets {
				if offsets[i] != tt.offsets[i] {
					t.Errorf("offsets = %v, want %v", offsets, tt.offsets)
				}
			}
			if !bytes.Equal(dev.Image(tt.size), image) {
				t.Error("device flash does not match image")
			}
		})
	}
}

func TestWriteImage_PaddingOnWire(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)
	image := testImage(70)

	for _, err := range s.WriteImage(image) {
		if err != nil {
			t.Fatal(err)
		}
	}

	last := dev.Requests[len(dev.Requests)-1]
	if !bytes.Equal(last.Payload[:2], []byte{0x10, 0x00}) {
		t.Errorf("second block offset bytes = % X, want 10 00", last.Payload[:2])
	}
	if !bytes.Equal(last.Payload[2:8], image[64:]) {
		t.Error("second block tail data mismatch")
	}
	if !bytes.Equal(last.Payload[8:], make([]byte, 58)) {
		t.Error("second block should end with 58 zero bytes")
	}
}

func TestWriteImage_StopsOnFailure(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.FailWriteAt[16] = sbl.StatusFilesystemError
	s := newSession(dev)

	var acked []int
	var failedAt = -1
	var failure error
	for offset, err := range s.WriteImage(testImage(256)) {
		if err != nil {
			failedAt, failure = offset, err
			continue
		}
		acked = append(acked, offset)
	}

	if len(acked) != 1 || acked[0] != 0 {
		t.Errorf("acked = %v, want [0]", acked)
	}
	if failedAt != 64 {
		t.Errorf("failed at %d, want 64", failedAt)
	}
	if !errors.Is(failure, sbl.ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed, got %v", failure)
	}
	if len(dev.Requests) != 2 {
		t.Errorf("sent %d requests after failure, want 2", len(dev.Requests))
	}
}

func TestWriteImage_EarlyBreak(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)

	for range s.WriteImage(testImage(640)) {
		break
	}

	if len(dev.Requests) != 1 {
		t.Errorf("sent %d requests, want 1", len(dev.Requests))
	}
}

func TestWriteImage_TooLarge(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)
	image := make([]byte, sbl.MaxImageSize+sbl.BlockSize)
	image[0] = 0x11
	image[sbl.MaxImageSize] = 0x99

	var calls int
	var failure error
	for offset, err := range s.WriteImage(image) {
		calls++
		if offset != 0 {
			t.Errorf("offset = %d, want 0", offset)
		}
		failure = err
	}

	if calls != 1 {
		t.Errorf("yielded %d times, want 1", calls)
	}
	if !errors.Is(failure, sbl.ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", failure)
	}
	if len(dev.Requests) != 0 {
		t.Errorf("sent %d requests for an oversized image", len(dev.Requests))
	}
	if len(dev.Flash) != 0 {
		t.Error("flash was modified")
	}
}

// ============================================================
// Verify
// ============================================================

func TestVerifyImage_TooLarge(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)

	var failure error
	for _, err := range s.VerifyImage(make([]byte, sbl.MaxImageSize+1)) {
		failure = err
	}

	if !errors.Is(failure, sbl.ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", failure)
	}
	if len(dev.Requests) != 0 {
		t.Errorf("sent %d requests for an oversized image", len(dev.Requests))
	}
}

func TestReadBlock(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)
	data := testImage(sbl.BlockSize)

	if _, err := s.WriteBlock(32, data); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadBlock(32)
	if err != nil {
		t.Fatalf("ReadBlock error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read back data differs")
	}

	erased, err := s.ReadBlock(48)
	if err != nil {
		t.Fatalf("ReadBlock error: %v", err)
	}
	if !bytes.Equal(erased, bytes.Repeat([]byte{0xFF}, sbl.BlockSize)) {
		t.Error("unwritten block should read as erased")
	}
}

func TestReadBlock_Failure(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Status[sbl.CmdRead] = sbl.StatusFailure
	s := newSession(dev)

	if _, err := s.ReadBlock(0); !errors.Is(err, sbl.ErrReadFailed) {
		t.Errorf("expected ErrReadFailed, got %v", err)
	}
}

func TestVerifyImage(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)
	image := testImage(200)

	for _, err := range s.WriteImage(image) {
		if err != nil {
			t.Fatal(err)
		}
	}

	var verified int
	for _, err := range s.VerifyImage(image) {
		if err != nil {
			t.Fatalf("verify error: %v", err)
		}
		verified++
	}
	if verified != 4 {
		t.Errorf("verified %d blocks, want 4", verified)
	}
}

func TestVerifyImage_Mismatch(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)
	image := testImage(128)

	for _, err := range s.WriteImage(image) {
		if err != nil {
			t.Fatal(err)
		}
	}
	dev.Flash[16][5] ^= 0xFF

	var failure error
	for _, err := range s.VerifyImage(image) {
		if err != nil {
			failure = err
		}
	}

	var verr *sbl.VerifyError
	if !errors.As(failure, &verr) {
		t.Fatalf("expected *VerifyError, got %v", failure)
	}
	if verr.Offset != 64 || verr.Index != 5 {
		t.Errorf("mismatch at offset %d index %d, want 64/5", verr.Offset, verr.Index)
	}
}

// ============================================================
// Enable
// ============================================================

func TestEnable(t *testing.T) {
	dev := sbltest.NewDevice()
	s := newSession(dev)

	if _, err := s.Enable(); err != nil {
		t.Fatalf("Enable error: %v", err)
	}
	if !dev.Enabled {
		t.Error("device was not enabled")
	}
	if len(dev.Requests[0].Payload) != 0 {
		t.Error("enable request should carry no payload")
	}
}

func TestEnable_Failure(t *testing.T) {
	dev := sbltest.NewDevice()
	dev.Status[sbl.CmdEnable] = sbl.StatusValidateFailed
	s := newSession(dev)

	status, err := s.Enable()
	if !errors.Is(err, sbl.ErrEnableFailed) {
		t.Fatalf("expected ErrEnableFailed, got %v", err)
	}
	if status != sbl.StatusValidateFailed {
		t.Errorf("status = %s, want VALIDATE_FAILED", status)
	}
	if dev.Enabled {
		t.Error("device should not be enabled")
	}
}

// ============================================================
// Full Sequence
// ============================================================

func TestFlashSequence_Observed(t *testing.T) {
	dev := sbltest.NewDevice()
	stats := sbl.NewStatistics()
	var commands []byte
	s := newSession(dev, sbl.WithObserver(func(ex sbl.Exchange) {
		stats.Observe(ex)
		commands = append(commands, ex.Command)
	}))

	image := testImage(130)

	if _, err := s.Handshake(sbl.DefaultHandshakeWait); err != nil {
		t.Fatal(err)
	}
	for _, err := range s.WriteImage(image) {
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Enable(); err != nil {
		t.Fatal(err)
	}

	expected := []byte{sbl.CmdHandshake, sbl.CmdWrite, sbl.CmdWrite, sbl.CmdWrite, sbl.CmdEnable}
	if !bytes.Equal(commands, expected) {
		t.Errorf("command sequence = % X, want % X", commands, expected)
	}
	if stats.Exchanges != 5 || stats.BlocksWritten != 3 {
		t.Errorf("Exchanges = %d, BlocksWritten = %d", stats.Exchanges, stats.BlocksWritten)
	}
	if stats.Errors() != 0 {
		t.Errorf("unexpected errors: %d", stats.Errors())
	}
}

func TestNewSession_NilTransport(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewSession(nil) should panic")
		}
	}()
	sbl.NewSession(nil)
}
