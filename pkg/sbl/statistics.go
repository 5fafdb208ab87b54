// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics tracks the exchanges of one flashing run
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Exchanges      uint64
	BlocksWritten  uint64
	BlocksVerified uint64
	BytesWritten   uint64
	FramingErrors  uint64
	FCSErrors      uint64
	ProtocolErrors uint64
	TransportErrs  uint64
	DeviceErrors   uint64
	LastStatus     Status

	// Rates (calculated)
	ByteRate float64 // bytes/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Observe records one exchange. It matches the signature WithObserver
// expects.
func (s *Statistics) Observe(ex Exchange) {
	s.Exchanges++
	s.LastUpdateTime = time.Now()

	if ex.Err != nil {
		s.Update(ex.Err)
		return
	}

	if ex.Response == nil {
		return
	}
	st, ok := ex.Response.Status()
	if !ok {
		// commands that need a status fail with a ProtocolError
		s.ProtocolErrors++
		return
	}
	s.LastStatus = st
	if st != StatusSuccess {
		s.DeviceErrors++
		return
	}

	switch ex.Command {
	case CmdWrite:
		s.BlocksWritten++
		s.BytesWritten += BlockSize
	case CmdRead:
		s.BlocksVerified++
	}
}

// Update classifies err into the error counters
func (s *Statistics) Update(err error) {
	var (
		framing   *FramingError
		fcs       *ChecksumError
		protocol  *ProtocolError
		transport *TransportError
		device    *DeviceError
	)

	switch {
	case errors.As(err, &framing):
		s.FramingErrors++
	case errors.As(err, &fcs):
		s.FCSErrors++
	case errors.As(err, &protocol):
		s.ProtocolErrors++
	case errors.As(err, &transport):
		s.TransportErrs++
	case errors.As(err, &device):
		s.DeviceErrors++
	}
}

// Errors returns the total number of failed exchanges
func (s *Statistics) Errors() uint64 {
	return s.FramingErrors + s.FCSErrors + s.ProtocolErrors + s.TransportErrs + s.DeviceErrors
}

// CalculateRates calculates the write throughput
func (s *Statistics) CalculateRates() {
	elapsed := s.LastUpdateTime.Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ByteRate = float64(s.BytesWritten) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := s.LastUpdateTime.Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.1f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Exchanges:       %8d\n", s.Exchanges)
	result += fmt.Sprintf("Blocks Written:  %8d (%s)\n", s.BlocksWritten, humanize.IBytes(s.BytesWritten))
	if s.BlocksVerified > 0 {
		result += fmt.Sprintf("Blocks Verified: %8d\n", s.BlocksVerified)
	}

	if s.Errors() > 0 {
		result += fmt.Sprintf("Errors:          %8d\n", s.Errors())
		if s.FramingErrors > 0 {
			result += fmt.Sprintf("  Framing:          %5d\n", s.FramingErrors)
		}
		if s.FCSErrors > 0 {
			result += fmt.Sprintf("  FCS:              %5d\n", s.FCSErrors)
		}
		if s.ProtocolErrors > 0 {
			result += fmt.Sprintf("  Protocol:         %5d\n", s.ProtocolErrors)
		}
		if s.TransportErrs > 0 {
			result += fmt.Sprintf("  Transport:        %5d\n", s.TransportErrs)
		}
		if s.DeviceErrors > 0 {
			result += fmt.Sprintf("  Device:           %5d (last status %s)\n", s.DeviceErrors, s.LastStatus)
		}
	}

	result += fmt.Sprintf("Throughput:      %8s/s\n", humanize.IBytes(uint64(s.ByteRate)))
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
