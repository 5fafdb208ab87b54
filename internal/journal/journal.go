// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package journal keeps an append-only history of flashing runs. The file is
// a sequence of CBOR encoded records.
package journal

import (
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	pkgerrors "github.com/pkg/errors"
)

// Outcome values recorded for a run
const (
	OutcomeSuccess         = "success"
	OutcomeHandshakeFailed = "handshake_failed"
	OutcomeWriteFailed     = "write_failed"
	OutcomeVerifyFailed    = "verify_failed"
	OutcomeEnableFailed    = "enable_failed"
	OutcomeProtocolError   = "protocol_error"
	OutcomeTransportError  = "transport_error"
	OutcomeAborted         = "aborted"
)

// Record describes one flashing run
type Record struct {
	Time          time.Time `cbor:"1,keyasint"`
	Port          string    `cbor:"2,keyasint"`
	Image         string    `cbor:"3,keyasint"`
	Size          int       `cbor:"4,keyasint"`
	SHA256        []byte    `cbor:"5,keyasint"`
	BlocksWritten int       `cbor:"6,keyasint"`
	Blocks        int       `cbor:"7,keyasint"`
	LastOffset    int       `cbor:"8,keyasint"` // -1 if no block was acknowledged
	Verified      bool      `cbor:"9,keyasint"`
	Enabled       bool      `cbor:"10,keyasint"`
	Outcome       string    `cbor:"11,keyasint"`
	Error         string    `cbor:"12,keyasint,omitempty"`
}

// NewRecord starts a record for flashing image to port
func NewRecord(port, imagePath string, image []byte) Record {
	sum := sha256.Sum256(image)
	return Record{
		Time:       time.Now(),
		Port:       port,
		Image:      imagePath,
		Size:       len(image),
		SHA256:     sum[:],
		LastOffset: -1,
	}
}

// Journal appends records to a file
type Journal struct {
	path string
	em   cbor.EncMode
}

// DefaultPath returns the journal location under the user cache directory
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Fallback to home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "sblflash", "journal.cbor"), nil
}

// Open prepares a journal at path, creating its directory if needed
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create journal directory")
	}

	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create CBOR encoder")
	}

	return &Journal{path: path, em: em}, nil
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.path
}

// Append writes r to the end of the journal
func (j *Journal) Append(r Record) error {
	data, err := j.em.Marshal(r)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode journal record")
	}

	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %s", j.path)
	}
	return nil
}

// ReadAll returns every record in the journal, oldest first. A journal that
// does not exist yet is empty.
func (j *Journal) ReadAll() ([]Record, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	var records []Record
	dec := cbor.NewDecoder(f)
	for {
		var r Record
		err := dec.Decode(&r)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, pkgerrors.Wrapf(err, "corrupt journal record %d", len(records))
		}
		records = append(records, r)
	}
}
