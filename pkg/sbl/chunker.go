// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"fmt"
	"iter"
)

// Block is one BlockSize slice of a firmware image
type Block struct {
	Index       int
	Offset      int    // byte offset in the image
	OffsetWords uint16 // device offset in 32-bit words
	Data        [BlockSize]byte
}

// Chunker splits an image into blocks. The final block is zero padded.
// A Chunker hands out each block once and cannot be rewound.
type Chunker struct {
	image []byte
	count int
	next  int
}

// NewChunker creates a chunker over image. The image is not copied and
// must not change while blocks are being produced.
func NewChunker(image []byte) *Chunker {
	return &Chunker{
		image: image,
		count: BlockCount(len(image)),
	}
}

// BlockCount returns the number of blocks an image of size bytes needs
func BlockCount(size int) int {
	return (size + BlockSize - 1) / BlockSize
}

// Count returns the total number of blocks
func (c *Chunker) Count() int {
	return c.count
}

// Remaining returns the number of blocks not yet produced
func (c *Chunker) Remaining() int {
	return c.count - c.next
}

// Next returns the next block, or false once the image is exhausted
func (c *Chunker) Next() (Block, bool) {
	if c.next >= c.count {
		return Block{}, false
	}

	i := c.next
	c.next++

	offset := i * BlockSize
	end := min(offset+BlockSize, len(c.image))

	b := Block{
		Index:       i,
		Offset:      offset,
		OffsetWords: uint16(offset / WordSize),
	}
	copy(b.Data[:], c.image[offset:end])
	return b, true
}

// WriteImage writes image block by block. After each acknowledged block it
// yields that block's byte offset with a nil error. On the first failure it
// yields the failing offset with the error and stops; nothing is retried and
// blocks already written stay written. An image larger than MaxImageSize
// fails with ErrImageTooLarge before anything is sent.
func (s *Session) WriteImage(image []byte) iter.Seq2[int, error] {
	chunker := NewChunker(image)
	return func(yield func(int, error) bool) {
		if err := checkImageSize(image); err != nil {
			yield(0, err)
			return
		}
		for {
			block, ok := chunker.Next()
			if !ok {
				return
			}
			if _, err := s.WriteBlock(block.OffsetWords, block.Data[:]); err != nil {
				yield(block.Offset, err)
				return
			}
			if !yield(block.Offset, nil) {
				return
			}
		}
	}
}

// VerifyImage reads every block of image back from the device and compares
// it, padding included. It yields like WriteImage; a difference is reported
// as a *VerifyError.
func (s *Session) VerifyImage(image []byte) iter.Seq2[int, error] {
	chunker := NewChunker(image)
	return func(yield func(int, error) bool) {
		if err := checkImageSize(image); err != nil {
			yield(0, err)
			return
		}
		for {
			block, ok := chunker.Next()
			if !ok {
				return
			}
			data, err := s.ReadBlock(block.OffsetWords)
			if err == nil {
				err = compareBlock(block, data)
			}
			if err != nil {
				yield(block.Offset, err)
				return
			}
			if !yield(block.Offset, nil) {
				return
			}
		}
	}
}

// checkImageSize rejects images whose word offsets would wrap
func checkImageSize(image []byte) error {
	if len(image) > MaxImageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(image), MaxImageSize)
	}
	return nil
}

func compareBlock(block Block, data []byte) error {
	for i, want := range block.Data {
		if data[i] != want {
			return &VerifyError{Offset: block.Offset, Index: i, Want: want, Got: data[i]}
		}
	}
	return nil
}
