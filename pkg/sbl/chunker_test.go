// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

import (
	"bytes"
	"testing"
)

func TestBlockCount(t *testing.T) {
	tests := []struct {
		size     int
		expected int
	}{
		{0, 0},
		{1, 1},
		{63, 1},
		{64, 1},
		{65, 2},
		{128, 2},
		{MaxImageSize, MaxImageSize / BlockSize},
	}

	for _, tt := range tests {
		if got := BlockCount(tt.size); got != tt.expected {
			t.Errorf("BlockCount(%d) = %d, want %d", tt.size, got, tt.expected)
		}
	}
}

func TestChunker_ExactMultiple(t *testing.T) {
	image := make([]byte, 128)
	for i := range image {
		image[i] = byte(i)
	}

	c := NewChunker(image)
	var offsets []int
	for {
		b, ok := c.Next()
		if !ok {
			break
		}
		offsets = append(offsets, b.Offset)
		if !bytes.Equal(b.Data[:], image[b.Offset:b.Offset+BlockSize]) {
			t.Errorf("block %d data mismatch", b.Index)
		}
	}

	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 64 {
		t.Errorf("offsets = %v, want [0 64]", offsets)
	}
}

func TestChunker_PadsFinalBlock(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 70)

	c := NewChunker(image)
	if c.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", c.Count())
	}

	c.Next()
	last, ok := c.Next()
	if !ok {
		t.Fatal("missing second block")
	}

	if !bytes.Equal(last.Data[:6], image[64:]) {
		t.Errorf("tail data = % X", last.Data[:6])
	}
	if !bytes.Equal(last.Data[6:], make([]byte, 58)) {
		t.Error("final block should be padded with 58 zero bytes")
	}
	if last.OffsetWords != 16 {
		t.Errorf("OffsetWords = %d, want 16", last.OffsetWords)
	}
}

func TestChunker_Reassembly(t *testing.T) {
	for _, size := range []int{1, 3, 64, 100, 1000, 4096} {
		image := make([]byte, size)
		for i := range image {
			image[i] = byte(i * 7)
		}

		c := NewChunker(image)
		var joined []byte
		var index int
		for {
			b, ok := c.Next()
			if !ok {
				break
			}
			if b.Index != index || b.Offset != index*BlockSize {
				t.Errorf("size %d: block %d has index %d offset %d", size, index, b.Index, b.Offset)
			}
			if int(b.OffsetWords)*WordSize != b.Offset {
				t.Errorf("size %d: offset words %d do not match byte offset %d", size, b.OffsetWords, b.Offset)
			}
			joined = append(joined, b.Data[:]...)
			index++
		}

		if index != BlockCount(size) {
			t.Errorf("size %d: produced %d blocks, want %d", size, index, BlockCount(size))
		}
		if !bytes.Equal(joined[:size], image) {
			t.Errorf("size %d: reassembled image differs", size)
		}
		if !bytes.Equal(joined[size:], make([]byte, len(joined)-size)) {
			t.Errorf("size %d: padding is not zero", size)
		}
	}
}

func TestChunker_Remaining(t *testing.T) {
	c := NewChunker(make([]byte, 200))
	if c.Remaining() != 4 {
		t.Fatalf("Remaining() = %d, want 4", c.Remaining())
	}
	c.Next()
	c.Next()
	if c.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2", c.Remaining())
	}
	c.Next()
	c.Next()
	if _, ok := c.Next(); ok {
		t.Error("Next() should report exhaustion")
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(nil)
	if _, ok := c.Next(); ok {
		t.Error("empty image should produce no blocks")
	}
}

func TestChunker_DoesNotAliasImage(t *testing.T) {
	image := bytes.Repeat([]byte{0x11}, BlockSize)
	b, _ := NewChunker(image).Next()
	image[0] = 0x22
	if b.Data[0] != 0x11 {
		t.Error("block data should be a copy of the image")
	}
}

func TestCompareBlock(t *testing.T) {
	var block Block
	block.Offset = 128
	block.Data[10] = 0x5A

	data := make([]byte, BlockSize)
	data[10] = 0x5A
	if err := compareBlock(block, data); err != nil {
		t.Errorf("identical block reported %v", err)
	}

	data[20] = 0x01
	err := compareBlock(block, data)
	verr, ok := err.(*VerifyError)
	if !ok {
		t.Fatalf("expected *VerifyError, got %v", err)
	}
	if verr.Offset != 128 || verr.Index != 20 || verr.Want != 0x00 || verr.Got != 0x01 {
		t.Errorf("unexpected verify error: %+v", verr)
	}
}
