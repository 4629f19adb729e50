// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"encoding/binary"
	"fmt"
)

// Endian identifies the byte order a chunk's structural fields were
// written under. RIFX containers are BigEndian; XFIR containers are
// LittleEndian. BITD payload bytes are always read verbatim regardless
// of the container's endian (see Reader.ReadRaw).
type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

func (e Endian) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

// Reader is an endian-parameterised cursor over a seekable byte source.
// The orchestrator owns all seeks; chunk decoders only ever call
// ReadRaw/ReadU8/ReadU16/ReadU32/ReadU64/ReadBytes against the reader's
// current position.
type Reader struct {
	data []byte
	pos  uint32
}

// NewReader wraps data (typically a memory-mapped file) for sequential,
// endian-aware reads starting at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the reader's current absolute offset.
func (r *Reader) Pos() uint32 { return r.pos }

// Len returns the total size of the underlying byte source.
func (r *Reader) Len() uint32 { return uint32(len(r.data)) }

// Seek sets the reader's absolute position. It does not validate the
// offset; the next read will fail with ErrUnexpectedEOF if it is out of
// bounds.
func (r *Reader) Seek(offset uint32) {
	r.pos = offset
}

// ReadRaw consumes n bytes verbatim and advances the cursor.
func (r *Reader) ReadRaw(n uint32) ([]byte, error) {
	if uint64(r.pos)+uint64(n) > uint64(len(r.data)) {
		return nil, fmt.Errorf("%w: want %d bytes at offset %d, have %d",
			ErrUnexpectedEOF, n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads one byte. Endian is irrelevant for a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadRaw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a two-byte unsigned integer under the given byte order.
func (r *Reader) ReadU16(e Endian) (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	if e == LittleEndian {
		return binary.LittleEndian.Uint16(b), nil
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32 reads a four-byte unsigned integer under the given byte order.
func (r *Reader) ReadU32(e Endian) (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	if e == LittleEndian {
		return binary.LittleEndian.Uint32(b), nil
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64 reads an eight-byte unsigned integer under the given byte order.
func (r *Reader) ReadU64(e Endian) (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	if e == LittleEndian {
		return binary.LittleEndian.Uint64(b), nil
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadBytes reads n bytes into a fresh slice and, if e is LittleEndian,
// reverses that slice before returning. This is how fourCC tags in structural
// positions (header, mmap, key table) are de-mangled: on disk, a little
// endian container stores each tag byte-reversed.
func (r *Reader) ReadBytes(e Endian, n uint32) ([]byte, error) {
	raw, err := r.ReadRaw(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	if e == LittleEndian {
		reverseBytes(out)
	}
	return out, nil
}

// ReadFourCC reads a four-byte structural tag under the given endian and
// returns it as a logical (reading-order) string.
func (r *Reader) ReadFourCC(e Endian) (string, error) {
	b, err := r.ReadBytes(e, 4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
