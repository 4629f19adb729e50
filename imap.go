// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import "fmt"

// InitialMap points to the authoritative memory map. The file format
// asserts exactly one entry follows the preamble.
type InitialMap struct {
	MMapOffset uint32 `json:"mmap_offset"`
}

func readInitialMap(r *Reader, e Endian) (InitialMap, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return InitialMap{}, err
	}
	if tag != "imap" {
		return InitialMap{}, malformedChunk("imap", tag)
	}

	if _, err := r.ReadU32(e); err != nil { // size, unused
		return InitialMap{}, err
	}

	count, err := r.ReadU32(e)
	if err != nil {
		return InitialMap{}, err
	}
	if count != 1 {
		return InitialMap{}, fmt.Errorf("%w: imap count must be 1, got %d", ErrMalformedChunk, count)
	}

	offset, err := r.ReadU32(e)
	if err != nil {
		return InitialMap{}, err
	}

	return InitialMap{MMapOffset: offset}, nil
}
