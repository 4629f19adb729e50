// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import "fmt"

// Header is the RIFX/XFIR preamble. It is created once per file at
// offset 0 and is immutable afterwards; every other chunk decoder is
// parameterised by the Endian it fixes.
type Header struct {
	Endian Endian `json:"endian"`
	Size   uint32 `json:"size"`
	Codec  string `json:"codec"`
}

// readHeader reads the four magic bytes, dispatches on RIFX/XFIR to fix
// the container's byte order, then reads size and codec under that
// order.
func readHeader(r *Reader) (Header, error) {
	tag, err := r.ReadRaw(4)
	if err != nil {
		return Header{}, err
	}

	var endian Endian
	switch string(tag) {
	case "RIFX":
		endian = BigEndian
	case "XFIR":
		endian = LittleEndian
	default:
		return Header{}, fmt.Errorf("%w: preamble tag %q", ErrMalformedHeader, string(tag))
	}

	size, err := r.ReadU32(endian)
	if err != nil {
		return Header{}, err
	}

	codec, err := r.ReadFourCC(endian)
	if err != nil {
		return Header{}, err
	}

	return Header{Endian: endian, Size: size, Codec: codec}, nil
}
