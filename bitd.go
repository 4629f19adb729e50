// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

// BitmapData is the raw compressed payload of a BITD chunk, always read
// big-endian (i.e. verbatim, with no byte reordering) regardless of the
// container's endian.
type BitmapData struct {
	Data []byte `json:"-"`
}

func readBitmapData(r *Reader, e Endian) (BitmapData, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return BitmapData{}, err
	}
	if tag != "BITD" {
		return BitmapData{}, malformedChunk("BITD", tag)
	}

	size, err := r.ReadU32(e)
	if err != nil {
		return BitmapData{}, err
	}

	raw, err := r.ReadRaw(size)
	if err != nil {
		return BitmapData{}, err
	}

	data := make([]byte, len(raw))
	copy(data, raw)

	return BitmapData{Data: data}, nil
}
