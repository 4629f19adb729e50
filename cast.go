// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"fmt"
	"unicode/utf8"
)

// CastKind enumerates the kinds of cast member a CASt chunk can
// describe. Only Bitmap carries a type-specific block this decoder
// understands; every other kind is recognised but its specific block is
// left unparsed.
type CastKind uint32

const (
	CastKindBitmap CastKind = iota + 1
	CastKindFilmLoop
	CastKindStyledText
	CastKindPalette
	CastKindPicture
	CastKindSound
	CastKindButton
	CastKindShape
	CastKindMovie
	CastKindDigitalVideo
	CastKindScript
	CastKindText
	CastKindOLE
	CastKindTransition
	CastKindXtra
)

func (k CastKind) String() string {
	names := map[CastKind]string{
		CastKindBitmap:       "Bitmap",
		CastKindFilmLoop:     "FilmLoop",
		CastKindStyledText:   "StyledText",
		CastKindPalette:      "Palette",
		CastKindPicture:      "Picture",
		CastKindSound:        "Sound",
		CastKindButton:       "Button",
		CastKindShape:        "Shape",
		CastKindMovie:        "Movie",
		CastKindDigitalVideo: "DigitalVideo",
		CastKindScript:       "Script",
		CastKindText:         "Text",
		CastKindOLE:          "OLE",
		CastKindTransition:   "Transition",
		CastKindXtra:         "Xtra",
	}
	if name, ok := names[k]; ok {
		return name
	}
	return "Unknown"
}

// PropertyKey names the small fixed set of CASt properties this decoder
// extracts. Every other property index is consumed and discarded.
type PropertyKey int

const (
	PropertyName         PropertyKey = 1
	PropertyXtraName     PropertyKey = 10
	PropertyBitmapWidth  PropertyKey = 22
	PropertyBitmapHeight PropertyKey = 23
	PropertyBitmapDepth  PropertyKey = 24
)

// CastProperties is the per-member property block: a finite
// heterogeneous record, modelled as a struct with one field per
// recognised property rather than a map from key to an erased value, so
// each key's value type is explicit and there is no downcast step.
type CastProperties struct {
	Kind CastKind `json:"kind"`

	// GeneralSize and SpecificSize are consumed, not interpreted; kept
	// for round-trip fidelity should a write path ever be added.
	GeneralSize  uint32 `json:"general_size,omitempty"`
	SpecificSize uint32 `json:"specific_size,omitempty"`

	Name     string `json:"name,omitempty"`
	XtraName string `json:"xtra_name,omitempty"`

	// Populated only when Kind == CastKindBitmap.
	BitmapWidth  uint16 `json:"bitmap_width,omitempty"`
	BitmapHeight uint16 `json:"bitmap_height,omitempty"`
	BitmapDepth  uint8  `json:"bitmap_depth,omitempty"`
}

func readCastProperties(r *Reader, e Endian) (CastProperties, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return CastProperties{}, err
	}
	if tag != "CASt" {
		return CastProperties{}, malformedChunk("CASt", tag)
	}

	if _, err := r.ReadU32(e); err != nil { // size, unused
		return CastProperties{}, err
	}

	kindVal, err := r.ReadU32(BigEndian)
	if err != nil {
		return CastProperties{}, err
	}
	kind := CastKind(kindVal)
	if kind < CastKindBitmap || kind > CastKindXtra {
		return CastProperties{}, fmt.Errorf("%w: %d", ErrUnknownCastKind, kindVal)
	}

	generalSize, err := r.ReadU32(BigEndian)
	if err != nil {
		return CastProperties{}, err
	}
	specificSize, err := r.ReadU32(BigEndian)
	if err != nil {
		return CastProperties{}, err
	}

	for i := 0; i < 5; i++ { // five u32 fillers
		if _, err := r.ReadU32(BigEndian); err != nil {
			return CastProperties{}, err
		}
	}

	offsetCount, err := r.ReadU16(BigEndian)
	if err != nil {
		return CastProperties{}, err
	}

	offsets := make([]uint32, int(offsetCount)+1)
	for i := range offsets {
		off, err := r.ReadU32(BigEndian)
		if err != nil {
			return CastProperties{}, err
		}
		offsets[i] = off
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return CastProperties{}, fmt.Errorf("%w: CASt property offsets are not non-decreasing", ErrMalformedChunk)
		}
	}

	props := CastProperties{
		Kind:         kind,
		GeneralSize:  generalSize,
		SpecificSize: specificSize,
	}

	for i := 0; i < int(offsetCount); i++ {
		length := offsets[i+1] - offsets[i]
		if length == 0 {
			continue
		}

		switch i {
		case int(PropertyName):
			strLen, err := r.ReadU8()
			if err != nil {
				return CastProperties{}, err
			}
			clamped := uint32(strLen)
			if clamped > length-1 {
				clamped = length - 1
			}
			nameBytes, err := r.ReadRaw(clamped)
			if err != nil {
				return CastProperties{}, err
			}
			if !utf8.Valid(nameBytes) {
				return CastProperties{}, fmt.Errorf("%w: CASt name", ErrInvalidUTF8)
			}
			props.Name = string(nameBytes)
			// str_len normally accounts for the whole of length-1; when
			// it doesn't, the leftover bytes still belong to this
			// property slot and must be consumed so the cursor lands
			// on offsets[i+1] for the next property.
			if consumed := 1 + clamped; consumed < length {
				if _, err := r.ReadRaw(length - consumed); err != nil {
					return CastProperties{}, err
				}
			}

		case int(PropertyXtraName):
			nameBytes, err := r.ReadRaw(length)
			if err != nil {
				return CastProperties{}, err
			}
			if !utf8.Valid(nameBytes) {
				return CastProperties{}, fmt.Errorf("%w: CASt xtra name", ErrInvalidUTF8)
			}
			// Trailing NUL is retained, per the source's observed
			// behavior.
			props.XtraName = string(nameBytes)

		default:
			if _, err := r.ReadRaw(length); err != nil {
				return CastProperties{}, err
			}
		}
	}

	if kind == CastKindBitmap {
		if err := readBitmapSpecificBlock(r, &props); err != nil {
			return CastProperties{}, err
		}
	}

	return props, nil
}

func readBitmapSpecificBlock(r *Reader, props *CastProperties) error {
	if _, err := r.ReadU16(BigEndian); err != nil { // filler
		return err
	}

	top, err := r.ReadU16(BigEndian)
	if err != nil {
		return err
	}
	left, err := r.ReadU16(BigEndian)
	if err != nil {
		return err
	}
	bottom, err := r.ReadU16(BigEndian)
	if err != nil {
		return err
	}
	right, err := r.ReadU16(BigEndian)
	if err != nil {
		return err
	}

	for i := 0; i < 2; i++ { // two u32 fillers
		if _, err := r.ReadU32(BigEndian); err != nil {
			return err
		}
	}

	if _, err := r.ReadU16(BigEndian); err != nil { // point_x
		return err
	}
	if _, err := r.ReadU16(BigEndian); err != nil { // point_y
		return err
	}

	if _, err := r.ReadU8(); err != nil { // filler
		return err
	}
	depth, err := r.ReadU8()
	if err != nil {
		return err
	}

	for i := 0; i < 2; i++ { // two i16 fillers, observed -1 and -101
		if _, err := r.ReadU16(BigEndian); err != nil {
			return err
		}
	}

	props.BitmapWidth = right - left
	props.BitmapHeight = bottom - top
	props.BitmapDepth = depth

	return nil
}
