// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// CastRef is one entry of the Movie Cast List: a reference to a cast
// that may live inside the host container (Name == "Internal") or in an
// external .cxt file.
type CastRef struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Min         uint8  `json:"min"`
	Max         uint8  `json:"max"`
	MemberCount uint16 `json:"member_count"`
	ID          uint32 `json:"id"`
}

// IsInternal reports whether this reference names the host container
// rather than an external cast file.
func (c CastRef) IsInternal() bool {
	return c.Name == "Internal"
}

// MovieCastList enumerates the casts a movie references, internal and
// external.
type MovieCastList struct {
	Entries []CastRef `json:"entries"`
}

// macRomanToUTF8 decodes legacy Mac OS Roman cast/path names into UTF-8.
// Director name and path fields predate any Unicode convention; running
// them through the Mac OS Roman table rather than assuming bytes are
// already valid UTF-8 matches how the rest of the pack treats on-disk
// string bytes of uncertain provenance.
func macRomanToUTF8(b []byte) (string, error) {
	s, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUTF8, err)
	}
	return string(s), nil
}

func readMovieCastList(r *Reader, e Endian) (MovieCastList, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return MovieCastList{}, err
	}
	if tag != "MCsL" {
		return MovieCastList{}, malformedChunk("MCsL", tag)
	}

	if _, err := r.ReadU32(e); err != nil { // size, unused
		return MovieCastList{}, err
	}

	// Everything from here on is big-endian regardless of container
	// endian.
	if _, err := r.ReadU32(BigEndian); err != nil { // filler
		return MovieCastList{}, err
	}

	count, err := r.ReadU32(BigEndian)
	if err != nil {
		return MovieCastList{}, err
	}

	if _, err := r.ReadU16(BigEndian); err != nil { // filler
		return MovieCastList{}, err
	}

	x, err := r.ReadU32(BigEndian)
	if err != nil {
		return MovieCastList{}, err
	}
	for i := uint32(0); i < x; i++ { // x filler u32s
		if _, err := r.ReadU32(BigEndian); err != nil {
			return MovieCastList{}, err
		}
	}
	if _, err := r.ReadU32(BigEndian); err != nil { // one more filler
		return MovieCastList{}, err
	}

	entries := make([]CastRef, 0, count)
	for i := uint32(0); i < count; i++ {
		nameLen, err := r.ReadU8()
		if err != nil {
			return MovieCastList{}, err
		}
		nameBytes, err := r.ReadRaw(uint32(nameLen))
		if err != nil {
			return MovieCastList{}, err
		}
		name, err := macRomanToUTF8(nameBytes)
		if err != nil {
			return MovieCastList{}, err
		}
		if _, err := r.ReadU8(); err != nil { // filler
			return MovieCastList{}, err
		}

		pathLen, err := r.ReadU8()
		if err != nil {
			return MovieCastList{}, err
		}
		pathBytes, err := r.ReadRaw(uint32(pathLen))
		if err != nil {
			return MovieCastList{}, err
		}
		path, err := macRomanToUTF8(pathBytes)
		if err != nil {
			return MovieCastList{}, err
		}
		if _, err := r.ReadU8(); err != nil { // filler
			return MovieCastList{}, err
		}

		if path != "" {
			if _, err := r.ReadU8(); err != nil { // extra filler for non-empty path
				return MovieCastList{}, err
			}
		}

		min, err := r.ReadU8()
		if err != nil {
			return MovieCastList{}, err
		}
		max, err := r.ReadU8()
		if err != nil {
			return MovieCastList{}, err
		}
		memberCount, err := r.ReadU16(BigEndian)
		if err != nil {
			return MovieCastList{}, err
		}
		id, err := r.ReadU32(BigEndian)
		if err != nil {
			return MovieCastList{}, err
		}

		entries = append(entries, CastRef{
			Name:        name,
			Path:        path,
			Min:         min,
			Max:         max,
			MemberCount: memberCount,
			ID:          id,
		})
	}

	return MovieCastList{Entries: entries}, nil
}
