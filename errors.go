// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"errors"
	"fmt"
)

// Error taxonomy for the container decoder. Chunk decoders return one of
// these sentinels (wrapped with context via fmt.Errorf's %w) so callers
// can branch on kind with errors.Is.
var (
	// ErrUnexpectedEOF is returned when a read runs past the end of the
	// byte source.
	ErrUnexpectedEOF = errors.New("director: unexpected end of file")

	// ErrMalformedHeader is returned when the preamble tag is neither
	// RIFX nor XFIR.
	ErrMalformedHeader = errors.New("director: malformed header")

	// ErrMalformedChunk is returned when a chunk decoder sees a
	// mismatched magic, or structural invariants (non-decreasing
	// offsets, expected counts) are violated.
	ErrMalformedChunk = errors.New("director: malformed chunk")

	// ErrUnknownCastKind is returned when CASt.kind falls outside 1..15.
	ErrUnknownCastKind = errors.New("director: unknown cast kind")

	// ErrUnsupportedBitmapDepth is returned when a Bitmap member has a
	// bit depth other than 32.
	ErrUnsupportedBitmapDepth = errors.New("director: unsupported bitmap depth")

	// ErrTruncatedBitmap is returned in strict mode when the RLE stream
	// ends before the pixel matrix is fully written.
	ErrTruncatedBitmap = errors.New("director: truncated bitmap")

	// ErrInvalidUTF8 is returned when a length-prefixed string is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("director: invalid utf8 string")

	// ErrInvalidOffset is returned when a mmap-derived offset points
	// outside the file.
	ErrInvalidOffset = errors.New("director: invalid offset")
)

// malformedChunk builds an ErrMalformedChunk wrapping the expected and
// found fourCC tags.
func malformedChunk(expected, found string) error {
	return fmt.Errorf("%w: expected %q, found %q", ErrMalformedChunk, expected, found)
}
