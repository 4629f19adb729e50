// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// ExpandBitmap decodes a BITD run-length encoded payload into a
// height-by-width matrix of 4-byte pixels, represented as *image.RGBA
// rather than a hand-rolled matrix type — the same representation the
// pack reaches for once raw resource bytes become pixels.
//
// Only depth == 32 is supported. strict controls what happens when the
// payload ends before the matrix is fully written: strict returns
// ErrTruncatedBitmap, tolerant returns the partially filled image.
func ExpandBitmap(data []byte, width, height int, depth uint8, strict bool) (*image.RGBA, error) {
	if depth != 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitmapDepth, depth)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255 // initial alpha, per the documented default tuple
	}

	if width == 0 || height == 0 {
		return img, nil
	}

	x, y, c := 0, 0, 0
	pos := 0

	// writePixel assigns b to the current (x, y, c) cell, then advances
	// position exactly as specified: x first, then channel plane on a
	// row wrap, then row on a channel wrap. It reports whether the
	// matrix is now fully written.
	writePixel := func(b byte) bool {
		img.Pix[img.PixOffset(x, y)+c] = b
		x++
		if x == width {
			x = 0
			c = (c + 1) % 4
			if c == 0 {
				y++
			}
		}
		return y == height
	}

	truncated := false

loop:
	for y < height {
		if pos >= len(data) {
			truncated = true
			break
		}
		n := data[pos]
		pos++

		if n >= 128 {
			if pos >= len(data) {
				truncated = true
				break
			}
			b := data[pos]
			pos++
			run := 257 - int(n)
			for k := 0; k < run; k++ {
				if writePixel(b) {
					break loop
				}
			}
		} else {
			run := int(n) + 1
			for k := 0; k < run; k++ {
				if pos >= len(data) {
					truncated = true
					break loop
				}
				b := data[pos]
				pos++
				if writePixel(b) {
					break loop
				}
			}
		}
	}

	if truncated && y != height && strict {
		return nil, ErrTruncatedBitmap
	}

	return img, nil
}

// EncodeBitmapPNG round-trips a decoded bitmap through image/png, the
// way the pack's own icon handling turns decoded resource pixels into a
// shippable image.
func EncodeBitmapPNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
