// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// --- fixture construction helpers -----------------------------------
//
// No real .dir/.cxt sample files accompany this decoder, so tests build
// minimal RIFX containers byte-by-byte, the way a binary format's own
// test suite has to when it owns the only encoder and decoder for its
// wire format.

func wU8(buf *bytes.Buffer, v uint8)   { buf.WriteByte(v) }
func wU16(buf *bytes.Buffer, v uint16) { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); buf.Write(b[:]) }
func wU32(buf *bytes.Buffer, v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); buf.Write(b[:]) }

// wU16e and wU32e write under the given container endian, for the
// fields that flip byte order with the container: the structural tables
// (header, imap, mmap, KEY*) and every chunk's size field. The bodies of
// MCsL, CASt and CAS*, which the decoders always read big-endian
// regardless of container, keep using the fixed-BigEndian wU16/wU32 above.
func wU16e(buf *bytes.Buffer, e Endian, v uint16) {
	var b [2]byte
	if e == LittleEndian {
		binary.LittleEndian.PutUint16(b[:], v)
	} else {
		binary.BigEndian.PutUint16(b[:], v)
	}
	buf.Write(b[:])
}

func wU32e(buf *bytes.Buffer, e Endian, v uint32) {
	var b [4]byte
	if e == LittleEndian {
		binary.LittleEndian.PutUint32(b[:], v)
	} else {
		binary.BigEndian.PutUint32(b[:], v)
	}
	buf.Write(b[:])
}

func wTag(buf *bytes.Buffer, tag string) {
	if len(tag) != 4 {
		panic("fourCC fixtures must be exactly 4 bytes: " + tag)
	}
	buf.WriteString(tag)
}

// wTagE writes a structural fourCC tag the way it actually sits on disk
// under e: ReadFourCC reverses the on-disk bytes when e is LittleEndian
// (see endian.go's ReadBytes), so an XFIR fixture must store the tag
// byte-reversed for it to decode back to the logical string.
func wTagE(buf *bytes.Buffer, e Endian, tag string) {
	if len(tag) != 4 {
		panic("fourCC fixtures must be exactly 4 bytes: " + tag)
	}
	b := []byte(tag)
	if e == LittleEndian {
		b = []byte{b[3], b[2], b[1], b[0]}
	}
	buf.Write(b)
}

type mmapEntryFixture struct {
	tag    string
	size   uint32
	offset uint32
}

func writeMmap(buf *bytes.Buffer, e Endian, entries []mmapEntryFixture) {
	wTagE(buf, e, "mmap")
	wU32e(buf, e, 0) // size, unused
	wU16e(buf, e, 0) // filler
	wU16e(buf, e, 0) // filler
	wU32e(buf, e, uint32(len(entries)))
	wU32e(buf, e, uint32(len(entries)))
	wU32e(buf, e, 0)
	wU32e(buf, e, 0)
	wU32e(buf, e, 0)
	for _, entry := range entries {
		wTagE(buf, e, entry.tag)
		wU32e(buf, e, entry.size)
		wU32e(buf, e, entry.offset)
		wU16e(buf, e, 0)
		wU16e(buf, e, 0)
		wU16e(buf, e, 0)
	}
}

type keyFixture struct {
	owned uint32
	owner uint32
	tag   string
}

func writeKeyTable(buf *bytes.Buffer, e Endian, keys []keyFixture) {
	wTagE(buf, e, "KEY*")
	wU32e(buf, e, 0) // size, unused
	wU16e(buf, e, 0) // filler
	wU16e(buf, e, 0) // filler
	wU32e(buf, e, uint32(len(keys)))
	wU32e(buf, e, uint32(len(keys)))
	for _, k := range keys {
		wU32e(buf, e, k.owned)
		wU32e(buf, e, k.owner)
		wTagE(buf, e, k.tag)
	}
}

type castRefFixture struct {
	name string
	path string
}

func writeMovieCastList(buf *bytes.Buffer, e Endian, refs []castRefFixture) {
	wTagE(buf, e, "MCsL")
	wU32e(buf, e, 0) // size, unused
	wU32(buf, 0) // filler
	wU32(buf, uint32(len(refs)))
	wU16(buf, 0) // filler
	wU32(buf, 0) // x, no extra fillers in this fixture
	wU32(buf, 0) // one more filler
	for _, ref := range refs {
		wU8(buf, uint8(len(ref.name)))
		buf.WriteString(ref.name)
		wU8(buf, 0) // filler
		wU8(buf, uint8(len(ref.path)))
		buf.WriteString(ref.path)
		wU8(buf, 0) // filler
		if ref.path != "" {
			wU8(buf, 0) // extra filler for non-empty path
		}
		wU8(buf, 0) // min
		wU8(buf, 0) // max
		wU16(buf, 0) // memberCount
		wU32(buf, 0) // id
	}
}

func writeCastTable(buf *bytes.Buffer, e Endian, memberIDs []uint32) {
	wTagE(buf, e, "CAS*")
	wU32e(buf, e, uint32(len(memberIDs))*4)
	for _, id := range memberIDs {
		wU32(buf, id)
	}
}

func writeBitmapCASt(buf *bytes.Buffer, e Endian, name string, top, left, bottom, right uint16, depth uint8) {
	wTagE(buf, e, "CASt")
	wU32e(buf, e, 0) // size, unused
	wU32(buf, uint32(CastKindBitmap))
	wU32(buf, 0) // generalSize
	wU32(buf, 0) // specificSize
	for i := 0; i < 5; i++ {
		wU32(buf, 0)
	}

	wU16(buf, 2) // offsetCount: properties 0 (empty) and 1 (Name)
	wU32(buf, 0)
	wU32(buf, 0)
	wU32(buf, uint32(1+len(name)))

	// property 1: Name
	wU8(buf, uint8(len(name)))
	buf.WriteString(name)

	// bitmap-specific block
	wU16(buf, 0) // filler
	wU16(buf, top)
	wU16(buf, left)
	wU16(buf, bottom)
	wU16(buf, right)
	wU32(buf, 0)
	wU32(buf, 0)
	wU16(buf, 0) // point_x
	wU16(buf, 0) // point_y
	wU8(buf, 0)  // filler
	wU8(buf, depth)
	wU16(buf, 0)
	wU16(buf, 0)
}

func writeBitd(buf *bytes.Buffer, e Endian, data []byte) {
	wTagE(buf, e, "BITD")
	wU32e(buf, e, uint32(len(data)))
	buf.Write(data) // BITD's payload is always read verbatim, never reversed
}

// writeHeader writes the preamble for the given container endian. The
// magic itself is never byte-reversed (readHeader reads it raw to
// determine endian in the first place); size and codec follow it under e.
func writeHeader(buf *bytes.Buffer, e Endian, codec string) {
	if e == LittleEndian {
		wTag(buf, "XFIR")
	} else {
		wTag(buf, "RIFX")
	}
	wU32e(buf, e, 0) // size, unused by the decoder
	wTagE(buf, e, codec)
}

func writeImap(buf *bytes.Buffer, e Endian, mmapOffset uint32) {
	wTagE(buf, e, "imap")
	wU32e(buf, e, 0) // size, unused
	wU32e(buf, e, 1) // count
	wU32e(buf, e, mmapOffset)
}

// buildBaseMovie assembles header+imap+mmap+KEY* with no MCsL entry,
// under the given container endian.
func buildBaseMovie(e Endian) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, e, "MV93")

	mmapOffset := uint32(buf.Len()) + 16 // imap chunk is always 16 bytes
	writeImap(&buf, e, mmapOffset)

	keyOffset := uint32(buf.Len()) + 32 + 4*18 // mmap fixed header + 4 entries
	writeMmap(&buf, e, []mmapEntryFixture{
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"KEY*", 0, keyOffset},
	})

	writeKeyTable(&buf, e, nil)

	return buf.Bytes()
}

// buildMovieWithCastList assembles a movie whose KEY* points at an MCsL
// naming the given casts, under the given container endian.
func buildMovieWithCastList(e Endian, refs []castRefFixture) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, e, "MV93")

	mmapOffset := uint32(buf.Len()) + 16
	writeImap(&buf, e, mmapOffset)

	keyOffset := uint32(buf.Len()) + 32 + 5*18
	writeMmap(&buf, e, []mmapEntryFixture{
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"KEY*", 0, keyOffset},
		{"MCsL", 0, 0}, // offset patched below
	})

	writeKeyTable(&buf, e, []keyFixture{{owned: 4, owner: RootOwner, tag: "MCsL"}})

	if uint32(buf.Len()) != keyOffset {
		panic("fixture arithmetic drifted for KEY* offset")
	}

	mcslStart := uint32(buf.Len())
	writeMovieCastList(&buf, e, refs)

	out := buf.Bytes()
	patchMmapEntryOffset(out, e, mmapOffset, 4, mcslStart)
	return out
}

// patchMmapEntryOffset overwrites the offset field of mmap entry index
// within an already-serialized buffer, since an entry pointing forward
// to a chunk (like MCsL) can only be known once that chunk is written.
func patchMmapEntryOffset(data []byte, e Endian, mmapOffset uint32, index int, offset uint32) {
	entryStart := mmapOffset + 32 + uint32(index)*18
	field := data[entryStart+8 : entryStart+12]
	if e == LittleEndian {
		binary.LittleEndian.PutUint32(field, offset)
	} else {
		binary.BigEndian.PutUint32(field, offset)
	}
}

// buildExternalCast assembles a self-contained .cxt file with one
// bitmap member, under the given container endian.
func buildExternalCast(e Endian) []byte {
	var buf bytes.Buffer
	writeHeader(&buf, e, "MV93")

	mmapOffset := uint32(buf.Len()) + 16
	writeImap(&buf, e, mmapOffset)

	const numEntries = 7
	keyOffset := uint32(buf.Len()) + 32 + numEntries*18
	writeMmap(&buf, e, []mmapEntryFixture{
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"Fake", 0, 0},
		{"KEY*", 0, keyOffset},
		{"CAS*", 0, 0}, // patched
		{"CASt", 0, 0}, // patched
		{"BITD", 0, 0}, // patched
	})

	writeKeyTable(&buf, e, []keyFixture{
		{owned: 4, owner: RootOwner, tag: "CAS*"},
		{owned: 6, owner: 5, tag: "BITD"},
	})
	if uint32(buf.Len()) != keyOffset {
		panic("fixture arithmetic drifted for KEY* offset")
	}

	castTableOffset := uint32(buf.Len())
	writeCastTable(&buf, e, []uint32{5})

	castOffset := uint32(buf.Len())
	writeBitmapCASt(&buf, e, "Bm", 0, 0, 2, 2, 32)

	bitdOffset := uint32(buf.Len())
	writeBitd(&buf, e, []byte{15, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})

	out := buf.Bytes()
	patchMmapEntryOffset(out, e, mmapOffset, 4, castTableOffset)
	patchMmapEntryOffset(out, e, mmapOffset, 5, castOffset)
	patchMmapEntryOffset(out, e, mmapOffset, 6, bitdOffset)
	return out
}

func TestOpenBytesBaseMovie(t *testing.T) {
	df, err := OpenBytes(buildBaseMovie(BigEndian), nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer df.Close()

	if df.State() != StateDone {
		t.Errorf("State() = %v, want %v", df.State(), StateDone)
	}
	if df.Header.Endian != BigEndian {
		t.Errorf("Header.Endian = %v, want BigEndian", df.Header.Endian)
	}
	if df.CastList != nil {
		t.Errorf("CastList = %+v, want nil (no MCsL in this fixture)", df.CastList)
	}
}

func TestOpenBytesInternalCastOnly(t *testing.T) {
	df, err := OpenBytes(buildMovieWithCastList(BigEndian, []castRefFixture{{name: "Internal"}}), nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer df.Close()

	if df.CastList == nil || len(df.CastList.Entries) != 1 {
		t.Fatalf("CastList = %+v, want one entry", df.CastList)
	}
	if !df.CastList.Entries[0].IsInternal() {
		t.Errorf("Entries[0].IsInternal() = false, want true")
	}
	if len(df.ExternalCasts) != 0 {
		t.Errorf("ExternalCasts = %+v, want none resolved for an Internal-only list", df.ExternalCasts)
	}
}

func TestOpenBytesMalformedHeader(t *testing.T) {
	_, err := OpenBytes([]byte("not-a-director-file-at-all-00000000"), nil)
	if err == nil {
		t.Fatal("OpenBytes succeeded, want a malformed header error")
	}
}

func TestOpenResolvesExternalBitmapCast(t *testing.T) {
	dir := t.TempDir()

	mainPath := filepath.Join(dir, "movie.dir")
	if err := os.WriteFile(mainPath, buildMovieWithCastList(BigEndian, []castRefFixture{{name: "Ext"}}), 0o644); err != nil {
		t.Fatalf("writing main fixture: %v", err)
	}

	extPath := filepath.Join(dir, "Ext.cxt")
	if err := os.WriteFile(extPath, buildExternalCast(BigEndian), 0o644); err != nil {
		t.Fatalf("writing external cast fixture: %v", err)
	}

	df, err := Open(mainPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer df.Close()

	if len(df.ExternalCasts) != 1 {
		t.Fatalf("ExternalCasts = %+v, want exactly one resolved cast", df.ExternalCasts)
	}
	ext := df.ExternalCasts[0]
	if ext.Name != "Ext" {
		t.Errorf("ExternalCasts[0].Name = %q, want %q", ext.Name, "Ext")
	}
	if len(ext.Members) != 1 {
		t.Fatalf("ExternalCasts[0].Members = %+v, want exactly one member", ext.Members)
	}

	member := ext.Members[0]
	if member.Properties.Kind != CastKindBitmap {
		t.Errorf("member.Properties.Kind = %v, want %v", member.Properties.Kind, CastKindBitmap)
	}
	if member.Properties.Name != "Bm" {
		t.Errorf("member.Properties.Name = %q, want %q", member.Properties.Name, "Bm")
	}
	if member.Properties.BitmapWidth != 2 || member.Properties.BitmapHeight != 2 {
		t.Errorf("bitmap dims = %dx%d, want 2x2", member.Properties.BitmapWidth, member.Properties.BitmapHeight)
	}
	if member.Bitmap == nil {
		t.Fatal("member.Bitmap is nil, want a decoded image")
	}
	if b := member.Bitmap.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("Bitmap bounds = %v, want 2x2", b)
	}
}

func TestResources(t *testing.T) {
	df, err := OpenBytes(buildBaseMovie(BigEndian), nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer df.Close()

	counts := df.Resources()
	if counts["KEY*"] != 1 {
		t.Errorf("Resources()[\"KEY*\"] = %d, want 1", counts["KEY*"])
	}
	if counts["Fake"] != 3 {
		t.Errorf("Resources()[\"Fake\"] = %d, want 3", counts["Fake"])
	}
}

// TestOpenBytesXFIRLittleEndian is the LittleEndian counterpart to
// TestOpenBytesBaseMovie: every fixture elsewhere in this file writes a
// BigEndian RIFX container, which never exercises ReadBytes's
// byte-reversal path (endian.go:118-129) that de-mangles structural
// fourCC tags in an XFIR container. This drives the same chunk chain
// (imap -> mmap -> KEY*) through an XFIR/LittleEndian fixture instead.
func TestOpenBytesXFIRLittleEndian(t *testing.T) {
	df, err := OpenBytes(buildBaseMovie(LittleEndian), nil)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	defer df.Close()

	if df.State() != StateDone {
		t.Errorf("State() = %v, want %v", df.State(), StateDone)
	}
	if df.Header.Endian != LittleEndian {
		t.Errorf("Header.Endian = %v, want LittleEndian", df.Header.Endian)
	}
	if df.Header.Codec != "MV93" {
		t.Errorf("Header.Codec = %q, want %q (fourCC must round-trip through byte-reversal)", df.Header.Codec, "MV93")
	}

	counts := df.Resources()
	if counts["KEY*"] != 1 {
		t.Errorf("Resources()[\"KEY*\"] = %d, want 1", counts["KEY*"])
	}
	if counts["Fake"] != 3 {
		t.Errorf("Resources()[\"Fake\"] = %d, want 3", counts["Fake"])
	}
}

// TestOpenResolvesExternalBitmapCastXFIR repeats
// TestOpenResolvesExternalBitmapCast entirely under XFIR/LittleEndian,
// so the full imap/mmap/KEY*/MCsL/CAS*/CASt/BITD chain - not just the
// header - is proven to resolve when every structural tag on disk is
// byte-reversed. BITD's own payload bytes must come through unreversed
// regardless, since writeBitd/readBitmapData always treat them as raw.
func TestOpenResolvesExternalBitmapCastXFIR(t *testing.T) {
	dir := t.TempDir()

	mainPath := filepath.Join(dir, "movie.dir")
	if err := os.WriteFile(mainPath, buildMovieWithCastList(LittleEndian, []castRefFixture{{name: "Ext"}}), 0o644); err != nil {
		t.Fatalf("writing main fixture: %v", err)
	}

	extPath := filepath.Join(dir, "Ext.cxt")
	if err := os.WriteFile(extPath, buildExternalCast(LittleEndian), 0o644); err != nil {
		t.Fatalf("writing external cast fixture: %v", err)
	}

	df, err := Open(mainPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer df.Close()

	if df.Header.Endian != LittleEndian {
		t.Errorf("Header.Endian = %v, want LittleEndian", df.Header.Endian)
	}
	if len(df.ExternalCasts) != 1 {
		t.Fatalf("ExternalCasts = %+v, want exactly one resolved cast", df.ExternalCasts)
	}
	ext := df.ExternalCasts[0]
	if ext.Name != "Ext" {
		t.Errorf("ExternalCasts[0].Name = %q, want %q", ext.Name, "Ext")
	}
	if len(ext.Members) != 1 {
		t.Fatalf("ExternalCasts[0].Members = %+v, want exactly one member", ext.Members)
	}

	member := ext.Members[0]
	if member.Properties.Name != "Bm" {
		t.Errorf("member.Properties.Name = %q, want %q", member.Properties.Name, "Bm")
	}
	if member.Bitmap == nil {
		t.Fatal("member.Bitmap is nil, want a decoded image")
	}
	if b := member.Bitmap.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Errorf("Bitmap bounds = %v, want 2x2", b)
	}
}
