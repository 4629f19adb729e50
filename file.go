// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-kratos/kratos/v2/log"
)

// State is the traversal orchestrator's state machine: states progress
// unconditionally on success, and any fatal failure while parsing the
// main container moves straight to StateFailed. Failures resolving an
// external cast never reach this machine — they are absorbed as
// warnings by resolveExternalCast and the traversal continues.
type State int

const (
	StateOpening State = iota
	StateHeaderRead
	StateMapsRead
	StateCastsResolved
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "Opening"
	case StateHeaderRead:
		return "HeaderRead"
	case StateMapsRead:
		return "MapsRead"
	case StateCastsResolved:
		return "CastsResolved"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Options for parsing a movie or external cast file.
type Options struct {
	// Strict makes a truncated BITD stream a hard error instead of
	// returning the partially filled bitmap.
	Strict bool

	// A custom logger.
	Logger log.Logger

	// ExternalCastDir overrides where "<name>.cxt" files are looked for.
	// Defaults to the directory containing the main file; has no
	// default for OpenBytes, so external casts are skipped unless set.
	ExternalCastDir string
}

func resolveOptions(opts *Options) *Options {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = log.NewStdLogger(os.Stdout)
	}
	return &o
}

func helperFor(o *Options) *log.Helper {
	return log.NewHelper(log.NewFilter(o.Logger, log.FilterLevel(log.LevelDebug)))
}

// CastMember is a decoded entry of a cast's CAS* table: its properties,
// and its decoded pixels if it is a supported bitmap.
type CastMember struct {
	ID         uint32         `json:"id"`
	Properties CastProperties `json:"properties"`
	Bitmap     *image.RGBA    `json:"-"`
}

// ExternalCast is a resolved .cxt file referenced from a movie's MCsL.
type ExternalCast struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Members []CastMember `json:"members"`
}

// fileSource owns the bytes backing a parse: either a memory-mapped
// file (Open) or an in-memory buffer (OpenBytes). Close is always safe
// to call, including on a bytes-only source.
type fileSource struct {
	data    []byte
	mapping mmap.MMap
	file    *os.File
}

func openFileSource(path string) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileSource{data: []byte(m), mapping: m, file: f}, nil
}

func bytesSource(data []byte) *fileSource {
	return &fileSource{data: data}
}

func (s *fileSource) Close() error {
	var err error
	if s.mapping != nil {
		err = s.mapping.Unmap()
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// DirectorFile is the decoded object graph of one Director container:
// its header, the three structural tables (imap/mmap/KEY*), and, when
// present, the resolved external casts named by its MCsL.
type DirectorFile struct {
	Header     Header         `json:"header"`
	InitialMap InitialMap     `json:"initial_map"`
	MemoryMap  MemoryMap      `json:"memory_map"`
	KeyTable   KeyTable       `json:"key_table"`
	CastList   *MovieCastList `json:"cast_list,omitempty"`

	ExternalCasts []ExternalCast `json:"external_casts,omitempty"`

	state        State
	src          *fileSource
	externalSrcs []*fileSource
	opts         *Options
	logger       *log.Helper
}

// State returns the orchestrator's current state.
func (df *DirectorFile) State() State { return df.state }

// Resources is a debug accessor: resource tag to count in the memory
// map, also logged at debug level. It is not part of the structural
// decode, purely introspection for callers building tooling on top.
func (df *DirectorFile) Resources() map[string]int {
	counts := make(map[string]int, len(df.MemoryMap.Entries))
	for _, e := range df.MemoryMap.Entries {
		counts[e.Tag]++
	}
	df.logger.Debugf("director: resource counts: %v", counts)
	return counts
}

// Open opens path as a Director movie (or external cast) file, memory
// maps it, and runs the traversal orchestrator.
func Open(path string, opts *Options) (*DirectorFile, error) {
	src, err := openFileSource(path)
	if err != nil {
		return nil, err
	}

	o := resolveOptions(opts)
	if o.ExternalCastDir == "" {
		o.ExternalCastDir = filepath.Dir(path)
	}

	df := &DirectorFile{
		src:    src,
		opts:   o,
		logger: helperFor(o),
	}

	if err := df.parse(); err != nil {
		df.state = StateFailed
		_ = df.Close()
		return nil, err
	}

	return df, nil
}

// OpenBytes parses data already resident in memory, without touching
// the filesystem for the main container. External casts named by MCsL
// are resolved from Options.ExternalCastDir if set; otherwise they are
// skipped and logged, since there is no file to resolve "next to".
func OpenBytes(data []byte, opts *Options) (*DirectorFile, error) {
	o := resolveOptions(opts)

	df := &DirectorFile{
		src:    bytesSource(data),
		opts:   o,
		logger: helperFor(o),
	}

	if err := df.parse(); err != nil {
		df.state = StateFailed
		return nil, err
	}

	return df, nil
}

// Close releases the main file and every resolved external cast file.
// Safe to call on a DirectorFile produced by OpenBytes.
func (df *DirectorFile) Close() error {
	var err error
	if df.src != nil {
		err = df.src.Close()
	}
	for _, s := range df.externalSrcs {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// parse drives the main container's traversal: header, imap, mmap,
// KEY*, and, if present, the MCsL-rooted external casts. Any failure
// here is fatal and returned to the caller of Open/OpenBytes.
func (df *DirectorFile) parse() error {
	df.state = StateOpening

	r := NewReader(df.src.data)

	header, err := readHeader(r)
	if err != nil {
		return err
	}
	df.Header = header
	df.state = StateHeaderRead

	im, err := readInitialMap(r, header.Endian)
	if err != nil {
		return err
	}
	df.InitialMap = im

	r.Seek(im.MMapOffset)
	mm, err := readMemoryMap(r, header.Endian)
	if err != nil {
		return err
	}
	df.MemoryMap = mm

	keyEntry, ok := mm.At(3)
	if !ok {
		return fmt.Errorf("%w: mmap has no entry at the fixed KEY* index 3", ErrInvalidOffset)
	}
	r.Seek(keyEntry.Offset)
	kt, err := readKeyTable(r, header.Endian)
	if err != nil {
		return err
	}
	df.KeyTable = kt
	df.state = StateMapsRead

	owned, ok := kt.Lookup(RootOwner, "MCsL")
	if !ok {
		df.state = StateDone
		return nil
	}

	mcslEntry, ok := mm.At(owned)
	if !ok {
		return fmt.Errorf("%w: MCsL resource id %d out of range", ErrInvalidOffset, owned)
	}
	r.Seek(mcslEntry.Offset)
	castList, err := readMovieCastList(r, header.Endian)
	if err != nil {
		return err
	}
	df.CastList = &castList

	for _, ref := range castList.Entries {
		if ref.IsInternal() {
			continue
		}
		df.resolveExternalCast(ref)
	}

	df.state = StateCastsResolved
	df.state = StateDone
	return nil
}

// resolveExternalCast resolves one MCsL reference against disk. Every
// failure here — missing file, bad format, unsupported member — is
// logged and absorbed; the outer traversal always continues with the
// next reference, unlike a failure parsing the main container.
func (df *DirectorFile) resolveExternalCast(ref CastRef) {
	if df.opts.ExternalCastDir == "" {
		df.logger.Warnf("director: no external cast directory configured, skipping cast %q", ref.Name)
		return
	}

	path := filepath.Join(df.opts.ExternalCastDir, ref.Name+".cxt")

	src, err := openFileSource(path)
	if err != nil {
		df.logger.Warnf("director: skipping external cast %q (%s): %v", ref.Name, path, err)
		return
	}

	// Cheap early reject: a RIFX/XFIR container is arbitrary binary, so
	// mimetype sniffs it as application/octet-stream. If it instead
	// looks like text, it's not a cast file at all (a stray README, a
	// placeholder) and there's no point running the header decoder.
	if kind := mimetype.Detect(src.data); strings.HasPrefix(kind.String(), "text/") {
		df.logger.Warnf("director: skipping external cast %q (%s): looks like %s, not a binary container",
			ref.Name, path, kind.String())
		src.Close()
		return
	}

	ext, err := df.parseExternalCast(ref, src)
	if err != nil {
		df.logger.Warnf("director: failed to parse external cast %q (%s): %v", ref.Name, path, err)
		src.Close()
		return
	}

	df.ExternalCasts = append(df.ExternalCasts, ext)
	df.externalSrcs = append(df.externalSrcs, src)
}

// parseExternalCast parses an external cast's header/imap/mmap/KEY*,
// then resolves and decodes its CAS* member list.
func (df *DirectorFile) parseExternalCast(ref CastRef, src *fileSource) (ExternalCast, error) {
	r := NewReader(src.data)

	header, err := readHeader(r)
	if err != nil {
		return ExternalCast{}, err
	}

	im, err := readInitialMap(r, header.Endian)
	if err != nil {
		return ExternalCast{}, err
	}

	r.Seek(im.MMapOffset)
	mm, err := readMemoryMap(r, header.Endian)
	if err != nil {
		return ExternalCast{}, err
	}

	keyEntry, ok := mm.At(3)
	if !ok {
		return ExternalCast{}, fmt.Errorf("%w: external cast mmap has no entry at the fixed KEY* index 3", ErrInvalidOffset)
	}
	r.Seek(keyEntry.Offset)
	kt, err := readKeyTable(r, header.Endian)
	if err != nil {
		return ExternalCast{}, err
	}

	ext := ExternalCast{Name: ref.Name, Path: ref.Path}

	castTableID, ok := kt.Lookup(RootOwner, "CAS*")
	if !ok {
		df.logger.Warnf("director: external cast %q has no CAS* entry, no members resolved", ref.Name)
		return ext, nil
	}

	ctEntry, ok := mm.At(castTableID)
	if !ok {
		return ExternalCast{}, fmt.Errorf("%w: CAS* resource id %d out of range", ErrInvalidOffset, castTableID)
	}
	r.Seek(ctEntry.Offset)
	castTable, err := readCastTable(r, header.Endian)
	if err != nil {
		return ExternalCast{}, err
	}

	for _, memberID := range castTable.MemberIDs {
		if memberID == 0 {
			continue
		}
		member, ok := df.decodeMember(r, mm, kt, header.Endian, memberID, ref.Name)
		if !ok {
			continue
		}
		ext.Members = append(ext.Members, member)
	}

	return ext, nil
}

// decodeMember decodes a CASt property block and dispatches on kind.
// Only Bitmap members carry further decoding; every other kind is
// logged as unsupported and kept as a properties-only member.
func (df *DirectorFile) decodeMember(r *Reader, mm MemoryMap, kt KeyTable, e Endian, memberID uint32, castName string) (CastMember, bool) {
	entry, ok := mm.At(memberID)
	if !ok {
		df.logger.Warnf("director: cast %q member %d has an invalid resource id", castName, memberID)
		return CastMember{}, false
	}

	r.Seek(entry.Offset)
	props, err := readCastProperties(r, e)
	if err != nil {
		df.logger.Warnf("director: cast %q member %d: %v", castName, memberID, err)
		return CastMember{}, false
	}

	member := CastMember{ID: memberID, Properties: props}

	if props.Kind != CastKindBitmap {
		df.logger.Debugf("director: cast %q member %d is kind %s, unsupported, skipping decode", castName, memberID, props.Kind)
		return member, true
	}

	bitdID, ok := kt.Lookup(memberID, "BITD")
	if !ok {
		df.logger.Debugf("director: cast %q member %d is a bitmap with no BITD entry, skipping", castName, memberID)
		return member, true
	}

	bitdEntry, ok := mm.At(bitdID)
	if !ok {
		df.logger.Warnf("director: cast %q member %d: BITD resource id %d out of range", castName, memberID, bitdID)
		return member, true
	}

	r.Seek(bitdEntry.Offset)
	bitmapData, err := readBitmapData(r, e)
	if err != nil {
		df.logger.Warnf("director: cast %q member %d: %v", castName, memberID, err)
		return member, true
	}

	if props.BitmapDepth != 32 {
		df.logger.Debugf("director: cast %q member %d: unsupported bitmap depth %d, skipping", castName, memberID, props.BitmapDepth)
		return member, true
	}

	img, err := ExpandBitmap(bitmapData.Data, int(props.BitmapWidth), int(props.BitmapHeight), props.BitmapDepth, df.opts.Strict)
	if err != nil {
		df.logger.Warnf("director: cast %q member %d: %v", castName, memberID, err)
		return member, true
	}
	member.Bitmap = img

	return member, true
}
