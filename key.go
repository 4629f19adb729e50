// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

// RootOwner is the pseudo-owner id denoting the movie/cast root, used
// to locate top-level resources such as MCsL and CAS*.
const RootOwner uint32 = 0x400

// Key is one (owned, owner, tag) edge of the key table's lookup graph:
// resource owner owns resource owned, which is of kind tag.
type Key struct {
	Owned uint32 `json:"owned"`
	Owner uint32 `json:"owner"`
	Tag   string `json:"tag"`
}

// KeyTable associates (owner id, fourCC) pairs with an owned resource
// id. It is the only source of edges in the container's lookup graph.
type KeyTable struct {
	Keys []Key `json:"keys"`
}

// Lookup returns the first owned id matching (owner, tag), in table
// order, or false if none matches.
func (kt KeyTable) Lookup(owner uint32, tag string) (uint32, bool) {
	for _, k := range kt.Keys {
		if k.Owner == owner && k.Tag == tag {
			return k.Owned, true
		}
	}
	return 0, false
}

// LookupAll returns every owned id matching (owner, tag), in table
// order. Lookup's first-match semantics are unaffected; this exists for
// callers that need every member of a kind a resource owns.
func (kt KeyTable) LookupAll(owner uint32, tag string) []uint32 {
	var owned []uint32
	for _, k := range kt.Keys {
		if k.Owner == owner && k.Tag == tag {
			owned = append(owned, k.Owned)
		}
	}
	return owned
}

func readKeyTable(r *Reader, e Endian) (KeyTable, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return KeyTable{}, err
	}
	if tag != "KEY*" {
		return KeyTable{}, malformedChunk("KEY*", tag)
	}

	if _, err := r.ReadU32(e); err != nil { // size, unused
		return KeyTable{}, err
	}
	if _, err := r.ReadU16(e); err != nil { // filler
		return KeyTable{}, err
	}
	if _, err := r.ReadU16(e); err != nil { // filler
		return KeyTable{}, err
	}

	if _, err := r.ReadU32(e); err != nil { // max_key_count, unused
		return KeyTable{}, err
	}
	used, err := r.ReadU32(e)
	if err != nil {
		return KeyTable{}, err
	}

	keys := make([]Key, 0, used)
	for i := uint32(0); i < used; i++ {
		owned, err := r.ReadU32(e)
		if err != nil {
			return KeyTable{}, err
		}
		owner, err := r.ReadU32(e)
		if err != nil {
			return KeyTable{}, err
		}
		keyTag, err := r.ReadFourCC(e)
		if err != nil {
			return KeyTable{}, err
		}
		keys = append(keys, Key{Owned: owned, Owner: owner, Tag: keyTag})
	}

	return KeyTable{Keys: keys}, nil
}
