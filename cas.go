// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package director

// CastTable is a cast's ordered list of member resource ids. A zero id
// denotes an empty slot.
type CastTable struct {
	MemberIDs []uint32 `json:"member_ids"`
}

func readCastTable(r *Reader, e Endian) (CastTable, error) {
	tag, err := r.ReadFourCC(e)
	if err != nil {
		return CastTable{}, err
	}
	if tag != "CAS*" {
		return CastTable{}, malformedChunk("CAS*", tag)
	}

	size, err := r.ReadU32(e)
	if err != nil {
		return CastTable{}, err
	}

	count := size / 4
	ids := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		id, err := r.ReadU32(BigEndian)
		if err != nil {
			return CastTable{}, err
		}
		ids = append(ids, id)
	}

	return CastTable{MemberIDs: ids}, nil
}
