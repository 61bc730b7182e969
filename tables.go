package db2reader

import (
	"encoding/binary"
	"sort"
)

/*
The auxiliary tables are best-effort loaders: a short tail stops
decoding early instead of failing, and the caller can compare the
decoded count against the declared one. Partial game-data files are
common in practice and fewer records beat no data at all.
*/

// IDList is the ordered ID sequence of one section. Position is the
// local record index in dense sections and the catalog slot in sparse
// ones.
type IDList struct {
	IDs []uint32
}

func DecodeIDList(data []byte) *IDList {
	count := len(data) / ID_LIST_ENTRY_SIZE
	list := &IDList{IDs: make([]uint32, count)}
	for i := 0; i < count; i++ {
		list.IDs[i] = readUint32(data, i*ID_LIST_ENTRY_SIZE)
	}
	return list
}

func (l *IDList) Len() int {
	return len(l.IDs)
}

// OffsetMapEntry locates one sparse record: an absolute file offset
// and an explicit size. A nil entry means no record at that slot.
type OffsetMapEntry struct {
	Offset uint32
	Size   uint16
}

// OffsetMap is the sparse catalog's offset/size side, parallel to the
// section's IDList.
type OffsetMap struct {
	Entries []*OffsetMapEntry
}

func DecodeOffsetMap(data []byte, count int) *OffsetMap {
	m := &OffsetMap{Entries: make([]*OffsetMapEntry, 0, count)}
	for i := 0; i < count; i++ {
		base := i * OFFSET_MAP_ENTRY_SIZE
		if base+OFFSET_MAP_ENTRY_SIZE > len(data) {
			break
		}
		offset := readUint32(data, base)
		size := binary.LittleEndian.Uint16(data[base+4:])
		if offset == 0 {
			// absent slot, never a zero-length record
			m.Entries = append(m.Entries, nil)
			continue
		}
		m.Entries = append(m.Entries, &OffsetMapEntry{Offset: offset, Size: size})
	}
	return m
}

func (m *OffsetMap) Len() int {
	return len(m.Entries)
}

// Entry returns the catalog entry at slot i, nil when the slot is
// absent or out of range.
func (m *OffsetMap) Entry(i int) *OffsetMapEntry {
	if i < 0 || i >= len(m.Entries) {
		return nil
	}
	return m.Entries[i]
}

// CopyTable aliases record IDs: a record under a new ID has no stored
// payload and is served from its source row's decoded fields. The
// redirect is the orchestrator's job; this table only answers lookups.
type CopyTable struct {
	entries map[uint32]uint32
}

func NewCopyTable() *CopyTable {
	return &CopyTable{entries: make(map[uint32]uint32)}
}

// DecodeInto appends the flat (newId, sourceId) pairs of one section.
func (ct *CopyTable) DecodeInto(data []byte, count int) (decoded int) {
	for i := 0; i < count; i++ {
		base := i * COPY_TABLE_ENTRY_SIZE
		if base+COPY_TABLE_ENTRY_SIZE > len(data) {
			break
		}
		ct.entries[readUint32(data, base)] = readUint32(data, base+4)
		decoded++
	}
	return decoded
}

func (ct *CopyTable) IsCopy(id uint32) bool {
	_, ok := ct.entries[id]
	return ok
}

func (ct *CopyTable) SourceRowID(id uint32) (source uint32, ok bool) {
	source, ok = ct.entries[id]
	return source, ok
}

func (ct *CopyTable) Len() int {
	return len(ct.entries)
}

// ParentLookupTable is the one-to-many foreign-key index from a parent
// ID to the ordered child record indices. Purely informational; never
// consulted for field decoding and never mutated after load.
type ParentLookupTable struct {
	children map[uint32][]uint32
}

func NewParentLookupTable() *ParentLookupTable {
	return &ParentLookupTable{children: make(map[uint32][]uint32)}
}

func (pt *ParentLookupTable) DecodeInto(data []byte) (decoded int) {
	count := len(data) / PARENT_LOOKUP_ENTRY_SIZE
	for i := 0; i < count; i++ {
		base := i * PARENT_LOOKUP_ENTRY_SIZE
		parent := readUint32(data, base)
		child := readUint32(data, base+4)
		pt.children[parent] = append(pt.children[parent], child)
		decoded++
	}
	return decoded
}

func (pt *ParentLookupTable) Children(parent uint32) []uint32 {
	return pt.children[parent]
}

func (pt *ParentLookupTable) Len() int {
	return len(pt.children)
}

// Parents returns the parent IDs in ascending order.
func (pt *ParentLookupTable) Parents() []uint32 {
	parents := make([]uint32, 0, len(pt.children))
	for parent := range pt.children {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
	return parents
}
