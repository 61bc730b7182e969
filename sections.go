package db2reader

import "sort"

type sectionRef struct {
	section int
	local   uint32
}

/*
SectionManager merges every section's ID list into one global
id -> (section, local index) map. Built fully during load, read-only
afterward. When the same ID appears in more than one section the first
section added stays authoritative; later occurrences are counted as
collisions instead of silently overwriting.
*/
type SectionManager struct {
	index      map[uint32]sectionRef
	collisions uint64
}

func NewSectionManager() *SectionManager {
	return &SectionManager{index: make(map[uint32]sectionRef)}
}

func (sm *SectionManager) AddSection(section int, ids *IDList) {
	for local, id := range ids.IDs {
		if _, exists := sm.index[id]; exists {
			sm.collisions++
			continue
		}
		sm.index[id] = sectionRef{section: section, local: uint32(local)}
	}
}

// Resolve maps a global record ID to its owning section and the
// record's local index within it.
func (sm *SectionManager) Resolve(id uint32) (section int, local uint32, ok bool) {
	ref, ok := sm.index[id]
	if !ok {
		return 0, 0, false
	}
	return ref.section, ref.local, true
}

func (sm *SectionManager) Len() int {
	return len(sm.index)
}

func (sm *SectionManager) Collisions() uint64 {
	return sm.collisions
}

// IDs returns every known record ID in ascending order.
func (sm *SectionManager) IDs() []uint32 {
	ids := make([]uint32, 0, len(sm.index))
	for id := range sm.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
