package db2reader

import (
	"fmt"

	"go.uber.org/zap"
)

type LoadState int

const (
	StateUnloaded LoadState = iota
	StateHeadersLoaded
	StateFullyLoaded
)

// LoadStats counts every recoverable skip so best-effort decoding
// stays observable instead of silently swallowed.
type LoadStats struct {
	SectionsSkipped uint64
	TruncatedTables uint64
	IDCollisions    uint64
	PalletReads     uint64
}

/*
Loader decodes one DB2 file: fixed header, column layout, per-section
ID lists and catalogs, copy table and parent lookup. Section and table
state is populated once during Load and treated as read-only
afterward; record bytes are read fresh from the source on every
GetRecord. One loader owns its byte source exclusively.
*/
type Loader struct {
	src    ByteSource
	file   *FileSource
	logger *zap.Logger

	header   *FileHeader
	sections []SectionHeader
	layout   *Layout

	sectionIDs []*IDList
	offsetMaps []*OffsetMap
	copyTable  *CopyTable
	parents    *ParentLookupTable
	manager    *SectionManager

	state LoadState
	stats LoadStats
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger:  logger,
		manager: NewSectionManager(),
	}
}

/*
LoadHeaders decodes the fixed header and section headers only, for
lightweight introspection (record counts, table/layout hash) without
paying for section and table decoding.
*/
func (l *Loader) LoadHeaders(src ByteSource) (err error) {
	if src == nil || !src.IsOpen() {
		return &MalformedHeaderError{Reason: "byte source is not open"}
	}
	if !src.SetPosition(0) {
		return &MalformedHeaderError{Reason: "byte source cannot seek to start"}
	}
	l.header, l.sections, err = DecodeHeader(src)
	if err != nil {
		return err
	}
	l.src = src
	l.state = StateHeadersLoaded
	return nil
}

/*
Load runs the full fixed-order sequence: header, column layout, then
for every section its ID list, copy-table entries, sparse catalog and
parent-lookup data. Structural failures abort the load; a single
section's table failure skips that section, counts it, and continues.
*/
func (l *Loader) Load(src ByteSource) (err error) {
	if err = l.LoadHeaders(src); err != nil {
		return err
	}
	if err = l.loadColumnLayout(); err != nil {
		return fmt.Errorf("column layout: %w", err)
	}

	l.sectionIDs = make([]*IDList, len(l.sections))
	l.offsetMaps = make([]*OffsetMap, len(l.sections))
	l.copyTable = NewCopyTable()
	l.parents = NewParentLookupTable()
	for i := range l.sections {
		if err := l.loadSectionTables(i); err != nil {
			l.stats.SectionsSkipped++
			l.logger.Warn("skipping section",
				zap.String("file", l.src.Name()),
				zap.Int("section", i),
				zap.Error(err))
			continue
		}
		l.manager.AddSection(i, l.sectionIDs[i])
	}
	l.state = StateFullyLoaded
	return nil
}

// LoadFromFile opens path and performs a full Load. The loader owns
// the file handle; Close releases it.
func (l *Loader) LoadFromFile(path string) (err error) {
	fs, err := NewFileSource(path)
	if err != nil {
		return err
	}
	if err = l.Load(fs); err != nil {
		fs.Close()
		return err
	}
	l.file = fs
	return nil
}

func (l *Loader) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// loadColumnLayout decodes the metadata block that immediately follows
// the section headers. The signature selects the variant.
func (l *Loader) loadColumnLayout() error {
	pos := int64(DB2_HEADER_SIZE) + int64(len(l.sections))*DB2_SECTION_HEADER_SIZE
	var size int64
	if l.header.IsCompact() {
		size = int64(l.header.FieldCount) * FIELD_ENTRY_SIZE
	} else {
		size = int64(l.header.ColumnMetaSize)
	}
	if size == 0 {
		l.layout = &Layout{Kind: LayoutBitPacked}
		if l.header.IsCompact() {
			l.layout.Kind = LayoutCompact
		}
		return nil
	}
	if !l.src.SetPosition(pos) {
		return &TruncatedReadError{What: "column metadata block", Want: int(pos + size), Got: int(l.src.Size())}
	}
	data := make([]byte, size)
	if !l.src.Read(data) {
		return &TruncatedReadError{What: "column metadata block", Want: int(size), Got: int(l.src.Size() - pos)}
	}
	if l.header.IsCompact() {
		l.layout = DecodeFieldEntries(data, int(l.header.FieldCount))
	} else {
		l.layout = DecodeColumnMetas(data, int(l.header.FieldCount))
	}
	return nil
}

/*
loadSectionTables decodes one section's auxiliary blocks, which follow
the record (and, in dense sections, string) data in a fixed file
order: ID array, copy-table entries, offset/size catalog, parent
lookup. Every block is read best-effort: a short tail truncates the
block instead of failing the section.
*/
func (l *Loader) loadSectionTables(i int) error {
	sec := &l.sections[i]
	pos := int64(sec.FileOffset) + int64(sec.RecordBlockSize(l.header.RecordSize))
	if !sec.IsSparse() {
		pos += int64(sec.StringTableSize)
	}
	if !l.src.SetPosition(pos) {
		return &SectionSeekError{Section: i, Offset: pos}
	}

	idData := l.readBestEffort(i, "id list", int64(sec.IDTableSize))
	ids := DecodeIDList(idData)
	if ids.Len() == 0 && !sec.IsSparse() && l.header.MinID != l.header.MaxID {
		/* No stored ID table: dense positions map onto the contiguous
		   ID range starting at minId. */
		base := l.header.MinID + l.sectionRecordBase(i)
		ids.IDs = make([]uint32, sec.RecordCount)
		for k := range ids.IDs {
			ids.IDs[k] = base + uint32(k)
		}
	}
	l.sectionIDs[i] = ids

	// readBestEffort already counts any shortfall; with complete data
	// the decoders always yield the declared entry count
	copyData := l.readBestEffort(i, "copy table", int64(sec.CopyTableCount)*COPY_TABLE_ENTRY_SIZE)
	l.copyTable.DecodeInto(copyData, int(sec.CopyTableCount))

	if sec.IsSparse() {
		catalogData := l.readBestEffort(i, "offset map", int64(sec.CatalogDataCount)*OFFSET_MAP_ENTRY_SIZE)
		l.offsetMaps[i] = DecodeOffsetMap(catalogData, int(sec.CatalogDataCount))
	}

	if sec.ParentLookupDataSize > 0 {
		parentData := l.readBestEffort(i, "parent lookup", int64(sec.ParentLookupDataSize))
		l.parents.DecodeInto(parentData)
	}
	return nil
}

// readBestEffort reads up to want bytes at the current cursor,
// shrinking to what the file still holds. Shortfalls are counted and
// logged, not fatal.
func (l *Loader) readBestEffort(section int, what string, want int64) []byte {
	if want <= 0 {
		return nil
	}
	avail := l.src.Size() - l.src.Position()
	if avail < 0 {
		avail = 0
	}
	size := want
	if avail < want {
		size = avail
		l.stats.TruncatedTables++
		l.logger.Warn("truncated table block",
			zap.String("file", l.src.Name()),
			zap.Int("section", section),
			zap.String("block", what),
			zap.Int64("declared", want),
			zap.Int64("available", avail))
	}
	data := make([]byte, size)
	if size > 0 && !l.src.Read(data) {
		return nil
	}
	return data
}

// sectionRecordBase returns the number of records declared by the
// sections preceding i.
func (l *Loader) sectionRecordBase(i int) (base uint32) {
	for j := 0; j < i; j++ {
		base += l.sections[j].RecordCount
	}
	return base
}

/*
GetRecord resolves an ID to its owning section, applies the copy-table
redirect when the ID has no payload of its own, reads the section's
record and string bytes in one buffer, and returns a view over the
record. Files without an ID index (minId == maxId) treat the argument
as an ordinal record index.
*/
func (l *Loader) GetRecord(id uint32) (*RecordView, error) {
	if l.state != StateFullyLoaded {
		return nil, fmt.Errorf("loader is not fully loaded")
	}
	if l.header.MinID == l.header.MaxID {
		return l.GetRecordByIndex(int(id))
	}
	section, local, ok := l.manager.Resolve(id)
	if !ok {
		if source, isCopy := l.copyTable.SourceRowID(id); isCopy {
			section, local, ok = l.manager.Resolve(source)
		}
	}
	if !ok {
		return nil, &RecordNotFoundError{ID: id, Sections: len(l.sections)}
	}
	return l.recordView(section, local, id)
}

// GetRecordByIndex addresses a record by its global ordinal position.
func (l *Loader) GetRecordByIndex(index int) (*RecordView, error) {
	if l.state != StateFullyLoaded {
		return nil, fmt.Errorf("loader is not fully loaded")
	}
	if index < 0 {
		return nil, &RecordNotFoundError{ID: uint32(index), Sections: len(l.sections)}
	}
	remaining := index
	for i := range l.sections {
		count := int(l.sections[i].RecordCount)
		if remaining < count {
			local := uint32(remaining)
			id := uint32(index)
			if ids := l.sectionIDs[i]; ids != nil && int(local) < ids.Len() {
				id = ids.IDs[local]
			}
			return l.recordView(i, local, id)
		}
		remaining -= count
	}
	return nil, &RecordNotFoundError{ID: uint32(index), Sections: len(l.sections)}
}

func (l *Loader) recordView(section int, local uint32, id uint32) (*RecordView, error) {
	if l.sectionIDs[section] == nil {
		// section was skipped during Load; it holds no resolvable records
		return nil, &RecordNotFoundError{ID: id, Sections: len(l.sections)}
	}
	sec := &l.sections[section]
	if sec.IsSparse() {
		entry := l.offsetMaps[section].Entry(int(local))
		if entry == nil {
			return nil, &RecordNotFoundError{ID: id, Sections: len(l.sections)}
		}
		if !l.src.SetPosition(int64(entry.Offset)) {
			return nil, &SectionSeekError{Section: section, Offset: int64(entry.Offset)}
		}
		rec := make([]byte, entry.Size)
		if !l.src.Read(rec) {
			return nil, &TruncatedReadError{
				What: fmt.Sprintf("sparse record %d", id),
				Want: int(entry.Size),
				Got:  int(l.src.Size() - int64(entry.Offset)),
			}
		}
		return &RecordView{
			header:     l.header,
			layout:     l.layout,
			rec:        rec,
			localIndex: local,
			id:         id,
			sparse:     true,
			stats:      &l.stats,
		}, nil
	}

	recordBytes := int64(sec.RecordCount) * int64(l.header.RecordSize)
	total := recordBytes + int64(sec.StringTableSize)
	if !l.src.SetPosition(int64(sec.FileOffset)) {
		return nil, &SectionSeekError{Section: section, Offset: int64(sec.FileOffset)}
	}
	buf := make([]byte, total)
	if !l.src.Read(buf) {
		return nil, &TruncatedReadError{
			What: fmt.Sprintf("section %d data", section),
			Want: int(total),
			Got:  int(l.src.Size() - int64(sec.FileOffset)),
		}
	}
	start := int64(local) * int64(l.header.RecordSize)
	if start+int64(l.header.RecordSize) > recordBytes {
		return nil, &RecordNotFoundError{ID: id, Sections: len(l.sections)}
	}
	correction := stringOffsetCorrection(
		sec.RecordCount, l.header.RecordCount, l.header.RecordSize,
		l.precedingRecordBytes(section), l.precedingStringBytes(section))
	return &RecordView{
		header:           l.header,
		layout:           l.layout,
		rec:              buf[start : start+int64(l.header.RecordSize)],
		buf:              buf,
		localIndex:       local,
		id:               id,
		stringCorrection: correction,
		stringStart:      recordBytes,
		stringEnd:        total,
		stats:            &l.stats,
	}, nil
}

// precedingRecordBytes sums the record-block bytes of every declared
// section before i, per the reference whole-file layout.
func (l *Loader) precedingRecordBytes(i int) (n int64) {
	for j := 0; j < i; j++ {
		n += int64(l.sections[j].RecordCount) * int64(l.header.RecordSize)
	}
	return n
}

func (l *Loader) precedingStringBytes(i int) (n int64) {
	for j := 0; j < i; j++ {
		n += int64(l.sections[j].StringTableSize)
	}
	return n
}

func (l *Loader) Header() *FileHeader {
	return l.header
}

func (l *Loader) SectionHeader(i int) *SectionHeader {
	if i < 0 || i >= len(l.sections) {
		return nil
	}
	return &l.sections[i]
}

func (l *Loader) SectionCount() int {
	return len(l.sections)
}

func (l *Loader) RecordCount() uint32 {
	if l.header == nil {
		return 0
	}
	return l.header.RecordCount
}

func (l *Loader) TableHash() uint32 {
	if l.header == nil {
		return 0
	}
	return l.header.TableHash
}

func (l *Loader) LayoutHash() uint32 {
	if l.header == nil {
		return 0
	}
	return l.header.LayoutHash
}

func (l *Loader) MinID() uint32 {
	if l.header == nil {
		return 0
	}
	return l.header.MinID
}

func (l *Loader) MaxID() uint32 {
	if l.header == nil {
		return 0
	}
	return l.header.MaxID
}

func (l *Loader) CopyTable() *CopyTable {
	return l.copyTable
}

func (l *Loader) ParentLookup() *ParentLookupTable {
	return l.parents
}

// IsSparse reports whether any loaded section uses sparse storage.
func (l *Loader) IsSparse() bool {
	for i := range l.sections {
		if l.sections[i].IsSparse() {
			return true
		}
	}
	return false
}

func (l *Loader) State() LoadState {
	return l.state
}

// RecordIDs returns every resolvable record ID in ascending order.
func (l *Loader) RecordIDs() []uint32 {
	return l.manager.IDs()
}

// Stats returns the diagnostic counters accumulated so far.
func (l *Loader) Stats() LoadStats {
	stats := l.stats
	stats.IDCollisions = l.manager.Collisions()
	return stats
}
