package db2reader

import (
	"encoding/binary"
	"fmt"
)

type FileHeader struct {
	Signature       uint32
	RecordCount     uint32
	FieldCount      uint32
	RecordSize      uint32
	StringTableSize uint32
	TableHash       uint32
	LayoutHash      uint32
	/** MinID == MaxID means the file has no ID-indexed lookup and
	records are addressed by ordinal index only. */
	MinID             uint32
	MaxID             uint32
	Locale            uint32
	Flags             uint16
	IDIndexColumn     uint16
	TotalFieldCount   uint32
	PackedDataOffset  uint32
	ParentLookupCount uint32
	ColumnMetaSize    uint32
	CommonDataSize    uint32
	PalletDataSize    uint32
	SectionCount      uint32
}

// IsCompact reports whether the file carries the compact field-entry
// layout rather than the legacy column metadata block.
func (h *FileHeader) IsCompact() bool {
	return h.Signature == DB2_SIG_WDC4
}

type SectionHeader struct {
	TactKeyHash          uint64
	FileOffset           uint32
	RecordCount          uint32
	StringTableSize      uint32
	CatalogDataOffset    uint32
	IDTableSize          uint32
	ParentLookupDataSize uint32
	CatalogDataCount     uint32
	CopyTableCount       uint32
}

// IsSparse reports whether the section stores variable-size records
// addressed through a catalog instead of a fixed-stride record array.
func (sh *SectionHeader) IsSparse() bool {
	return sh.CatalogDataCount > 0 && sh.CatalogDataOffset > 0
}

// RecordBlockSize returns the byte length of the section's record block.
func (sh *SectionHeader) RecordBlockSize(recordSize uint32) uint32 {
	if sh.IsSparse() {
		return sh.CatalogDataOffset - sh.FileOffset
	}
	return sh.RecordCount * recordSize
}

/*
DecodeHeader reads the fixed file header and the section header array.
The source cursor is left right after the last section header. No other
side effects.
*/
func DecodeHeader(src ByteSource) (header *FileHeader, sections []SectionHeader, err error) {
	data := make([]byte, DB2_HEADER_SIZE)
	if !src.Read(data) {
		return nil, nil, &MalformedHeaderError{
			Reason: fmt.Sprintf("stream shorter than the %d byte fixed header", DB2_HEADER_SIZE),
		}
	}
	header = &FileHeader{
		Signature:         binary.LittleEndian.Uint32(data[HDR_SIGNATURE:]),
		RecordCount:       binary.LittleEndian.Uint32(data[HDR_RECORD_COUNT:]),
		FieldCount:        binary.LittleEndian.Uint32(data[HDR_FIELD_COUNT:]),
		RecordSize:        binary.LittleEndian.Uint32(data[HDR_RECORD_SIZE:]),
		StringTableSize:   binary.LittleEndian.Uint32(data[HDR_STRING_TABLE_SIZE:]),
		TableHash:         binary.LittleEndian.Uint32(data[HDR_TABLE_HASH:]),
		LayoutHash:        binary.LittleEndian.Uint32(data[HDR_LAYOUT_HASH:]),
		MinID:             binary.LittleEndian.Uint32(data[HDR_MIN_ID:]),
		MaxID:             binary.LittleEndian.Uint32(data[HDR_MAX_ID:]),
		Locale:            binary.LittleEndian.Uint32(data[HDR_LOCALE:]),
		Flags:             binary.LittleEndian.Uint16(data[HDR_FLAGS:]),
		IDIndexColumn:     binary.LittleEndian.Uint16(data[HDR_ID_INDEX:]),
		TotalFieldCount:   binary.LittleEndian.Uint32(data[HDR_TOTAL_FIELD_COUNT:]),
		PackedDataOffset:  binary.LittleEndian.Uint32(data[HDR_PACKED_DATA_OFFSET:]),
		ParentLookupCount: binary.LittleEndian.Uint32(data[HDR_PARENT_LOOKUP_COUNT:]),
		ColumnMetaSize:    binary.LittleEndian.Uint32(data[HDR_COLUMN_META_SIZE:]),
		CommonDataSize:    binary.LittleEndian.Uint32(data[HDR_COMMON_DATA_SIZE:]),
		PalletDataSize:    binary.LittleEndian.Uint32(data[HDR_PALLET_DATA_SIZE:]),
		SectionCount:      binary.LittleEndian.Uint32(data[HDR_SECTION_COUNT:]),
	}
	if header.Signature != DB2_SIG_WDC3 && header.Signature != DB2_SIG_WDC4 {
		return nil, nil, &MalformedHeaderError{
			Reason: fmt.Sprintf("unrecognized signature 0x%08x", header.Signature),
		}
	}

	sections = make([]SectionHeader, 0, header.SectionCount)
	buf := make([]byte, DB2_SECTION_HEADER_SIZE)
	for i := uint32(0); i < header.SectionCount; i++ {
		if !src.Read(buf) {
			return nil, nil, &TruncatedReadError{
				What: fmt.Sprintf("section header %d", i),
				Want: DB2_SECTION_HEADER_SIZE,
				Got:  int(src.Size() - src.Position()),
			}
		}
		sections = append(sections, SectionHeader{
			TactKeyHash:          binary.LittleEndian.Uint64(buf[SEC_TACT_KEY_HASH:]),
			FileOffset:           binary.LittleEndian.Uint32(buf[SEC_FILE_OFFSET:]),
			RecordCount:          binary.LittleEndian.Uint32(buf[SEC_RECORD_COUNT:]),
			StringTableSize:      binary.LittleEndian.Uint32(buf[SEC_STRING_TABLE_SIZE:]),
			CatalogDataOffset:    binary.LittleEndian.Uint32(buf[SEC_CATALOG_OFFSET:]),
			IDTableSize:          binary.LittleEndian.Uint32(buf[SEC_ID_TABLE_SIZE:]),
			ParentLookupDataSize: binary.LittleEndian.Uint32(buf[SEC_PARENT_LOOKUP_SIZE:]),
			CatalogDataCount:     binary.LittleEndian.Uint32(buf[SEC_CATALOG_COUNT:]),
			CopyTableCount:       binary.LittleEndian.Uint32(buf[SEC_COPY_TABLE_COUNT:]),
		})
	}
	return header, sections, nil
}
