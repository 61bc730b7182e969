package db2reader

import "encoding/binary"

/*
In-test builder for synthetic DB2 files. Block order mirrors the
decoder's expectations: fixed header, section headers, column
metadata, then per section the record block (plus string block when
dense), ID list, copy-table entries, sparse catalog, parent lookup.
*/

type sparseRec struct {
	id      uint32
	payload []byte // nil marks an absent catalog slot
}

type secSpec struct {
	records [][]byte // dense records, each exactly recordSize bytes
	strings []byte   // dense string block
	ids     []uint32
	copies  [][2]uint32 // (newID, sourceID)
	sparse  []sparseRec
	parents [][2]uint32 // (parentID, childIndex)
}

func (s *secSpec) isSparse() bool {
	return len(s.sparse) > 0
}

type fileSpec struct {
	sig         uint32
	fieldCount  uint32
	recordSize  uint32
	minID       uint32
	maxID       uint32
	layoutBlock []byte
}

func le16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }
func le32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }
func le64(b []byte, v uint64) []byte { return binary.LittleEndian.AppendUint64(b, v) }

func buildDB2(fs fileSpec, secs []secSpec) []byte {
	type builtSection struct {
		hdr  SectionHeader
		blob []byte
	}
	dataStart := DB2_HEADER_SIZE + DB2_SECTION_HEADER_SIZE*len(secs) + len(fs.layoutBlock)

	var built []builtSection
	off := uint32(dataStart)
	var totalRecords, totalStrings, totalParents uint32
	for _, s := range secs {
		var blob []byte
		hdr := SectionHeader{FileOffset: off}
		if s.isSparse() {
			hdr.RecordCount = uint32(len(s.sparse))
			type slot struct {
				off  uint32
				size uint16
			}
			slots := make([]slot, len(s.sparse))
			for i, r := range s.sparse {
				if r.payload == nil {
					continue
				}
				slots[i] = slot{off: off + uint32(len(blob)), size: uint16(len(r.payload))}
				blob = append(blob, r.payload...)
			}
			hdr.CatalogDataOffset = off + uint32(len(blob))
			hdr.CatalogDataCount = uint32(len(s.sparse))
			for _, r := range s.sparse {
				blob = le32(blob, r.id)
			}
			hdr.IDTableSize = uint32(ID_LIST_ENTRY_SIZE * len(s.sparse))
			for _, c := range s.copies {
				blob = le32(blob, c[0])
				blob = le32(blob, c[1])
			}
			hdr.CopyTableCount = uint32(len(s.copies))
			for _, sl := range slots {
				blob = le32(blob, sl.off)
				blob = le16(blob, sl.size)
			}
			for _, p := range s.parents {
				blob = le32(blob, p[0])
				blob = le32(blob, p[1])
			}
			hdr.ParentLookupDataSize = uint32(PARENT_LOOKUP_ENTRY_SIZE * len(s.parents))
		} else {
			hdr.RecordCount = uint32(len(s.records))
			for _, r := range s.records {
				blob = append(blob, r...)
			}
			blob = append(blob, s.strings...)
			hdr.StringTableSize = uint32(len(s.strings))
			for _, id := range s.ids {
				blob = le32(blob, id)
			}
			hdr.IDTableSize = uint32(ID_LIST_ENTRY_SIZE * len(s.ids))
			for _, c := range s.copies {
				blob = le32(blob, c[0])
				blob = le32(blob, c[1])
			}
			hdr.CopyTableCount = uint32(len(s.copies))
			for _, p := range s.parents {
				blob = le32(blob, p[0])
				blob = le32(blob, p[1])
			}
			hdr.ParentLookupDataSize = uint32(PARENT_LOOKUP_ENTRY_SIZE * len(s.parents))
		}
		totalRecords += hdr.RecordCount
		totalStrings += hdr.StringTableSize
		totalParents += uint32(len(s.parents))
		built = append(built, builtSection{hdr: hdr, blob: blob})
		off += uint32(len(blob))
	}

	columnMetaSize := uint32(0)
	if fs.sig == DB2_SIG_WDC3 {
		columnMetaSize = uint32(len(fs.layoutBlock))
	}

	var out []byte
	out = le32(out, fs.sig)
	out = le32(out, totalRecords)
	out = le32(out, fs.fieldCount)
	out = le32(out, fs.recordSize)
	out = le32(out, totalStrings)
	out = le32(out, 0xD00DF00D) // table hash
	out = le32(out, 0x1BADB002) // layout hash
	out = le32(out, fs.minID)
	out = le32(out, fs.maxID)
	out = le32(out, 0xFFFFFFFF) // locale
	out = le16(out, 0)          // flags
	out = le16(out, 0)          // id index column
	out = le32(out, fs.fieldCount)
	out = le32(out, 0) // packed data offset
	out = le32(out, totalParents)
	out = le32(out, columnMetaSize)
	out = le32(out, 0) // common data size
	out = le32(out, 0) // pallet data size
	out = le32(out, uint32(len(secs)))

	for _, b := range built {
		out = le64(out, b.hdr.TactKeyHash)
		out = le32(out, b.hdr.FileOffset)
		out = le32(out, b.hdr.RecordCount)
		out = le32(out, b.hdr.StringTableSize)
		out = le32(out, b.hdr.CatalogDataOffset)
		out = le32(out, b.hdr.IDTableSize)
		out = le32(out, b.hdr.ParentLookupDataSize)
		out = le32(out, b.hdr.CatalogDataCount)
		out = le32(out, b.hdr.CopyTableCount)
	}
	out = append(out, fs.layoutBlock...)
	for _, b := range built {
		out = append(out, b.blob...)
	}
	return out
}

// compactLayoutBlock encodes compact field entries (WDC4 files).
func compactLayoutBlock(entries ...FieldEntry) []byte {
	var out []byte
	for _, e := range entries {
		out = le16(out, uint16(e.UnusedBits))
		out = le16(out, e.ByteOffset)
	}
	return out
}

// columnMetaBlock encodes legacy 24-byte column metadata entries
// (WDC3 files).
func columnMetaBlock(metas ...ColumnMeta) []byte {
	var out []byte
	for _, m := range metas {
		out = le16(out, m.BitOffset)
		out = le16(out, m.BitSize)
		out = le32(out, m.AdditionalDataSize)
		out = le32(out, uint32(m.Compression))
		switch m.Compression {
		case COMPRESSION_IMMEDIATE, COMPRESSION_SIGNED_IMMEDIATE:
			out = le32(out, m.Immediate.BitOffset)
			out = le32(out, m.Immediate.BitWidth)
			out = le32(out, m.Immediate.Flags)
		case COMPRESSION_COMMON_DATA:
			out = le32(out, m.CommonValue)
			out = le32(out, 0)
			out = le32(out, 0)
		case COMPRESSION_PALLET, COMPRESSION_PALLET_ARRAY:
			out = le32(out, m.Pallet.BitOffset)
			out = le32(out, m.Pallet.BitWidth)
			out = le32(out, m.Pallet.ArraySize)
		default:
			out = le32(out, 0)
			out = le32(out, 0)
			out = le32(out, 0)
		}
	}
	return out
}

// denseU32Record packs uint32 values into one fixed-size record.
func denseU32Record(values ...uint32) []byte {
	var out []byte
	for _, v := range values {
		out = le32(out, v)
	}
	return out
}

// twoFieldCompact is the layout shared by most dense fixtures:
// field 0 = uint32 at byte 0, field 1 = uint32 at byte 4.
func twoFieldCompact() []byte {
	return compactLayoutBlock(
		FieldEntry{UnusedBits: 0, ByteOffset: 0},
		FieldEntry{UnusedBits: 0, ByteOffset: 4},
	)
}
