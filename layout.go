package db2reader

import "encoding/binary"

// ImmediateInfo is the payload of IMMEDIATE / SIGNED_IMMEDIATE columns.
type ImmediateInfo struct {
	BitOffset uint32
	BitWidth  uint32
	Flags     uint32
}

func (ii *ImmediateInfo) Signed() bool {
	return ii.Flags&IMMEDIATE_FLAG_SIGNED != 0
}

// PalletInfo is the payload of PALLET / PALLET_ARRAY columns.
type PalletInfo struct {
	BitOffset uint32
	BitWidth  uint32
	ArraySize uint32
}

type ColumnMeta struct {
	BitOffset          uint16
	BitSize            uint16
	AdditionalDataSize uint32
	Compression        CompressionType
	Immediate          ImmediateInfo
	CommonValue        uint32
	Pallet             PalletInfo
}

// FieldEntry is one column of the compact layout. The stored value
// occupies 4-unusedBits/8 little-endian bytes at ByteOffset; the unused
// high bits are shifted out on read.
type FieldEntry struct {
	UnusedBits int16
	ByteOffset uint16
}

func (fe *FieldEntry) ByteSize() uint32 {
	return 4 - uint32(fe.UnusedBits)/8
}

type LayoutKind int

const (
	LayoutBitPacked LayoutKind = iota
	LayoutCompact
)

// Layout is the per-file column layout, decoded once at load time.
// Exactly one of Columns/Fields is populated, selected by Kind.
type Layout struct {
	Kind    LayoutKind
	Columns []ColumnMeta
	Fields  []FieldEntry
}

func (l *Layout) FieldCount() int {
	if l.Kind == LayoutCompact {
		return len(l.Fields)
	}
	return len(l.Columns)
}

/*
DecodeColumnMetas decodes the legacy column metadata block: fixed
24-byte entries whose 12-byte payload area is interpreted per
compression type. Decoding stops early, without error, when the
declared block size runs out before fieldCount entries: older and newer
layouts may carry fewer declared fields than the nominal schema.
Unknown compression types are stored as-is; they only fail when the
field is read.
*/
func DecodeColumnMetas(data []byte, fieldCount int) (layout *Layout) {
	layout = &Layout{Kind: LayoutBitPacked}
	for i := 0; i < fieldCount; i++ {
		base := i * COLUMN_META_ENTRY_SIZE
		if base+COLUMN_META_ENTRY_SIZE > len(data) {
			break
		}
		meta := ColumnMeta{
			BitOffset:          binary.LittleEndian.Uint16(data[base:]),
			BitSize:            binary.LittleEndian.Uint16(data[base+2:]),
			AdditionalDataSize: binary.LittleEndian.Uint32(data[base+4:]),
			Compression:        CompressionType(binary.LittleEndian.Uint32(data[base+8:])),
		}
		payload := data[base+COLUMN_META_BASE_SIZE:]
		switch meta.Compression {
		case COMPRESSION_IMMEDIATE, COMPRESSION_SIGNED_IMMEDIATE:
			meta.Immediate = ImmediateInfo{
				BitOffset: binary.LittleEndian.Uint32(payload),
				BitWidth:  binary.LittleEndian.Uint32(payload[4:]),
				Flags:     binary.LittleEndian.Uint32(payload[8:]),
			}
		case COMPRESSION_COMMON_DATA:
			meta.CommonValue = binary.LittleEndian.Uint32(payload)
		case COMPRESSION_PALLET, COMPRESSION_PALLET_ARRAY:
			meta.Pallet = PalletInfo{
				BitOffset: binary.LittleEndian.Uint32(payload),
				BitWidth:  binary.LittleEndian.Uint32(payload[4:]),
				ArraySize: binary.LittleEndian.Uint32(payload[8:]),
			}
		}
		layout.Columns = append(layout.Columns, meta)
	}
	return layout
}

/*
DecodeFieldEntries decodes the compact 4-byte-per-field entry table.
Same soft-truncation contract as DecodeColumnMetas.
*/
func DecodeFieldEntries(data []byte, fieldCount int) (layout *Layout) {
	layout = &Layout{Kind: LayoutCompact}
	for i := 0; i < fieldCount; i++ {
		base := i * FIELD_ENTRY_SIZE
		if base+FIELD_ENTRY_SIZE > len(data) {
			break
		}
		layout.Fields = append(layout.Fields, FieldEntry{
			UnusedBits: int16(binary.LittleEndian.Uint16(data[base:])),
			ByteOffset: binary.LittleEndian.Uint16(data[base+2:]),
		})
	}
	return layout
}
