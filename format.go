package db2reader

// DB2 file structure
const (
	/** Versioned signature tags ("WDC3"/"WDC4" as little-endian uint32).
	Files carrying any other tag are rejected. */
	DB2_SIG_WDC3 uint32 = 0x33434457
	DB2_SIG_WDC4 uint32 = 0x34434457

	/** The number of bytes in the fixed file header. */
	DB2_HEADER_SIZE = 72
	/** The number of bytes in one section header. */
	DB2_SECTION_HEADER_SIZE = 40

	/* Fixed header field offsets. All multi-byte integers in the
	   file are little-endian. */
	HDR_SIGNATURE           = 0
	HDR_RECORD_COUNT        = 4
	HDR_FIELD_COUNT         = 8
	HDR_RECORD_SIZE         = 12
	HDR_STRING_TABLE_SIZE   = 16
	HDR_TABLE_HASH          = 20
	HDR_LAYOUT_HASH         = 24
	HDR_MIN_ID              = 28
	HDR_MAX_ID              = 32
	HDR_LOCALE              = 36
	/** 2-byte flags word. */
	HDR_FLAGS = 40
	/** 2-byte index of the column carrying the record ID. */
	HDR_ID_INDEX            = 42
	HDR_TOTAL_FIELD_COUNT   = 44
	HDR_PACKED_DATA_OFFSET  = 48
	HDR_PARENT_LOOKUP_COUNT = 52
	/** Size in bytes of the column metadata block (0 when absent). */
	HDR_COLUMN_META_SIZE = 56
	HDR_COMMON_DATA_SIZE = 60
	HDR_PALLET_DATA_SIZE = 64
	HDR_SECTION_COUNT    = 68

	/* Section header field offsets. */
	SEC_TACT_KEY_HASH      = 0
	SEC_FILE_OFFSET        = 8
	SEC_RECORD_COUNT       = 12
	SEC_STRING_TABLE_SIZE  = 16
	/** End offset of the record block; reference point of the sparse
	catalog. Zero in dense sections. */
	SEC_CATALOG_OFFSET      = 20
	SEC_ID_TABLE_SIZE       = 24
	SEC_PARENT_LOOKUP_SIZE  = 28
	SEC_CATALOG_COUNT       = 32
	SEC_COPY_TABLE_COUNT    = 36
)

// auxiliary table geometry
const (
	/** One entry of the section ID list: uint32 record ID. */
	ID_LIST_ENTRY_SIZE = 4
	/** One entry of the sparse catalog: uint32 file offset + uint16 size.
	An offset of zero encodes "no record at this slot". */
	OFFSET_MAP_ENTRY_SIZE = 6
	/** One entry of the copy table: uint32 new ID, uint32 source ID. */
	COPY_TABLE_ENTRY_SIZE = 8
	/** One entry of the parent lookup: uint32 parent ID, uint32 child index. */
	PARENT_LOOKUP_ENTRY_SIZE = 8
)

// column metadata geometry (legacy bit-packed layout, WDC3)
const (
	/** Fixed size of one column metadata entry: a 12-byte base
	(bitOffset u16, bitSize u16, additionalDataSize u32, compression u32)
	followed by a 12-byte payload area whose interpretation depends on
	the compression type. */
	COLUMN_META_ENTRY_SIZE = 24
	COLUMN_META_BASE_SIZE  = 12
	/** Size of one compact field entry (unusedBits i16, byteOffset u16). */
	FIELD_ENTRY_SIZE = 4
)

type CompressionType uint32

// Per-column compression encodings of the legacy layout.
const (
	/** Raw little-endian bytes at bitOffset/8. */
	COMPRESSION_NONE CompressionType = 0
	/** bitWidth bits packed at the payload bit offset. */
	COMPRESSION_IMMEDIATE CompressionType = 1
	/** Column value is uniform across records; the constant is carried
	in the metadata, nothing is stored per record. */
	COMPRESSION_COMMON_DATA CompressionType = 2
	/** Packed index into an external pallet value table. */
	COMPRESSION_PALLET CompressionType = 3
	/** Packed index into an external pallet table, array-valued. */
	COMPRESSION_PALLET_ARRAY CompressionType = 4
	/** Like IMMEDIATE with two's-complement sign extension. */
	COMPRESSION_SIGNED_IMMEDIATE CompressionType = 5
)

func (ct CompressionType) String() string {
	switch ct {
	case COMPRESSION_NONE:
		return "none"
	case COMPRESSION_IMMEDIATE:
		return "immediate"
	case COMPRESSION_COMMON_DATA:
		return "common-data"
	case COMPRESSION_PALLET:
		return "pallet"
	case COMPRESSION_PALLET_ARRAY:
		return "pallet-array"
	case COMPRESSION_SIGNED_IMMEDIATE:
		return "signed-immediate"
	}
	return "unknown"
}

/** Flag bit of the immediate payload marking the column signed even
when the compression type is IMMEDIATE. */
const IMMEDIATE_FLAG_SIGNED uint32 = 0x1
