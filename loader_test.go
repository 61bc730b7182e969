package db2reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denseFixture() []byte {
	return buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       3,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		records: [][]byte{denseU32Record(1, 10), denseU32Record(2, 20), denseU32Record(3, 30)},
		ids:     []uint32{1, 2, 3},
		copies:  [][2]uint32{{99, 1}},
	}})
}

func loadFixture(t *testing.T, data []byte) *Loader {
	t.Helper()
	loader := NewLoader(nil)
	require.NoError(t, loader.Load(NewMemorySource("fixture.db2", data)))
	return loader
}

func TestLoadHeadersStandalone(t *testing.T) {
	loader := NewLoader(nil)
	require.NoError(t, loader.LoadHeaders(NewMemorySource("fixture.db2", denseFixture())))
	assert.Equal(t, StateHeadersLoaded, loader.State())
	assert.Equal(t, uint32(3), loader.RecordCount())
	assert.Equal(t, uint32(0xD00DF00D), loader.TableHash())
	assert.Equal(t, uint32(0x1BADB002), loader.LayoutHash())
	assert.Equal(t, uint32(1), loader.MinID())
	assert.Equal(t, uint32(3), loader.MaxID())
	assert.Equal(t, 1, loader.SectionCount())

	_, err := loader.GetRecord(2)
	assert.ErrorContains(t, err, "not fully loaded")
}

func TestDenseRoundTrip(t *testing.T) {
	loader := loadFixture(t, denseFixture())
	assert.Equal(t, StateFullyLoaded, loader.State())
	assert.False(t, loader.IsSparse())

	view, err := loader.GetRecord(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), view.GetID())

	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), v)

	assert.Equal(t, []uint32{1, 2, 3}, loader.RecordIDs())
}

func TestRecordNotFound(t *testing.T) {
	loader := loadFixture(t, denseFixture())
	_, err := loader.GetRecord(7777)
	var notFound *RecordNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint32(7777), notFound.ID)
	assert.Equal(t, 1, notFound.Sections)
}

func TestCopyTableAliasing(t *testing.T) {
	loader := loadFixture(t, denseFixture())
	require.True(t, loader.CopyTable().IsCopy(99))

	source, err := loader.GetRecord(1)
	require.NoError(t, err)
	aliased, err := loader.GetRecord(99)
	require.NoError(t, err)

	// the copy serves the source row's fields under its own ID
	assert.Equal(t, uint32(99), aliased.GetID())
	for field := 0; field < 2; field++ {
		want, err := source.GetUint32(field, 0)
		require.NoError(t, err)
		got, err := aliased.GetUint32(field, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got, fmt.Sprintf("field %d", field))
	}
}

func TestSparseCatalogRecords(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       1000,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		sparse: []sparseRec{
			{id: 500, payload: append(denseU32Record(500), []byte("Fireball\x00")...)},
			{id: 501, payload: nil}, // absent slot
			{id: 502, payload: append(denseU32Record(502), []byte("Frostbolt\x00")...)},
		},
	}})
	loader := loadFixture(t, data)
	assert.True(t, loader.IsSparse())

	view, err := loader.GetRecord(500)
	require.NoError(t, err)
	s, err := view.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "Fireball", s)

	view, err = loader.GetRecord(502)
	require.NoError(t, err)
	s, err = view.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "Frostbolt", s)

	// the catalog slot exists but holds no data
	_, err = loader.GetRecord(501)
	var notFound *RecordNotFoundError
	require.True(t, errors.As(err, &notFound))
}

// twoSectionStringFixture builds a dense two-section file whose string
// offsets are calibrated against the reference whole-file layout, the
// way shipped files are.
func twoSectionStringFixture(s0strings, s1strings []byte) []byte {
	const recordSize = 8
	const fieldOff = 4
	totalRecordBytes := uint32(5 * recordSize)
	rawOffset := func(globalIndex, precedingStrings, local uint32) uint32 {
		return totalRecordBytes + precedingStrings + local - (globalIndex*recordSize + fieldOff)
	}
	return buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  recordSize,
		minID:       1,
		maxID:       5,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{
		{
			records: [][]byte{
				denseU32Record(1, rawOffset(0, 0, 0)),
				denseU32Record(2, rawOffset(1, 0, 5)),
			},
			strings: s0strings,
			ids:     []uint32{1, 2},
		},
		{
			records: [][]byte{
				denseU32Record(3, rawOffset(2, uint32(len(s0strings)), 0)),
				denseU32Record(4, rawOffset(3, uint32(len(s0strings)), 6)),
				denseU32Record(5, rawOffset(4, uint32(len(s0strings)), 11)),
			},
			strings: s1strings,
			ids:     []uint32{3, 4, 5},
		},
	})
}

func TestDenseStringOffsetCorrectionAcrossSections(t *testing.T) {
	s0 := []byte("zero\x00junk\x00")
	s1 := []byte("three\x00four\x00five\x00")
	loader := loadFixture(t, twoSectionStringFixture(s0, s1))

	cases := map[uint32]string{1: "zero", 2: "junk", 3: "three", 4: "four", 5: "five"}
	for id, want := range cases {
		view, err := loader.GetRecord(id)
		require.NoError(t, err)
		got, err := view.GetString(1, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got, fmt.Sprintf("record %d", id))
	}

	// section 1 strings must resolve into section 1's own bytes:
	// rewriting section 0's string content cannot leak across
	loader = loadFixture(t, twoSectionStringFixture([]byte("AAAA\x00BBBB\x00"), s1))
	view, err := loader.GetRecord(4)
	require.NoError(t, err)
	got, err := view.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "four", got)
}

func TestZeroStringOffsetMeansNoString(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       1,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		records: [][]byte{denseU32Record(1, 0)},
		strings: []byte("orphan\x00"),
		ids:     []uint32{1},
	}})
	// minID == maxID: ordinal addressing
	loader := loadFixture(t, data)
	view, err := loader.GetRecordByIndex(0)
	require.NoError(t, err)
	s, err := view.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestOrdinalAddressingWithoutIDIndex(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       0,
		maxID:       0,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		records: [][]byte{denseU32Record(0, 100), denseU32Record(0, 200), denseU32Record(0, 300)},
	}})
	loader := loadFixture(t, data)

	// GetRecord treats its argument as an ordinal index
	view, err := loader.GetRecord(1)
	require.NoError(t, err)
	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), v)

	_, err = loader.GetRecord(3)
	var notFound *RecordNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestImpliedIDsFromMinID(t *testing.T) {
	// dense section without a stored ID table: positions map onto the
	// contiguous range starting at minId
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       10,
		maxID:       12,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		records: [][]byte{denseU32Record(10, 1), denseU32Record(11, 2), denseU32Record(12, 3)},
	}})
	loader := loadFixture(t, data)

	view, err := loader.GetRecord(11)
	require.NoError(t, err)
	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v)
}

func TestSectionSkippedOnSeekFailure(t *testing.T) {
	s0 := []byte("zero\x00junk\x00")
	s1 := []byte("three\x00four\x00five\x00")
	data := twoSectionStringFixture(s0, s1)

	probe := NewLoader(nil)
	require.NoError(t, probe.LoadHeaders(NewMemorySource("probe.db2", data)))
	cut := int64(probe.SectionHeader(1).FileOffset)

	loader := NewLoader(nil)
	require.NoError(t, loader.Load(NewMemorySource("cut.db2", data[:cut])))
	assert.Equal(t, uint64(1), loader.Stats().SectionsSkipped)

	// the intact section keeps serving records
	view, err := loader.GetRecord(1)
	require.NoError(t, err)
	s, err := view.GetString(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "zero", s)

	// IDs of the skipped section are gone, not corrupted
	_, err = loader.GetRecord(4)
	var notFound *RecordNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 2, notFound.Sections)
}

func TestSkippedSparseSectionRecordAccess(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       1000,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		sparse: []sparseRec{
			{id: 500, payload: append(denseU32Record(500), []byte("Fireball\x00")...)},
		},
	}})

	probe := NewLoader(nil)
	require.NoError(t, probe.LoadHeaders(NewMemorySource("probe.db2", data)))
	cut := int64(probe.SectionHeader(0).CatalogDataOffset) - 1

	loader := NewLoader(nil)
	require.NoError(t, loader.Load(NewMemorySource("cut.db2", data[:cut])))
	assert.Equal(t, uint64(1), loader.Stats().SectionsSkipped)

	// the skipped section holds no resolvable records, by ID or ordinal
	var notFound *RecordNotFoundError
	_, err := loader.GetRecordByIndex(0)
	require.True(t, errors.As(err, &notFound))
	_, err = loader.GetRecord(500)
	require.True(t, errors.As(err, &notFound))
}

func TestTruncatedCopyTableCountedOnce(t *testing.T) {
	data := denseFixture()
	loader := NewLoader(nil)
	// drop half of the single 8-byte copy-table entry
	require.NoError(t, loader.Load(NewMemorySource("cut.db2", data[:len(data)-4])))
	assert.Equal(t, uint64(1), loader.Stats().TruncatedTables)
	assert.Equal(t, 0, loader.CopyTable().Len())

	// the section itself still serves records
	view, err := loader.GetRecord(2)
	require.NoError(t, err)
	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(20), v)
}

func TestCrossSectionIDCollisionDiagnostics(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       2,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{
		{records: [][]byte{denseU32Record(1, 111)}, ids: []uint32{1}},
		{records: [][]byte{denseU32Record(1, 222)}, ids: []uint32{1}},
	})
	loader := loadFixture(t, data)
	assert.Equal(t, uint64(1), loader.Stats().IDCollisions)

	// first section stays authoritative
	view, err := loader.GetRecord(1)
	require.NoError(t, err)
	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(111), v)
}

func TestParentLookupThroughLoader(t *testing.T) {
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC4,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       2,
		layoutBlock: twoFieldCompact(),
	}, []secSpec{{
		records: [][]byte{denseU32Record(1, 10), denseU32Record(2, 20)},
		ids:     []uint32{1, 2},
		parents: [][2]uint32{{7, 0}, {7, 1}},
	}})
	loader := loadFixture(t, data)
	assert.Equal(t, []uint32{0, 1}, loader.ParentLookup().Children(7))
}

func TestLegacyBitPackedFile(t *testing.T) {
	// WDC3 carries the legacy column metadata block: field 0 raw
	// uint32, field 1 a 12-bit immediate at bit 32
	layoutBlock := columnMetaBlock(
		ColumnMeta{BitOffset: 0, BitSize: 32, Compression: COMPRESSION_NONE},
		ColumnMeta{
			Compression: COMPRESSION_SIGNED_IMMEDIATE,
			Immediate:   ImmediateInfo{BitOffset: 32, BitWidth: 12},
		},
	)
	rec := append(denseU32Record(1), 0xBC, 0x0A, 0x00, 0x00)
	data := buildDB2(fileSpec{
		sig:         DB2_SIG_WDC3,
		fieldCount:  2,
		recordSize:  8,
		minID:       1,
		maxID:       1,
		layoutBlock: layoutBlock,
	}, []secSpec{{
		records: [][]byte{rec},
	}})
	loader := loadFixture(t, data)

	view, err := loader.GetRecordByIndex(0)
	require.NoError(t, err)
	v, err := view.GetInt32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(-1348), v)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spell.db2")
	require.NoError(t, os.WriteFile(path, denseFixture(), 0o644))

	loader := NewLoader(nil)
	require.NoError(t, loader.LoadFromFile(path))
	defer loader.Close()

	view, err := loader.GetRecord(3)
	require.NoError(t, err)
	v, err := view.GetUint32(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), v)
}
