package db2reader

import "fmt"

// MalformedHeaderError means the file cannot be a DB2 file at all: the
// signature is unknown or the stream ends inside the fixed header.
type MalformedHeaderError struct {
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed header: %s", e.Reason)
}

// TruncatedReadError means a declared size exceeds the bytes available.
type TruncatedReadError struct {
	What string
	Want int
	Got  int
}

func (e *TruncatedReadError) Error() string {
	return fmt.Sprintf("truncated read of %s: want %d bytes, got %d", e.What, e.Want, e.Got)
}

// UnsupportedCompressionError is raised when a field with an unknown
// compression type is actually read, not when its metadata is decoded.
type UnsupportedCompressionError struct {
	Field       int
	Compression CompressionType
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("field %d uses unsupported compression type %d", e.Field, uint32(e.Compression))
}

// FieldOutOfRangeError signals a caller/schema mismatch: the requested
// field index is not covered by the decoded column layout.
type FieldOutOfRangeError struct {
	Field      int
	FieldCount int
}

func (e *FieldOutOfRangeError) Error() string {
	return fmt.Sprintf("field index %d out of range, layout has %d fields", e.Field, e.FieldCount)
}

// RecordNotFoundError reports an ID absent from every loaded section.
type RecordNotFoundError struct {
	ID       uint32
	Sections int
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %d not found in %d sections", e.ID, e.Sections)
}

// SectionSeekError reports an I/O seek beyond EOF while positioning on
// a section block.
type SectionSeekError struct {
	Section int
	Offset  int64
}

func (e *SectionSeekError) Error() string {
	return fmt.Sprintf("section %d: seek to offset %d failed", e.Section, e.Offset)
}
