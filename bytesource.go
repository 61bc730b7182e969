package db2reader

import (
	"os"
	"path/filepath"
)

// ByteSource abstracts the seekable byte stream a loader decodes from.
// Read fills the whole buffer or reports failure; there are no partial
// reads. One loader owns its source exclusively.
type ByteSource interface {
	IsOpen() bool
	Read(buf []byte) bool
	Position() int64
	SetPosition(pos int64) bool
	Skip(n int64) bool
	Size() int64
	Name() string
}

// FileSource is a ByteSource backed by an open file handle.
type FileSource struct {
	file *os.File
	size int64
	pos  int64
	name string
}

func NewFileSource(path string) (fs *FileSource, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	fs = &FileSource{
		file: file,
		size: info.Size(),
		name: filepath.Base(path),
	}
	return fs, nil
}

func (fs *FileSource) IsOpen() bool {
	return fs.file != nil
}

func (fs *FileSource) Read(buf []byte) bool {
	if fs.file == nil || fs.pos+int64(len(buf)) > fs.size {
		return false
	}
	n, err := fs.file.ReadAt(buf, fs.pos)
	if err != nil || n != len(buf) {
		return false
	}
	fs.pos += int64(n)
	return true
}

func (fs *FileSource) Position() int64 {
	return fs.pos
}

func (fs *FileSource) SetPosition(pos int64) bool {
	if pos < 0 || pos > fs.size {
		return false
	}
	fs.pos = pos
	return true
}

func (fs *FileSource) Skip(n int64) bool {
	return fs.SetPosition(fs.pos + n)
}

func (fs *FileSource) Size() int64 {
	return fs.size
}

func (fs *FileSource) Name() string {
	return fs.name
}

func (fs *FileSource) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}

// MemorySource is a ByteSource over an in-memory buffer, used by tests
// and fixture tooling.
type MemorySource struct {
	data []byte
	pos  int64
	name string
}

func NewMemorySource(name string, data []byte) *MemorySource {
	return &MemorySource{data: data, name: name}
}

func (ms *MemorySource) IsOpen() bool {
	return ms.data != nil
}

func (ms *MemorySource) Read(buf []byte) bool {
	if ms.pos+int64(len(buf)) > int64(len(ms.data)) {
		return false
	}
	copy(buf, ms.data[ms.pos:])
	ms.pos += int64(len(buf))
	return true
}

func (ms *MemorySource) Position() int64 {
	return ms.pos
}

func (ms *MemorySource) SetPosition(pos int64) bool {
	if pos < 0 || pos > int64(len(ms.data)) {
		return false
	}
	ms.pos = pos
	return true
}

func (ms *MemorySource) Skip(n int64) bool {
	return ms.SetPosition(ms.pos + n)
}

func (ms *MemorySource) Size() int64 {
	return int64(len(ms.data))
}

func (ms *MemorySource) Name() string {
	return ms.name
}
