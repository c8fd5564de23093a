package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

// Entry is one named file inside an archive.
type Entry struct {
	Index int
	Name  string
	file  *zip.File
}

// Read returns the entry's raw bytes.
func (e Entry) Read() ([]byte, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Reader lists the file entries of a zip archive in archive order.
type Reader struct {
	closer  io.Closer
	entries []Entry
}

// Open opens the zip archive at path.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &Reader{closer: zr, entries: collect(&zr.Reader)}, nil
}

// ReadAll reads an archive that is already in memory.
func ReadAll(r io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return &Reader{entries: collect(zr)}, nil
}

func collect(zr *zip.Reader) []Entry {
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		entries = append(entries, Entry{Index: len(entries), Name: f.Name, file: f})
	}
	return entries
}

// Entries returns the file entries in archive order, directories excluded.
func (r *Reader) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Find returns the entry with the given name.
func (r *Reader) Find(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
