package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildZip(t *testing.T, files []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if len(name) > 0 && name[len(name)-1] != '/' {
			w.Write([]byte("data:" + name))
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEntriesKeepArchiveOrder(t *testing.T) {
	data := buildZip(t, []string{"b-2.png", "pages/", "a-1.png", "pages/c-3.png"})

	r, err := ReadAll(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	defer r.Close()

	entries := r.Entries()
	want := []string{"b-2.png", "a-1.png", "pages/c-3.png"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
	}
	for i, e := range entries {
		if e.Name != want[i] || e.Index != i {
			t.Errorf("Entry %d = (%d, %q), want (%d, %q)", i, e.Index, e.Name, i, want[i])
		}
	}

	body, err := entries[1].Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(body) != "data:a-1.png" {
		t.Errorf("Unexpected entry body %q", body)
	}

	if _, ok := r.Find("pages/c-3.png"); !ok {
		t.Error("Expected Find to locate nested entry")
	}
	if _, ok := r.Find("missing.png"); ok {
		t.Error("Expected Find to miss unknown entry")
	}
}

func TestOpenFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.zip")
	if err := os.WriteFile(path, buildZip(t, []string{"p1.jpg"}), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	if len(r.Entries()) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(r.Entries()))
	}

	if _, err := Open(filepath.Join(t.TempDir(), "nope.zip")); err == nil {
		t.Error("Expected error for missing archive")
	}
}
