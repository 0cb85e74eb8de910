package store

import (
	"io"
	"testing"
)

func TestFileSystemRoundTrip(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	w, err := fs.Create("record")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("some content"))
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}

	r, size, err := fs.Open("record")
	if err != nil {
		t.Fatal(err)
	}
	if size != 12 {
		t.Errorf("size = %d, expected 12", size)
	}
	data, _ := io.ReadAll(NewReader(r))
	r.Close()
	if string(data) != "some content" {
		t.Errorf("read %#v", string(data))
	}

	if _, err = fs.Create("record"); err != ErrKeyExists {
		t.Errorf("Create returned %v, expected ErrKeyExists", err)
	}
	if err = fs.Delete("record"); err != nil {
		t.Fatal(err)
	}
	if err = fs.Delete("record"); err != nil {
		t.Errorf("second Delete returned %v", err)
	}
}

func TestFileSystemBadKeys(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	for _, key := range []string{"", "a/b", `a\b`} {
		if _, err := fs.Create(key); err != ErrBadKey {
			t.Errorf("Create(%q) returned %v, expected ErrBadKey", key, err)
		}
	}
}

func TestFileSystemList(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	for _, key := range []string{"one", "two"} {
		w, _ := fs.Create(key)
		w.Close()
	}
	var count int
	for range fs.List() {
		count++
	}
	// the scratch directory must not show up in listings
	if count != 2 {
		t.Errorf("List returned %d keys, expected 2", count)
	}
}
