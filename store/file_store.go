package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
)

// FileSystem is a Store kept in a single directory. Keys are used directly
// as file names, so they must not contain a path separator. New values are
// staged in a scratch subdirectory and renamed into place on Close, so a
// crash mid-write never leaves a truncated record behind.
type FileSystem struct {
	root string
}

var _ Store = &FileSystem{}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists.
	ErrKeyExists = errors.New("key already exists")

	// ErrBadKey means the key contains a slash or other character we
	// refuse to put in a file name.
	ErrBadKey = errors.New("invalid key")
)

const scratchdir = "scratch"

// NewFileSystem creates a FileSystem store rooted at the given directory.
// The directory is created if it does not exist.
func NewFileSystem(root string) *FileSystem {
	os.MkdirAll(filepath.Join(root, scratchdir), 0755)
	return &FileSystem{root: root}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, "/\\\x00") {
		return ErrBadKey
	}
	return nil
}

// List returns a channel enumerating every key in the store.
func (s *FileSystem) List() <-chan string {
	c := make(chan string)
	go func() {
		defer close(c)
		entries, err := os.ReadDir(s.root)
		if err != nil {
			raven.CaptureError(err, map[string]string{"Root": s.root})
			return
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			c <- e.Name()
		}
	}()
	return c
}

// ListPrefix returns every key beginning with the given prefix.
func (s *FileSystem) ListPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		raven.CaptureError(err, map[string]string{"Root": s.root})
		return nil, errors.Wrap(err, "fs list")
	}
	var result []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			result = append(result, e.Name())
		}
	}
	return result, nil
}

// Open returns a reader over the value for key and the value's size.
func (s *FileSystem) Open(key string) (ReadAtCloser, int64, error) {
	if err := validKey(key); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(s.root, key))
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Wrap(err, "fs stat")
	}
	return f, fi.Size(), nil
}

// Create returns a writer for a new value under key. The value appears in
// the store when the writer is closed.
func (s *FileSystem) Create(key string) (io.WriteCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	target := filepath.Join(s.root, key)
	if _, err := os.Stat(target); err == nil {
		return nil, ErrKeyExists
	}
	tmp := filepath.Join(s.root, scratchdir, key)
	f, err := os.Create(tmp)
	if err != nil {
		raven.CaptureError(err, map[string]string{"Key": key})
		return nil, errors.Wrap(err, "fs create")
	}
	return &fswriter{f: f, tmp: tmp, target: target}, nil
}

type fswriter struct {
	f      *os.File
	tmp    string
	target string
}

func (w *fswriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *fswriter) Close() error {
	err := w.f.Close()
	if err != nil {
		os.Remove(w.tmp)
		return err
	}
	return os.Rename(w.tmp, w.target)
}

// Delete removes key. It is not an error to delete a missing key.
func (s *FileSystem) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, key))
	if os.IsNotExist(err) {
		err = nil
	}
	return err
}
