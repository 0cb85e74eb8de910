// Package objects stores uploaded binary objects and reads them back as a
// sequence of fixed-size chunks. The chunk iterator is deliberately narrow:
// it is finite, not restartable, and only moves forward, which is all the
// delivery path is allowed to assume about the backing store.
package objects

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/filegate/filegate/store"
)

// Info is the metadata kept for each stored object. It is immutable after
// upload.
type Info struct {
	ID       string
	Name     string    // display name used for Content-Disposition
	MimeType string
	Size     int64
	Created  time.Time
}

// ErrNotFound is returned when no object exists with a given id.
var ErrNotFound = errors.New("no such object")

const (
	// content and metadata share one underlying store, distinguished by
	// key prefix
	metaKeyPrefix = "md-"
	dataKeyPrefix = "d-"
)

// Store holds objects inside a store.Store. Content goes under one key
// prefix and JSON metadata under another.
type Store struct {
	meta store.JSONStore
	data store.Store
}

// New creates an object store wrapping s.
func New(s store.Store) *Store {
	return &Store{
		meta: store.NewJSON(store.NewWithPrefix(s, metaKeyPrefix)),
		data: store.NewWithPrefix(s, dataKeyPrefix),
	}
}

// Upload stores the content of r as a new object and returns its id.
// The size recorded is the number of bytes actually read from r.
func (s *Store) Upload(name, mimeType string, r io.Reader) (Info, error) {
	id := randomid()
	w, err := s.data.Create(id)
	if err != nil {
		return Info{}, errors.Wrap(err, "upload create")
	}
	size, err := io.Copy(w, r)
	err2 := w.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		s.data.Delete(id)
		return Info{}, errors.Wrap(err, "upload copy")
	}
	info := Info{
		ID:       id,
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		Created:  time.Now(),
	}
	err = s.meta.Save(id, info)
	if err != nil {
		s.data.Delete(id)
		return Info{}, errors.Wrap(err, "upload metadata")
	}
	return info, nil
}

// Stat returns the metadata for the object with the given id.
func (s *Store) Stat(id string) (Info, error) {
	var info Info
	err := s.meta.Open(id, &info)
	if err != nil {
		return Info{}, ErrNotFound
	}
	return info, nil
}

// Iterate opens the object's content and returns an iterator producing
// consecutive chunks of exactly chunkSize bytes, starting at offset.
// The final chunk may be shorter. The offset should be chunk-aligned;
// the iterator does not check.
func (s *Store) Iterate(id string, offset, chunkSize int64) (*Iterator, error) {
	r, size, err := s.data.Open(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return &Iterator{
		r:     r,
		size:  size,
		off:   offset,
		chunk: chunkSize,
	}, nil
}

// Delete removes an object and its metadata.
func (s *Store) Delete(id string) error {
	err := s.meta.Delete(id)
	err2 := s.data.Delete(id)
	if err == nil {
		err = err2
	}
	return err
}

// An Iterator reads an object one fixed-size chunk at a time. It cannot be
// rewound. Close it when done, especially when abandoning the sequence
// early because a client went away.
type Iterator struct {
	r     store.ReadAtCloser
	size  int64
	off   int64
	chunk int64
	buf   []byte
}

// Next returns the next chunk, or io.EOF when the sequence is exhausted.
// The returned slice is only valid until the following call to Next.
func (it *Iterator) Next() ([]byte, error) {
	if it.off >= it.size {
		return nil, io.EOF
	}
	n := it.chunk
	if it.off+n > it.size {
		n = it.size - it.off
	}
	if int64(cap(it.buf)) < n {
		it.buf = make([]byte, n)
	}
	buf := it.buf[:n]
	nread, err := it.r.ReadAt(buf, it.off)
	it.off += int64(nread)
	if err == io.EOF && nread > 0 {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:nread], nil
}

// Close releases the underlying reader.
func (it *Iterator) Close() error {
	return it.r.Close()
}

func randomid() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
