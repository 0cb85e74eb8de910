// Package store provides a goroutine safe key-value interface where values
// are streams rather than opaque byte arrays. It is the substrate everything
// else in filegate persists into: object content and metadata, bulk session
// records, and finalized bundles.
//
// The Memory store is volatile and intended for testing and for running
// without any external storage. The FileSystem and S3 stores persist across
// restarts.
package store

import (
	"io"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store is the basic stream based key-value store. Values are immutable once
// written, but a key may be deleted and then recreated with new content.
// That delete-then-create cycle is how the record stores overwrite mutable
// records.
//
// The FileSystem store uses keys as file names, so keys should not contain
// a forward slash.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only half of a Store.
type ROStore interface {
	List() <-chan string
	ListPrefix(prefix string) ([]string, error)
	Open(key string) (ReadAtCloser, int64, error)
}

// NewReader converts a ReaderAt into an io.Reader reading from offset 0.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// a short read is not an error for an io.Reader
		err = nil
	}
	return
}
