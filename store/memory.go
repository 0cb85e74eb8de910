package store

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Memory is an in-memory Store. Contents are lost when the process exits.
// It backs the volatile session and bundle stores and is used throughout
// the tests.
type Memory struct {
	m     sync.RWMutex
	items map[string][]byte
}

var _ Store = &Memory{}

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string][]byte)}
}

// List returns a channel enumerating every key in the store.
func (ms *Memory) List() <-chan string {
	ms.m.RLock()
	keys := make([]string, 0, len(ms.items))
	for k := range ms.items {
		keys = append(keys, k)
	}
	ms.m.RUnlock()
	c := make(chan string)
	go func() {
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// ListPrefix returns every key beginning with the given prefix.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.items {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Open returns a ReadAtCloser over the value for key and the value's size.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	b, ok := ms.items[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("no item %s", key)
	}
	return membuf{bytes.NewReader(b)}, int64(len(b)), nil
}

type membuf struct {
	*bytes.Reader
}

func (membuf) Close() error { return nil }

// Create returns a writer for a new value. The value is visible to readers
// only after the writer is closed.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.items[key]; ok {
		return nil, ErrKeyExists
	}
	return &memwriter{parent: ms, key: key}, nil
}

type memwriter struct {
	parent *Memory
	key    string
	buf    bytes.Buffer
}

func (w *memwriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Close commits the buffered bytes into the parent store.
func (w *memwriter) Close() error {
	w.parent.m.Lock()
	w.parent.items[w.key] = w.buf.Bytes()
	w.parent.m.Unlock()
	return nil
}

// Delete removes key. It is not an error to delete a missing key.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.items, key)
	ms.m.Unlock()
	return nil
}
