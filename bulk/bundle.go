package bulk

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/filegate/filegate/store"
)

// ErrNoBundle is returned when no bundle exists with a given id.
var ErrNoBundle = errors.New("no such bundle")

// A BundleStore persists finalized bundles. Bundles are write-once: there
// is no update or delete.
type BundleStore interface {
	// Insert assigns the bundle an id, persists it, and returns the id.
	Insert(b *Bundle) (string, error)
	// Lookup returns the bundle with the given id, or ErrNoBundle.
	Lookup(id string) (*Bundle, error)
}

func newBundleID() string {
	return uuid.NewString()
}

// MemoryBundles is a volatile BundleStore.
type MemoryBundles struct {
	m       sync.RWMutex
	bundles map[string]Bundle
}

var _ BundleStore = &MemoryBundles{}

// NewMemoryBundles returns an empty in-memory bundle store.
func NewMemoryBundles() *MemoryBundles {
	return &MemoryBundles{bundles: make(map[string]Bundle)}
}

func (mb *MemoryBundles) Insert(b *Bundle) (string, error) {
	b.ID = newBundleID()
	b.Created = time.Now()
	mb.m.Lock()
	mb.bundles[b.ID] = *b
	mb.m.Unlock()
	return b.ID, nil
}

func (mb *MemoryBundles) Lookup(id string) (*Bundle, error) {
	mb.m.RLock()
	b, ok := mb.bundles[id]
	mb.m.RUnlock()
	if !ok {
		return nil, ErrNoBundle
	}
	return &b, nil
}

// RecordBundles persists bundles as JSON records in a store.Store, one
// record per bundle id.
type RecordBundles struct {
	js store.JSONStore
}

var _ BundleStore = &RecordBundles{}

// NewRecordBundles returns a BundleStore persisting into s.
func NewRecordBundles(s store.Store) *RecordBundles {
	return &RecordBundles{js: store.NewJSON(s)}
}

func (rb *RecordBundles) Insert(b *Bundle) (string, error) {
	b.ID = newBundleID()
	b.Created = time.Now()
	err := rb.js.Save(b.ID, b)
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

func (rb *RecordBundles) Lookup(id string) (*Bundle, error) {
	var b Bundle
	err := rb.js.Open(id, &b)
	if err != nil {
		return nil, ErrNoBundle
	}
	return &b, nil
}
