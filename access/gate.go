// Package access issues and verifies the capability codes gating object
// downloads. Possession of an object's code is the only proof of
// authorization the delivery path requires.
package access

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"
)

// DefaultCodeLength is the number of random bytes in a code. The code
// itself is hex encoded, so the string is twice this long.
const DefaultCodeLength = 12

// ErrNoCode is returned when no code has been bound to an object id.
var ErrNoCode = errors.New("no code bound to object")

// A CodeStore persists the binding between an object id and its code.
type CodeStore interface {
	SetCode(id, code string) error
	GetCode(id string) (string, error)
}

// Gate issues and checks capability codes.
type Gate struct {
	// Codes persists the id to code bindings.
	Codes CodeStore

	// Length is the number of random bytes per code. Zero means
	// DefaultCodeLength.
	Length int
}

// Issue generates a fresh code, binds it to the object id, and returns it.
func (g *Gate) Issue(id string) (string, error) {
	n := g.Length
	if n <= 0 {
		n = DefaultCodeLength
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "issue code")
	}
	code := hex.EncodeToString(b)
	if err := g.Codes.SetCode(id, code); err != nil {
		return "", err
	}
	return code, nil
}

// Verify reports whether presented matches the code bound to id. The
// comparison does not leak timing information about a prefix match.
func (g *Gate) Verify(id, presented string) bool {
	bound, err := g.Codes.GetCode(id)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(bound), []byte(presented)) == 1
}

// MemoryCodes is a volatile CodeStore.
type MemoryCodes struct {
	m     sync.RWMutex
	codes map[string]string
}

var _ CodeStore = &MemoryCodes{}

// NewMemoryCodes returns an empty in-memory code store.
func NewMemoryCodes() *MemoryCodes {
	return &MemoryCodes{codes: make(map[string]string)}
}

func (mc *MemoryCodes) SetCode(id, code string) error {
	mc.m.Lock()
	mc.codes[id] = code
	mc.m.Unlock()
	return nil
}

func (mc *MemoryCodes) GetCode(id string) (string, error) {
	mc.m.RLock()
	code, ok := mc.codes[id]
	mc.m.RUnlock()
	if !ok {
		return "", ErrNoCode
	}
	return code, nil
}
