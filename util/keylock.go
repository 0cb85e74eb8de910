package util

import (
	"sync"
)

// A KeyLock provides mutual exclusion per key. Two goroutines holding
// different keys proceed independently; two holding the same key are
// serialized. It is used to keep read-modify-write cycles on one owner's
// bulk session from losing updates.
type KeyLock struct {
	m     sync.Mutex
	locks map[string]*keyentry
}

type keyentry struct {
	mu  sync.Mutex
	ref int
}

// NewKeyLock returns an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*keyentry)}
}

// Lock acquires the lock for key, blocking while another goroutine holds it.
func (kl *KeyLock) Lock(key string) {
	kl.m.Lock()
	e := kl.locks[key]
	if e == nil {
		e = &keyentry{}
		kl.locks[key] = e
	}
	e.ref++
	kl.m.Unlock()
	e.mu.Lock()
}

// Unlock releases the lock for key. The entry is removed once no goroutine
// is waiting on it, so idle keys do not accumulate.
func (kl *KeyLock) Unlock(key string) {
	kl.m.Lock()
	e := kl.locks[key]
	e.ref--
	if e.ref == 0 {
		delete(kl.locks, key)
	}
	kl.m.Unlock()
	e.mu.Unlock()
}
