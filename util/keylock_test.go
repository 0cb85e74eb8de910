package util

import (
	"sync"
	"testing"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := NewKeyLock()
	var counter int
	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kl.Lock("owner")
			counter++
			kl.Unlock("owner")
		}()
	}
	wg.Wait()
	if counter != n {
		t.Errorf("counter = %d, expected %d", counter, n)
	}
	// the entry should have been reaped
	kl.m.Lock()
	remaining := len(kl.locks)
	kl.m.Unlock()
	if remaining != 0 {
		t.Errorf("%d lock entries left behind", remaining)
	}
}

func TestKeyLockIndependentKeys(t *testing.T) {
	kl := NewKeyLock()
	kl.Lock("a")
	done := make(chan struct{})
	go func() {
		kl.Lock("b")
		kl.Unlock("b")
		close(done)
	}()
	// must not deadlock: key "b" is independent of held key "a"
	<-done
	kl.Unlock("a")
}
