package util

// A Gate limits concurrency. Every gate has a maximum number of goroutines
// to allow through at a time. Goroutines enter the gate by calling Enter(),
// and signal that they are done by calling Leave().
type Gate chan struct{}

// NewGate returns a Gate which admits at most n entries at a time.
func NewGate(n int) Gate {
	return Gate(make(chan struct{}, n))
}

// Enter blocks until fewer than n goroutines are inside the gate.
func (g Gate) Enter() {
	g <- struct{}{}
}

// Leave marks a goroutine outside the gate. Balance every Enter with a
// Leave. They do not need to be called from the same goroutine.
func (g Gate) Leave() {
	<-g
}
