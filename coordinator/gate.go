// Package coordinator serializes access to the remote site between the
// auto-recheck scheduler and the bulk verification queue. Both must win the
// gate before starting a cycle or a job, so they never hammer the site at the
// same time.
package coordinator

import "sync"

// Gate is an exclusive-access token. The scheduler uses TryAcquire and skips
// its whole cycle when a bulk job holds the gate; the queue worker blocks on
// Acquire before each job.
type Gate struct {
	mu sync.Mutex
}

// TryAcquire attempts to take the gate without blocking.
func (g *Gate) TryAcquire() bool {
	return g.mu.TryLock()
}

// Acquire blocks until the gate is free.
func (g *Gate) Acquire() {
	g.mu.Lock()
}

// Release frees the gate. Calling Release without holding the gate is a
// programming error and panics, same as unlocking an unlocked mutex.
func (g *Gate) Release() {
	g.mu.Unlock()
}
