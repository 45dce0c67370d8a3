// Package dedup keeps a time-windowed set of recently-seen webhook
// fingerprints so at-least-once deliveries never double-count. The
// window is 120 seconds: comfortably past typical webhook retry
// schedules while keeping the map small. Eviction is time-based.
//
// A fingerprint is claimed before the pipeline runs and resolved with
// the result afterwards, so a concurrent redelivery blocks on the
// claim instead of slipping past the check while the first delivery is
// still in flight.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const DefaultTTL = 120 * time.Second

type entry struct {
	value  interface{}
	seenAt time.Time
	// pending is non-nil while the claiming delivery is still being
	// processed and is closed on Resolve or Release.
	pending chan struct{}
}

type Window struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
}

func NewWindow(ttl time.Duration) *Window {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Window{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Fingerprint hashes the identifying parts of a webhook delivery into a
// stable key.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// Claim reserves fp for the caller. It returns (nil, false) when the
// caller now owns the fingerprint and must later call Resolve or
// Release, and (prior, true) when fp was already resolved inside the
// window. When fp is claimed but not yet resolved, Claim blocks until
// the owner finishes, then returns the owner's result (or retakes the
// claim if the owner released it).
func (w *Window) Claim(fp string) (interface{}, bool) {
	for {
		w.mu.Lock()
		e, ok := w.entries[fp]
		if !ok || (e.pending == nil && w.now().Sub(e.seenAt) > w.ttl) {
			w.entries[fp] = &entry{pending: make(chan struct{}), seenAt: w.now()}
			w.mu.Unlock()
			return nil, false
		}
		if e.pending == nil {
			v := e.value
			w.mu.Unlock()
			return v, true
		}
		ch := e.pending
		w.mu.Unlock()
		<-ch
	}
}

// Resolve stores the result for a claimed fingerprint, wakes any
// blocked claimants, and prunes expired entries.
func (w *Window) Resolve(fp string, value interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	for k, e := range w.entries {
		if e.pending == nil && now.Sub(e.seenAt) > w.ttl {
			delete(w.entries, k)
		}
	}
	e, ok := w.entries[fp]
	if !ok {
		w.entries[fp] = &entry{value: value, seenAt: now}
		return
	}
	e.value = value
	e.seenAt = now
	if e.pending != nil {
		close(e.pending)
		e.pending = nil
	}
}

// Release abandons a claim after a failed pipeline run so a redelivery
// can try again. Blocked claimants retake the claim.
func (w *Window) Release(fp string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[fp]
	if ok && e.pending != nil {
		close(e.pending)
		delete(w.entries, fp)
	}
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
