package camera

import "sync"

// diagBuffer is a thread-safe circular buffer holding the most recent
// diagnostic lines emitted by an external tool on stderr. Capture failures
// surface the newest line to the caller, so only a short tail is retained.
type diagBuffer struct {
	entries [64]string
	head    int // next write position
	size    int
	mu      sync.RWMutex
}

// Append adds a line, overwriting the oldest once full.
func (b *diagBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	const capN = len(b.entries)
	b.entries[b.head] = line
	b.head = (b.head + 1) % capN
	if b.size < capN {
		b.size++
	}
}

// Last returns the newest line, or "" when nothing was captured.
func (b *diagBuffer) Last() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return ""
	}
	const capN = len(b.entries)
	return b.entries[(b.head-1+capN)%capN]
}

// Tail returns up to n lines, oldest first. Returns a new slice the caller
// owns.
func (b *diagBuffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}
	const capN = len(b.entries)
	out := make([]string, 0, n)
	start := (b.head - n + capN) % capN
	for i := 0; i < n; i++ {
		out = append(out, b.entries[(start+i)%capN])
	}
	return out
}
