package sshchat

import "sync"

// lineBuffer holds the line being typed. The reader edits it while the
// writer redraws it under incoming messages.
type lineBuffer struct {
	mu    sync.RWMutex
	data  []rune
	limit int
}

func newLineBuffer(limit int) *lineBuffer {
	if limit <= 0 {
		limit = 1024
	}
	return &lineBuffer{
		data:  make([]rune, 0, 128),
		limit: limit,
	}
}

// Append adds r unless the line is at its limit.
func (b *lineBuffer) Append(r rune) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) >= b.limit {
		return false
	}
	b.data = append(b.data, r)
	return true
}

// TrimLast removes the last rune and reports whether there was one.
func (b *lineBuffer) TrimLast() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.data)
	if n == 0 {
		return false
	}
	b.data = b.data[:n-1]
	return true
}

func (b *lineBuffer) Reset() {
	b.mu.Lock()
	b.data = b.data[:0]
	b.mu.Unlock()
}

func (b *lineBuffer) Drain() string {
	b.mu.Lock()
	text := string(b.data)
	b.data = b.data[:0]
	b.mu.Unlock()
	return text
}

func (b *lineBuffer) Snapshot() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return string(b.data)
}

func (b *lineBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
