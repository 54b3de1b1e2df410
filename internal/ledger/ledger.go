package ledger

import (
	"fmt"
	"sync"
)

// Log is the append-only journal of human-readable events for one room:
// joins, bets, folds, pot awards. Entries are never rewritten or dropped
// while the room lives; the journal dies with the room.
type Log struct {
	mu      sync.Mutex
	entries []string
}

func New() *Log {
	return &Log{}
}

func (l *Log) Append(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *Log) Appendf(format string, args ...any) {
	l.Append(fmt.Sprintf(format, args...))
}

// Strings returns a copy, safe to hold after room locks are released.
func (l *Log) Strings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
