// Package memory provides the bounded conversation turn log.
//
// A Log is an ordered, capacity-bounded sequence of turns. When full,
// appending evicts the oldest turn. The router renders the log into its
// decision prompt; nothing else reads it.
package memory

import (
	"fmt"
	"strings"
	"sync"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single conversational exchange entry. Immutable once appended.
type Turn struct {
	Role Role
	Text string
}

// UserTurn creates a user turn.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// SystemTurn creates a system turn.
func SystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Text: text}
}

// DefaultCapacity bounds a log when no explicit capacity is given.
const DefaultCapacity = 50

// Log is a bounded FIFO turn log.
type Log struct {
	mu       sync.RWMutex
	turns    []Turn
	capacity int
}

// NewLog creates a log holding at most capacity turns. Non-positive
// capacities fall back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append adds a turn, evicting the oldest turn when the log is full.
func (l *Log) Append(turn Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = append(l.turns, turn)
	if len(l.turns) > l.capacity {
		// Shift rather than reslice so the evicted backing array
		// entries do not pin their strings.
		copy(l.turns, l.turns[1:])
		l.turns = l.turns[:l.capacity]
	}
}

// Recent returns all retained turns, oldest first.
func (l *Log) Recent() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of retained turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Capacity returns the maximum number of retained turns.
func (l *Log) Capacity() int {
	return l.capacity
}

// Clear discards all turns.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = nil
}

// Render formats the most recent limit turns oldest-first, one per line,
// role-prefixed. System turns are elided. A non-positive limit renders
// the whole log.
func (l *Log) Render(limit int) string {
	turns := l.Recent()

	visible := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		visible = append(visible, t)
	}

	if limit > 0 && len(visible) > limit {
		visible = visible[len(visible)-limit:]
	}

	var b strings.Builder
	for _, t := range visible {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
	}
	return b.String()
}
