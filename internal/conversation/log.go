// Package conversation provides the append-only message log shared by
// the agents of one task, the consensus predicates over its content,
// and handoff-decision parsing.
package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// condensedContentLimit bounds per-message content in the condensed view.
const condensedContentLimit = 400

// Message is one entry in a conversation log.
type Message struct {
	// Role is the speaker: an agent name or "user"/"system".
	Role string
	// Content is the free-form message body.
	Content string
	// Metadata carries auxiliary key/value pairs (cost, duration, model).
	Metadata map[string]string
	// Timestamp is when the message was appended.
	Timestamp time.Time
}

// Log is an append-only, totally ordered message store.
// A log is owned by exactly one task (or subtask) and has a single
// writer; the mutex guards against readers racing the writer.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a message. It is the only mutator.
func (l *Log) Add(role, content string, metadata map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy of all messages in append order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Latest returns the most recent message, or false if the log is empty.
func (l *Log) Latest() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// LatestFrom returns the most recent message by the given role,
// or false if the role has not spoken.
func (l *Log) LatestFrom(role string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == role {
			return l.messages[i], true
		}
	}
	return Message{}, false
}

// CondensedView returns a reduced representation of the log for handing
// to later agents: per message, the role, the extracted handoff tokens,
// and the content truncated past a fixed length.
func (l *Log) CondensedView() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	for _, m := range l.messages {
		content := m.Content
		if len(content) > condensedContentLimit {
			cut := condensedContentLimit
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, content)

		if d := Parse(m.Content); d.Kind != KindUnparsable {
			fmt.Fprintf(&b, "  -> handoff: %s\n", d)
		}
	}
	return b.String()
}
