package transcript

import (
	"strings"
	"sync"
	"time"
)

// Speaker identifies which side of the conversation produced a turn.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Turn is a single committed utterance. Turns are never mutated after append.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only, ordered record of conversation turns for one call.
// Appends may come from different goroutines (the engine delivers agent and
// user callbacks from its own read loop); sequence numbers are assigned under
// the lock, so readers always observe strictly increasing sequences with no
// partially written turn.
type Log struct {
	mu    sync.Mutex
	turns []Turn
}

func NewLog() *Log {
	return &Log{}
}

// Append commits a turn with the next sequence number and returns it.
func (l *Log) Append(speaker Speaker, text string) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := Turn{
		Speaker:   speaker,
		Text:      text,
		Sequence:  len(l.turns) + 1,
		Timestamp: time.Now().UTC(),
	}
	l.turns = append(l.turns, turn)
	return turn
}

// Snapshot returns a copy of all turns committed so far. The copy is safe to
// read while further appends happen.
func (l *Log) Snapshot() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.turns...)
}

// Len returns the number of committed turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Format renders a snapshot as classifier input, one "speaker: text" line per
// turn in commit order.
func Format(turns []Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(turn.Speaker))
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}
