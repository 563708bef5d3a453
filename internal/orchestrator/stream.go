package orchestrator

import (
	"iter"

	"github.com/nadzzz/civicbot/internal/message"
)

// Stream reveals a reply into its assistant turn one code point at a time.
//
// Use it like bufio.Scanner:
//
//	for s.Next() {
//		render(s.Snapshot())
//	}
//
// A Stream is finite and cannot be restarted. It is meant for a single
// consumer; the history it writes to may be read concurrently.
type Stream struct {
	history *message.History
	idx     int
	runes   []rune
	n       int
	cur     message.Snapshot
	reply   Reply
}

func newStream(history *message.History, idx int, reply Reply) *Stream {
	return &Stream{
		history: history,
		idx:     idx,
		runes:   []rune(reply.Text),
		reply:   reply,
	}
}

// Next reveals one more character. It returns false once the whole reply
// has been revealed, and on every call after that.
func (s *Stream) Next() bool {
	if s.n >= len(s.runes) {
		return false
	}
	s.n++
	s.history.SetContent(s.idx, string(s.runes[:s.n]))
	s.cur = message.Snapshot{History: s.history.Turns()}
	return true
}

// Snapshot returns the snapshot produced by the last successful Next.
func (s *Stream) Snapshot() message.Snapshot {
	return s.cur
}

// All returns the remaining snapshots as an iterator. Breaking out of the
// loop leaves the turn partially revealed; a later Next continues from there.
func (s *Stream) All() iter.Seq[message.Snapshot] {
	return func(yield func(message.Snapshot) bool) {
		for s.Next() {
			if !yield(s.cur) {
				return
			}
		}
	}
}

// Drain reveals the rest of the reply at once and returns the final snapshot.
func (s *Stream) Drain() message.Snapshot {
	if s.n < len(s.runes) {
		s.n = len(s.runes)
		s.history.SetContent(s.idx, string(s.runes))
	}
	s.cur = message.Snapshot{History: s.history.Turns()}
	return s.cur
}

// Reply returns the pipeline outcome behind the stream.
func (s *Stream) Reply() Reply {
	return s.reply
}

// Remaining returns the number of characters not yet revealed.
func (s *Stream) Remaining() int {
	return len(s.runes) - s.n
}
