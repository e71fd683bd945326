// Package sequencer reassembles out-of-order writes into an in-order byte
// stream (spec §4.F). It holds a write cursor and a set of buffered,
// non-overlapping segments, and delivers bytes downstream to the Chunker as
// soon as they become contiguous with the cursor.
package sequencer

import (
	"math"
	"sort"
	"sync"

	"github.com/maidsafe-archive/selfencrypt-go/internal/engineerr"
)

// Downstream receives in-order bytes as the Sequencer's write cursor
// advances. The Chunker implements this interface.
type Downstream interface {
	Deliver(b []byte) error
}

type segment struct {
	offset int64
	data   []byte
}

// Sequencer buffers out-of-order writes and delivers them downstream in
// order. It is not safe to use Write concurrently from multiple goroutines
// without external synchronisation; the Engine owns it exclusively, per
// spec §3's ownership rule.
type Sequencer struct {
	mu       sync.Mutex
	cursor   int64
	segments []segment
	down     Downstream
}

// New creates a Sequencer delivering in-order bytes to down.
func New(down Downstream) *Sequencer {
	return &Sequencer{down: down}
}

// Cursor returns C, the number of bytes already delivered downstream.
func (s *Sequencer) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Write implements the protocol in spec §4.F for a call write(p, b):
//
//   - p == C: deliver b downstream, advance C, then drain any now-contiguous
//     buffered segments.
//   - p > C: buffer (p, b), merging with overlapping/adjacent segments; on
//     overlap the later write (this one) wins for the overlapping range.
//   - p < C: the write intersects already-delivered data. Write itself
//     always reports this as ErrRewriteNotSupported; the narrower pre-commit
//     exception in spec §4.F (a rewrite that lands entirely inside bytes the
//     Chunker has not yet cut into a chunk) is handled by RewriteBehindCursor
//     instead, which the Engine calls in place of Write when offset < C (see
//     engine.Write).
func (s *Sequencer) Write(offset int64, b []byte) error {
	if offset < 0 {
		return engineerr.ErrOffsetOverflow
	}
	if len(b) == 0 {
		return nil
	}
	if offset > math.MaxInt64-int64(len(b)) {
		return engineerr.ErrOffsetOverflow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < s.cursor {
		return engineerr.ErrRewriteNotSupported
	}
	if offset == s.cursor {
		if err := s.down.Deliver(b); err != nil {
			return err
		}
		s.cursor += int64(len(b))
		return s.drainLocked()
	}

	s.mergeInsertLocked(offset, b)
	return nil
}

// RewriteBehindCursor implements the pre-commit rewrite exception of spec
// §4.F for a write at offset < C. It holds the same lock as Write, so it
// serializes against every other call into the downstream Chunker, then
// invokes patch while that lock is held. patch is expected to apply the
// rewrite directly to the Chunker's still-buffered, not-yet-committed tail
// (e.g. via Chunker.PatchBuffered) and to return ErrRewriteNotSupported
// itself if the affected range turns out to reach an already-committed
// chunk. The cursor and buffered out-of-order segments are untouched: this
// path never delivers bytes downstream, it only corrects bytes already
// delivered but not yet cut into a chunk.
func (s *Sequencer) RewriteBehindCursor(offset int64, b []byte, patch func() error) error {
	if offset < 0 {
		return engineerr.ErrOffsetOverflow
	}
	if len(b) == 0 {
		return nil
	}
	if offset > math.MaxInt64-int64(len(b)) {
		return engineerr.ErrOffsetOverflow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if offset+int64(len(b)) > s.cursor {
		return engineerr.ErrRewriteNotSupported
	}
	return patch()
}

// drainLocked delivers every buffered segment that has become contiguous
// with the cursor, repeatedly, until none remain.
func (s *Sequencer) drainLocked() error {
	for {
		idx := -1
		for i, seg := range s.segments {
			if seg.offset == s.cursor {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil
		}
		seg := s.segments[idx]
		s.segments = append(s.segments[:idx], s.segments[idx+1:]...)
		if err := s.down.Deliver(seg.data); err != nil {
			return err
		}
		s.cursor += int64(len(seg.data))
	}
}

// mergeInsertLocked inserts (offset, data) into the buffered segment set,
// trimming any existing segments it overlaps so the later write wins for the
// overlapping range (spec §4.F).
func (s *Sequencer) mergeInsertLocked(offset int64, data []byte) {
	newEnd := offset + int64(len(data))

	kept := make([]segment, 0, len(s.segments)+1)
	for _, seg := range s.segments {
		segEnd := seg.offset + int64(len(seg.data))
		switch {
		case segEnd <= offset || seg.offset >= newEnd:
			// No overlap; keep unchanged.
			kept = append(kept, seg)
		case seg.offset < offset && segEnd <= newEnd:
			// Existing segment's head survives; tail is overwritten.
			kept = append(kept, segment{offset: seg.offset, data: seg.data[:offset-seg.offset]})
		case seg.offset >= offset && segEnd > newEnd:
			// Existing segment's tail survives; head is overwritten.
			kept = append(kept, segment{offset: newEnd, data: seg.data[newEnd-seg.offset:]})
		case seg.offset < offset && segEnd > newEnd:
			// New write lands entirely inside the existing segment: both
			// the head and tail of the existing segment survive.
			kept = append(kept, segment{offset: seg.offset, data: seg.data[:offset-seg.offset]})
			kept = append(kept, segment{offset: newEnd, data: seg.data[newEnd-seg.offset:]})
		default:
			// Existing segment is fully covered by the new write; drop it.
		}
	}
	kept = append(kept, segment{offset: offset, data: data})
	sort.Slice(kept, func(i, j int) bool { return kept[i].offset < kept[j].offset })
	s.segments = kept
}

// Reset discards all cursor and buffer state, returning the Sequencer to its
// initial condition.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
	s.segments = nil
}
