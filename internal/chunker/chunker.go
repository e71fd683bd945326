// Package chunker partitions an in-order byte stream into nominally equal
// chunks (the two-phase design in spec §4.G). Every chunk, chunks 0 and 1
// included, is handed to the Sink as soon as its boundary is fixed; the Sink
// holds chunks 0 and 1 back from encryption until the stream ends, because
// their key material wraps around to the last two chunks.
package chunker

import (
	"bytes"
	"fmt"
)

// Config controls chunk boundary selection.
type Config struct {
	// NominalChunkSize is the fixed per-chunk target once a stream grows
	// large enough to use it ("large file" mode).
	NominalChunkSize int
	// MinChunkSize is the threshold below which an entire stream collapses
	// to residual content with no chunks at all.
	MinChunkSize int
}

// DefaultConfig matches the values named in spec §6.
func DefaultConfig() Config {
	return Config{NominalChunkSize: 262144, MinChunkSize: 1025}
}

// Sink receives each chunk's raw bytes exactly once, in strictly increasing
// index order starting at 0. By the time CommitChunk(i, ...) is called for
// i >= 2, chunks 0..i-1 have already been committed, so the Sink has every
// pre-hash it needs to derive chunk i's key material immediately (see
// keyderiver; indices 0 and 1 are the only ones whose derivation wraps
// around to chunks not yet known, so the Sink must defer their encryption
// until it learns the stream has ended).
type Sink interface {
	CommitChunk(index int, data []byte) error
}

type mode int

const (
	modeUndecided mode = iota
	modeLarge
)

// Chunker implements sequencer.Downstream: it is fed the in-order byte
// stream and drives Sink.CommitChunk as boundaries are decided.
type Chunker struct {
	cfg  Config
	sink Sink

	mode mode

	// Buffered bytes not yet assigned to a chunk. In modeUndecided this
	// holds every byte seen so far, since small-file chunk size cannot be
	// computed until the stream length is known. In modeLarge it holds
	// only the tail not yet long enough to cut another full-size chunk.
	buf bytes.Buffer

	nominalChunkSize int
	nextIndex        int
	total            int64
}

// New creates a Chunker that commits chunks to sink as their boundaries are
// decided.
func New(cfg Config, sink Sink) *Chunker {
	return &Chunker{cfg: cfg, sink: sink, nextIndex: 2}
}

// TotalBytes reports the cumulative byte count observed so far.
func (c *Chunker) TotalBytes() int64 {
	return c.total
}

// CommittedBytes reports how many leading stream bytes have already been cut
// into a chunk and handed to Sink.CommitChunk. Bytes at or beyond this
// boundary are still sitting in buf, uncommitted, and may be patched in
// place by PatchBuffered.
func (c *Chunker) CommittedBytes() int64 {
	return c.total - int64(c.buf.Len())
}

// PatchBuffered overwrites len(data) bytes starting at localOffset within the
// still-buffered, not-yet-committed tail of the stream (localOffset is
// relative to CommittedBytes, not to the start of the stream). It is the
// mechanism behind the pre-commit rewrite exception in spec §4.F: a rewrite
// that lands entirely inside buf never touches an already-cut chunk, so it
// can be applied in place instead of being rejected.
func (c *Chunker) PatchBuffered(localOffset int64, data []byte) error {
	if localOffset < 0 || localOffset+int64(len(data)) > int64(c.buf.Len()) {
		return fmt.Errorf("chunker: patch range [%d,%d) outside buffered tail of length %d", localOffset, localOffset+int64(len(data)), c.buf.Len())
	}
	copy(c.buf.Bytes()[localOffset:], data)
	return nil
}

// Deliver implements sequencer.Downstream. It is called with in-order
// plaintext bytes as the Sequencer's cursor advances.
func (c *Chunker) Deliver(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	c.total += int64(len(b))
	c.buf.Write(b)

	if c.mode == modeUndecided {
		threshold := 3 * c.cfg.NominalChunkSize
		if c.buf.Len() < threshold {
			return nil
		}
		if err := c.enterLargeMode(); err != nil {
			return err
		}
	}

	return c.cutAvailableChunks()
}

// enterLargeMode commits chunks 0 and 1 at the fixed nominal size and
// switches to cutting chunks 2.. from the remaining tail as it arrives.
func (c *Chunker) enterLargeMode() error {
	c.mode = modeLarge
	c.nominalChunkSize = c.cfg.NominalChunkSize

	prefix0 := copyNext(&c.buf, c.nominalChunkSize)
	prefix1 := copyNext(&c.buf, c.nominalChunkSize)

	if err := c.sink.CommitChunk(0, prefix0); err != nil {
		return err
	}
	return c.sink.CommitChunk(1, prefix1)
}

func (c *Chunker) cutAvailableChunks() error {
	for c.buf.Len() >= c.nominalChunkSize {
		data := copyNext(&c.buf, c.nominalChunkSize)
		if err := c.sink.CommitChunk(c.nextIndex, data); err != nil {
			return err
		}
		c.nextIndex++
	}
	return nil
}

// Result carries the outcome of Finalise that the Engine needs to complete
// the DataMap: the residual bytes (if any) and the nominal chunk size that
// was ultimately chosen (0 if the whole stream became residual content).
type Result struct {
	Residual         []byte
	NominalChunkSize int
}

// Finalise drains any remaining buffered bytes, deciding small-file mode if
// large mode was never entered, and commits the final chunk or residual
// content. It must be called exactly once.
func (c *Chunker) Finalise() (Result, error) {
	if c.mode == modeLarge {
		return c.finaliseLarge()
	}
	return c.finaliseUndecided()
}

func (c *Chunker) finaliseLarge() (Result, error) {
	leftover := c.buf.Bytes()
	switch {
	case len(leftover) == 0:
		return Result{NominalChunkSize: c.nominalChunkSize}, nil
	case len(leftover) < c.cfg.MinChunkSize:
		residual := append([]byte(nil), leftover...)
		return Result{Residual: residual, NominalChunkSize: c.nominalChunkSize}, nil
	default:
		data := append([]byte(nil), leftover...)
		if err := c.sink.CommitChunk(c.nextIndex, data); err != nil {
			return Result{}, err
		}
		return Result{NominalChunkSize: c.nominalChunkSize}, nil
	}
}

func (c *Chunker) finaliseUndecided() (Result, error) {
	n := c.total
	if n < int64(3*c.cfg.MinChunkSize) {
		residual := append([]byte(nil), c.buf.Bytes()...)
		return Result{Residual: residual}, nil
	}

	// ceil(n/3): using floor here could make the last chunk's pre_size
	// exceed the nominal size by up to 2 bytes, violating the data map's
	// last-chunk invariant, so the boundary rounds up instead.
	nominal := int((n + 2) / 3)
	c.nominalChunkSize = nominal

	prefix0 := copyNext(&c.buf, nominal)
	prefix1 := copyNext(&c.buf, nominal)
	last := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()

	if err := c.sink.CommitChunk(0, prefix0); err != nil {
		return Result{}, err
	}
	if err := c.sink.CommitChunk(1, prefix1); err != nil {
		return Result{}, err
	}
	if err := c.sink.CommitChunk(2, last); err != nil {
		return Result{}, err
	}
	return Result{NominalChunkSize: nominal}, nil
}

// copyNext returns a fresh copy of the next n bytes of buf, advancing it.
// bytes.Buffer may reuse its backing array across writes, so callers that
// retain returned slices must not alias into the buffer directly.
func copyNext(buf *bytes.Buffer, n int) []byte {
	src := buf.Next(n)
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
