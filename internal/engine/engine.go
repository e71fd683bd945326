// Package engine orchestrates the Sequencer, Chunker, KeyDeriver, the
// cryptographic pipeline, and a ChunkStore to implement convergent
// self-encryption end to end (spec §4.I). It is the one component that
// touches every other package in this module.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/maidsafe-archive/selfencrypt-go/internal/audit"
	"github.com/maidsafe-archive/selfencrypt-go/internal/bufferpool"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunker"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/cipherengine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/datamap"
	"github.com/maidsafe-archive/selfencrypt-go/internal/engineerr"
	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/keyderiver"
	"github.com/maidsafe-archive/selfencrypt-go/internal/metrics"
	"github.com/maidsafe-archive/selfencrypt-go/internal/sequencer"
	"github.com/maidsafe-archive/selfencrypt-go/internal/tracing"
	"github.com/maidsafe-archive/selfencrypt-go/internal/xorpad"
)

// Config controls chunk sizing, worker parallelism, and read-side
// verification, matching the enumerated settings in spec §6.
type Config struct {
	Chunker                   chunker.Config
	WorkerCount               int
	VerifyPlaintextHashOnRead bool
	StoreBackendName          string // label only, e.g. "memory"/"s3"/"redis"

	// Metrics is optional; when nil, Engine records nothing.
	Metrics *metrics.Metrics

	// Tracer is optional; when nil, per-chunk spans are not opened.
	Tracer trace.Tracer

	// Audit is optional; when nil, Engine emits no audit trail.
	Audit audit.Logger
}

// DefaultConfig returns sane production defaults.
func DefaultConfig() Config {
	return Config{
		Chunker:                   chunker.DefaultConfig(),
		WorkerCount:               runtime.NumCPU(),
		VerifyPlaintextHashOnRead: true,
	}
}

type lifecycle int

const (
	stateOpen lifecycle = iota
	stateWriting
	stateFinalising
	stateSealed
)

// Engine is the single-owner orchestrator for one file's worth of
// self-encryption state. It is not safe for concurrent use by multiple
// goroutines calling Write/Finalise/Read/Reset simultaneously; internally
// it parallelises per-chunk encrypt/decrypt work across a bounded worker
// pool.
type Engine struct {
	cfg    Config
	store  chunkstore.Store
	logger *logrus.Entry

	mu    sync.Mutex
	state lifecycle

	seq *sequencer.Sequencer
	chk *chunker.Chunker

	preHashes   [][]byte
	rawPrefix   [2][]byte
	descriptors []datamap.ChunkDescriptor
	fileHasher  *hashengine.StreamHasher

	// pool recycles buffers of exactly the configured nominal chunk size
	// used to stage the XOR-obfuscation stage's output; chunks of any other
	// size (a large file's final chunk, every chunk of a small file) fall
	// back to a direct allocation.
	pool *bufferpool.Pool

	sem sync.WaitGroup
	gate chan struct{}

	errOnce  sync.Once
	firstErr error

	dataMap *datamap.DataMap
}

// New creates an Engine in the Open state, ready to accept Write calls.
func New(store chunkstore.Store, cfg Config, logger *logrus.Entry) *Engine {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = runtime.NumCPU()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		cfg:        cfg,
		store:      store,
		logger:     logger,
		fileHasher: hashengine.NewStreamHasher(),
		gate:       make(chan struct{}, cfg.WorkerCount),
		pool:       bufferpool.New(cfg.Chunker.NominalChunkSize),
	}
	e.resetLocked()
	return e
}

// Open creates an Engine already sealed around a previously finalised
// DataMap, ready for Read/DeleteAll calls against store. The DataMap is the
// only state a caller needs to persist across process restarts to
// reconstruct a file later, matching spec §6's data-map-as-capability
// model.
func Open(store chunkstore.Store, cfg Config, logger *logrus.Entry, dm *datamap.DataMap) (*Engine, error) {
	if err := dm.Validate(); err != nil {
		return nil, fmt.Errorf("engine: open: invalid data map: %w", err)
	}
	e := New(store, cfg, logger)
	e.mu.Lock()
	e.dataMap = dm
	e.state = stateSealed
	e.mu.Unlock()
	return e, nil
}

// Deliver implements sequencer.Downstream. file_hash is computed from
// committed chunk and residual bytes instead (see CommitChunk, Finalise), so
// that a pre-commit rewrite applied after delivery never leaves it stale.
func (e *Engine) Deliver(b []byte) error {
	return e.chk.Deliver(b)
}

// Write implements spec §4.I's write contract. A write at or beyond the
// Sequencer's cursor follows the normal in-order/buffered-reassembly path.
// A write behind the cursor is only supported when every byte it touches
// still sits in the Chunker's uncommitted tail (spec §4.F's pre-commit
// rewrite exception); anything else, including a write that reaches into an
// already-committed chunk, fails with ErrRewriteNotSupported.
func (e *Engine) Write(data []byte, offset int64) error {
	start := time.Now()
	e.mu.Lock()
	if e.state == stateFinalising || e.state == stateSealed {
		e.mu.Unlock()
		return engineerr.ErrAlreadyFinalised
	}
	e.state = stateWriting
	e.mu.Unlock()

	var err error
	if offset < e.seq.Cursor() {
		err = e.seq.RewriteBehindCursor(offset, data, func() error {
			return e.patchPrecommit(offset, data)
		})
	} else {
		err = e.seq.Write(offset, data)
	}
	if err != nil {
		e.recordEngineError("write", err)
		return err
	}
	if err := e.pendingError(); err != nil {
		e.recordEngineError("write", err)
		return err
	}
	e.recordEngineOp("write", start, int64(len(data)))
	return nil
}

// patchPrecommit applies a rewrite at offset directly to the Chunker's
// still-buffered tail. It is only ever invoked from within
// Sequencer.RewriteBehindCursor, which has already confirmed the range does
// not reach bytes the Sequencer has not yet delivered downstream; the
// remaining check here is whether the Chunker has in turn already cut those
// delivered bytes into a committed chunk.
func (e *Engine) patchPrecommit(offset int64, data []byte) error {
	localOffset := offset - e.chk.CommittedBytes()
	if localOffset < 0 {
		return engineerr.ErrRewriteNotSupported
	}
	if err := e.chk.PatchBuffered(localOffset, data); err != nil {
		return engineerr.ErrRewriteNotSupported
	}
	return nil
}

// recordEngineOp reports a successful Write/Finalise/Read/DeleteAll call.
func (e *Engine) recordEngineOp(operation string, start time.Time, bytes int64) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.RecordEngineOperation(context.Background(), operation, time.Since(start), bytes)
}

// recordEngineError reports a failed Write/Finalise/Read/DeleteAll call.
func (e *Engine) recordEngineError(operation string, err error) {
	if e.cfg.Metrics == nil {
		return
	}
	e.cfg.Metrics.RecordEngineError(operation, errorKind(err))
}

// errorKind classifies err against the engineerr sentinel taxonomy for use
// as a low-cardinality Prometheus label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, engineerr.ErrChunkMissing):
		return "chunk_missing"
	case errors.Is(err, engineerr.ErrStorePutFailed):
		return "store_put_failed"
	case errors.Is(err, engineerr.ErrStoreDeleteFailed):
		return "store_delete_failed"
	case errors.Is(err, engineerr.ErrPostHashMismatch):
		return "post_hash_mismatch"
	case errors.Is(err, engineerr.ErrPreHashMismatch):
		return "pre_hash_mismatch"
	case errors.Is(err, engineerr.ErrCryptoFailure):
		return "crypto_failure"
	case errors.Is(err, engineerr.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, engineerr.ErrNotSealed):
		return "not_sealed"
	case errors.Is(err, engineerr.ErrAlreadyFinalised):
		return "already_finalised"
	default:
		var partial *engineerr.PartialDeleteError
		if errors.As(err, &partial) {
			return "partial_delete"
		}
		return "other"
	}
}

// CommitChunk implements chunker.Sink. It is called synchronously, in
// strictly increasing index order, from within Write (via the Sequencer and
// Chunker) or Finalise (via Chunker.Finalise), with each chunk's final
// byte-for-byte content: by the
// time a chunk reaches here, no further pre-commit rewrite can touch it, so
// this is where its bytes are folded into file_hash. Indices 0 and 1 are
// retained raw until Finalise resolves the wrap-around neighbours they
// need; indices >= 2 already have every pre-hash their key material depends
// on, so they are dispatched to the worker pool immediately.
func (e *Engine) CommitChunk(index int, data []byte) error {
	e.mu.Lock()
	_, _ = e.fileHasher.Write(data)
	preHash := hashengine.SumBytes(data)
	e.preHashes = append(e.preHashes, preHash)
	e.descriptors = append(e.descriptors, datamap.ChunkDescriptor{
		PreHash: preHash,
		PreSize: int64(len(data)),
	})
	if index < 2 {
		e.rawPrefix[index] = data
		e.mu.Unlock()
		return nil
	}
	snapshot := append([][]byte(nil), e.preHashes...)
	e.mu.Unlock()

	e.dispatchEncrypt(index, data, snapshot)
	return nil
}

// dispatchEncrypt runs the encrypt-a-chunk pipeline for chunk index on a
// pooled worker, bounded by cfg.WorkerCount concurrent chunks in flight via
// a buffered-channel semaphore.
func (e *Engine) dispatchEncrypt(index int, data []byte, preHashes [][]byte) {
	e.sem.Add(1)
	e.gate <- struct{}{}
	go func() {
		defer e.sem.Done()
		defer func() { <-e.gate }()

		ctx := context.Background()
		if e.cfg.Tracer != nil {
			var span trace.Span
			ctx, span = tracing.StartChunkSpan(ctx, e.cfg.Tracer, "encrypt", index)
			defer span.End()
		}

		start := time.Now()
		desc, err := encryptChunk(ctx, preHashes, index, data, e.store, e.pool, e.cfg.Metrics, e.cfg.StoreBackendName)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.RecordChunkOperation(ctx, "encrypt", time.Since(start))
		}
		if err != nil {
			e.recordErr(fmt.Errorf("engine: encrypt chunk %d: %w", index, err))
			return
		}
		e.mu.Lock()
		e.descriptors[index].PostHash = desc.PostHash
		e.descriptors[index].PostSize = desc.PostSize
		e.mu.Unlock()
	}()
}

// encryptChunk implements the six-step pipeline from spec §4.I for a single
// chunk given every pre-hash its key material depends on. When plaintext is
// exactly the pool's nominal size (the common case for every chunk but the
// last), the XOR-obfuscation output is staged in a pooled buffer instead of
// a fresh allocation.
func encryptChunk(ctx context.Context, preHashes [][]byte, index int, plaintext []byte, store chunkstore.Store, pool *bufferpool.Pool, m *metrics.Metrics, backend string) (datamap.ChunkDescriptor, error) {
	material, err := keyderiver.Derive(preHashes, index)
	if err != nil {
		return datamap.ChunkDescriptor{}, err
	}
	ciphertext, err := cipherengine.Encrypt(material.Key[:], material.IV[:], plaintext)
	if err != nil {
		return datamap.ChunkDescriptor{}, fmt.Errorf("%w: %v", engineerr.ErrCryptoFailure, err)
	}

	var obfuscated []byte
	pooled := pool != nil && len(ciphertext) == pool.Size()
	if pooled {
		obfuscated = pool.Get()
		if err := xorpad.ApplyInPlace(material.Pad, obfuscated, ciphertext); err != nil {
			return datamap.ChunkDescriptor{}, err
		}
	} else {
		obfuscated = xorpad.Apply(material.Pad, ciphertext)
	}
	postHash := hashengine.Sum(obfuscated)

	var key [chunkstore.KeySize]byte
	copy(key[:], postHash[:])
	putStart := time.Now()
	putErr := store.Put(ctx, key, obfuscated)
	if m != nil {
		if putErr != nil {
			m.RecordStoreError(ctx, "put", backend, "store_put_failed")
		} else {
			m.RecordStoreOperation(ctx, "put", backend, time.Since(putStart))
		}
	}
	postSize := int64(len(obfuscated))
	if pooled {
		pool.Put(obfuscated)
	}
	if putErr != nil {
		return datamap.ChunkDescriptor{}, fmt.Errorf("%w: %v", engineerr.ErrStorePutFailed, putErr)
	}

	preHash := hashengine.Sum(plaintext)
	return datamap.ChunkDescriptor{
		PreHash:  preHash[:],
		PreSize:  int64(len(plaintext)),
		PostHash: postHash[:],
		PostSize: postSize,
	}, nil
}

func (e *Engine) recordErr(err error) {
	e.errOnce.Do(func() {
		e.firstErr = err
		e.logger.WithError(err).Error("self-encryption chunk pipeline failure")
	})
}

func (e *Engine) pendingError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstErr
}

// Finalise drains the Sequencer, closes the last chunk(s) or residual
// content, resolves chunks 0 and 1 (whose key material wraps around to the
// last two chunks), and seals the DataMap. It is idempotent.
func (e *Engine) Finalise() (*datamap.DataMap, error) {
	start := time.Now()
	e.mu.Lock()
	if e.state == stateSealed {
		dm := e.dataMap
		e.mu.Unlock()
		return dm, nil
	}
	e.state = stateFinalising
	e.mu.Unlock()

	result, err := e.chk.Finalise()
	if err != nil {
		e.recordEngineError("finalise", err)
		return nil, err
	}

	e.sem.Wait()
	if err := e.pendingError(); err != nil {
		e.recordEngineError("finalise", err)
		return nil, err
	}

	if len(result.Residual) > 0 {
		_, _ = e.fileHasher.Write(result.Residual)
	}

	if len(e.descriptors) > 0 {
		if err := e.resolveWrapAroundChunks(); err != nil {
			e.recordEngineError("finalise", err)
			return nil, err
		}
	}

	dm := &datamap.DataMap{
		Chunks:          e.descriptors,
		ResidualContent: result.Residual,
		TotalSize:       e.chk.TotalBytes(),
		VersionTag:      datamap.VersionTag,
		FileHash:        e.fileHasher.Sum(),
	}
	if err := dm.Validate(); err != nil {
		err = fmt.Errorf("engine: sealed data map failed validation: %w", err)
		e.recordEngineError("finalise", err)
		return nil, err
	}

	e.mu.Lock()
	e.dataMap = dm
	e.state = stateSealed
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"chunks":     len(dm.Chunks),
		"total_size": dm.TotalSize,
	}).Info("self-encryption finalised")

	if e.cfg.Metrics != nil && e.pool != nil {
		hits, misses := e.pool.Stats()
		sizeClass := fmt.Sprintf("%d", e.pool.Size())
		e.cfg.Metrics.SetBufferPoolStats(sizeClass, hits, misses)
	}
	e.recordEngineOp("finalise", start, dm.TotalSize)
	if e.cfg.Audit != nil {
		e.cfg.Audit.LogEncrypt(e.cfg.StoreBackendName, hex.EncodeToString(dm.FileHash), "AES-256-CFB", true, nil, time.Since(start), map[string]interface{}{"chunks": len(dm.Chunks)})
	}

	return dm, nil
}

// resolveWrapAroundChunks encrypts and commits chunks 0 and 1 now that n is
// known and every pre-hash, including the wrap-around neighbours at n-1 and
// n-2, is available.
func (e *Engine) resolveWrapAroundChunks() error {
	preHashes := e.preHashes
	base := context.Background()
	for _, idx := range [2]int{0, 1} {
		ctx := base
		if e.cfg.Tracer != nil {
			var span trace.Span
			ctx, span = tracing.StartChunkSpan(base, e.cfg.Tracer, "encrypt", idx)
			defer span.End()
		}
		start := time.Now()
		desc, err := encryptChunk(ctx, preHashes, idx, e.rawPrefix[idx], e.store, e.pool, e.cfg.Metrics, e.cfg.StoreBackendName)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.RecordChunkOperation(ctx, "encrypt", time.Since(start))
		}
		if err != nil {
			return fmt.Errorf("engine: encrypt chunk %d: %w", idx, err)
		}
		e.descriptors[idx].PostHash = desc.PostHash
		e.descriptors[idx].PostSize = desc.PostSize
	}
	return nil
}

// decryptJob describes the sub-range of one chunk that must be decrypted
// and copied into a caller's read buffer.
type decryptJob struct {
	chunkIdx         int
	bufStart, bufEnd int64
	srcStart, srcEnd int64
}

// Read reconstructs bytes [offset, offset+len(buf)) into buf from a sealed
// DataMap, per spec §4.I. It walks the chunk descriptors once (O(n)) to
// locate the affected chunks, fixing the source's quadratic/inconsistent
// prefix-sum arithmetic called out in the Design Notes.
func (e *Engine) Read(buf []byte, offset int64) (int, error) {
	start := time.Now()
	e.mu.Lock()
	if e.state != stateSealed {
		e.mu.Unlock()
		e.recordEngineError("read", engineerr.ErrNotSealed)
		return 0, engineerr.ErrNotSealed
	}
	dm := e.dataMap
	e.mu.Unlock()

	length := int64(len(buf))
	if length == 0 {
		return 0, nil
	}
	if offset < 0 || offset+length > dm.TotalSize {
		e.recordEngineError("read", engineerr.ErrOutOfRange)
		return 0, engineerr.ErrOutOfRange
	}
	reqEnd := offset + length
	chunkRegionSize := dm.TotalSize - int64(len(dm.ResidualContent))

	var jobs []decryptJob
	var pos int64
	for i, c := range dm.Chunks {
		chunkStart := pos
		chunkEnd := pos + c.PreSize
		pos = chunkEnd

		absStart := maxInt64(chunkStart, offset)
		absEnd := minInt64(chunkEnd, reqEnd)
		if absEnd <= absStart {
			continue
		}
		jobs = append(jobs, decryptJob{
			chunkIdx: i,
			bufStart: absStart - offset,
			bufEnd:   absEnd - offset,
			srcStart: absStart - chunkStart,
			srcEnd:   absEnd - chunkStart,
		})
	}

	if err := e.decryptJobsParallel(dm, buf, jobs); err != nil {
		e.recordEngineError("read", err)
		return 0, err
	}

	if reqEnd > chunkRegionSize {
		absStart := maxInt64(chunkRegionSize, offset)
		copy(buf[absStart-offset:reqEnd-offset], dm.ResidualContent[absStart-chunkRegionSize:reqEnd-chunkRegionSize])
	}

	e.recordEngineOp("read", start, length)
	if e.cfg.Audit != nil {
		e.cfg.Audit.LogDecrypt(e.cfg.StoreBackendName, hex.EncodeToString(dm.FileHash), "AES-256-CFB", true, nil, time.Since(start), map[string]interface{}{"offset": offset, "length": length})
	}
	return int(length), nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (e *Engine) decryptJobsParallel(dm *datamap.DataMap, buf []byte, jobs []decryptJob) error {
	if len(jobs) == 0 {
		return nil
	}
	preHashes := make([][]byte, len(dm.Chunks))
	for i, c := range dm.Chunks {
		preHashes[i] = c.PreHash
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(jobs))
	gate := make(chan struct{}, e.cfg.WorkerCount)

	for _, j := range jobs {
		j := j
		wg.Add(1)
		gate <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-gate }()

			ctx := context.Background()
			if e.cfg.Tracer != nil {
				var span trace.Span
				ctx, span = tracing.StartChunkSpan(ctx, e.cfg.Tracer, "decrypt", j.chunkIdx)
				defer span.End()
			}

			start := time.Now()
			plaintext, err := decryptChunk(ctx, preHashes, dm.Chunks[j.chunkIdx], j.chunkIdx, e.store, e.pool, e.cfg.VerifyPlaintextHashOnRead, e.cfg.Metrics, e.cfg.StoreBackendName)
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.RecordChunkOperation(ctx, "decrypt", time.Since(start))
			}
			if err != nil {
				errs <- err
				return
			}
			copy(buf[j.bufStart:j.bufEnd], plaintext[j.srcStart:j.srcEnd])
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// decryptChunk implements spec §4.I's decrypt-a-chunk pipeline. When blob is
// exactly the pool's nominal size, the de-obfuscation stage stages its
// output in a pooled buffer instead of a fresh allocation.
func decryptChunk(ctx context.Context, preHashes [][]byte, desc datamap.ChunkDescriptor, index int, store chunkstore.Store, pool *bufferpool.Pool, verifyPlaintext bool, m *metrics.Metrics, backend string) ([]byte, error) {
	var key [chunkstore.KeySize]byte
	copy(key[:], desc.PostHash)

	getStart := time.Now()
	blob, err := store.Get(ctx, key)
	if m != nil {
		if err != nil {
			errType := "store_get_failed"
			if err == chunkstore.ErrNotFound {
				errType = "chunk_missing"
			}
			m.RecordStoreError(ctx, "get", backend, errType)
		} else {
			m.RecordStoreOperation(ctx, "get", backend, time.Since(getStart))
		}
	}
	if err != nil {
		if err == chunkstore.ErrNotFound {
			return nil, engineerr.ErrChunkMissing
		}
		return nil, fmt.Errorf("engine: fetch chunk %d: %w", index, err)
	}

	gotPostHash := hashengine.Sum(blob)
	if hex.EncodeToString(gotPostHash[:]) != hex.EncodeToString(desc.PostHash) {
		return nil, engineerr.ErrPostHashMismatch
	}

	material, err := keyderiver.Derive(preHashes, index)
	if err != nil {
		return nil, err
	}

	var unXored []byte
	pooled := pool != nil && len(blob) == pool.Size()
	if pooled {
		unXored = pool.Get()
		if err := xorpad.ApplyInPlace(material.Pad, unXored, blob); err != nil {
			return nil, err
		}
	} else {
		unXored = xorpad.Apply(material.Pad, blob)
	}
	plaintext, err := cipherengine.Decrypt(material.Key[:], material.IV[:], unXored)
	if pooled {
		pool.Put(unXored)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engineerr.ErrCryptoFailure, err)
	}

	if verifyPlaintext {
		gotPreHash := hashengine.Sum(plaintext)
		if hex.EncodeToString(gotPreHash[:]) != hex.EncodeToString(desc.PreHash) {
			return nil, engineerr.ErrPreHashMismatch
		}
	}
	return plaintext, nil
}

// DeleteAll deletes every chunk named in the sealed DataMap. Absence
// (already deleted) is treated as success; any other failure is collected
// and returned as a *engineerr.PartialDeleteError.
func (e *Engine) DeleteAll(ctx context.Context) error {
	start := time.Now()
	e.mu.Lock()
	if e.state != stateSealed {
		e.mu.Unlock()
		e.recordEngineError("delete_all", engineerr.ErrNotSealed)
		return engineerr.ErrNotSealed
	}
	dm := e.dataMap
	e.mu.Unlock()

	var failed []string
	for _, c := range dm.Chunks {
		var key [chunkstore.KeySize]byte
		copy(key[:], c.PostHash)
		delStart := time.Now()
		err := e.store.Delete(ctx, key)
		if e.cfg.Metrics != nil {
			if err != nil && err != chunkstore.ErrNotFound {
				e.cfg.Metrics.RecordStoreError(ctx, "delete", e.cfg.StoreBackendName, "store_delete_failed")
			} else {
				e.cfg.Metrics.RecordStoreOperation(ctx, "delete", e.cfg.StoreBackendName, time.Since(delStart))
			}
		}
		if err != nil {
			if err == chunkstore.ErrNotFound {
				continue
			}
			failed = append(failed, hex.EncodeToString(c.PostHash))
		}
	}
	if len(failed) > 0 {
		err := &engineerr.PartialDeleteError{FailedKeys: failed}
		e.recordEngineError("delete_all", err)
		if e.cfg.Audit != nil {
			e.cfg.Audit.LogDeleteAll(e.cfg.StoreBackendName, len(dm.Chunks), false, err, time.Since(start))
		}
		return err
	}
	e.recordEngineOp("delete_all", start, dm.TotalSize)
	if e.cfg.Audit != nil {
		e.cfg.Audit.LogDeleteAll(e.cfg.StoreBackendName, len(dm.Chunks), true, nil, time.Since(start))
	}
	return nil
}

// Reset discards all in-progress write state and returns the Engine to the
// Open state with a fresh DataMap.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sem.Wait()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.state = stateOpen
	e.preHashes = nil
	e.rawPrefix = [2][]byte{}
	e.descriptors = nil
	e.firstErr = nil
	e.errOnce = sync.Once{}
	e.dataMap = nil
	e.fileHasher = hashengine.NewStreamHasher()
	e.chk = chunker.New(e.cfg.Chunker, e)
	e.seq = sequencer.New(e)
}

// DataMap returns the sealed data map, or nil if the engine is not sealed.
func (e *Engine) DataMap() *datamap.DataMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dataMap
}
