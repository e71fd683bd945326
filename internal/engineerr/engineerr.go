// Package engineerr defines the typed error taxonomy surfaced by the
// sequencer, chunker, and engine packages. Every operation either succeeds
// wholly or fails with exactly one of these sentinels, wrapped with
// context via %w rather than inventing ad-hoc string errors.
package engineerr

import (
	"errors"
	"fmt"
)

// InputError sentinels.
var (
	ErrOffsetOverflow     = errors.New("engineerr: offset overflow")
	ErrOutOfRange         = errors.New("engineerr: read range out of bounds")
	ErrAlreadyFinalised   = errors.New("engineerr: engine already finalised")
	ErrRewriteNotSupported = errors.New("engineerr: rewrite of committed data is not supported")
)

// StorageError sentinels.
var (
	ErrChunkMissing      = errors.New("engineerr: chunk missing from store")
	ErrStorePutFailed    = errors.New("engineerr: chunk store put failed")
	ErrStoreDeleteFailed = errors.New("engineerr: chunk store delete failed")
)

// IntegrityError sentinels.
var (
	ErrPostHashMismatch = errors.New("engineerr: post-hash mismatch")
	ErrPreHashMismatch  = errors.New("engineerr: pre-hash mismatch")
)

// InternalError sentinels.
var (
	ErrCryptoFailure = errors.New("engineerr: cryptographic primitive failure")
)

// ErrNotSealed is the engine state-machine guard (Open -> Writing ->
// Finalising -> Sealed) for Read, which requires Sealed; a Write after
// Finalise fails with ErrAlreadyFinalised instead.
var (
	ErrNotSealed = errors.New("engineerr: data map is not sealed; call Finalise first")
)

// PartialDeleteError reports that DeleteAll could not delete every chunk.
// FailedKeys holds the hex-encoded post_hash of each chunk that errored for
// a reason other than already being absent (absence on delete is treated as
// success, matching the idempotent-delete property).
type PartialDeleteError struct {
	FailedKeys []string
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("engineerr: delete_all left %d chunk(s) undeleted", len(e.FailedKeys))
}
