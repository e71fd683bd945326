// Package datamap defines the DataMap manifest value type: the only
// artefact required to reconstruct plaintext from a ChunkStore. It is a
// plain value type plus a lossless JSON codec, the externally-chosen
// serialisation format called out as out-of-scope-but-required by the core.
package datamap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
)

// VersionTag identifies the self-encryption scheme a DataMap was produced
// with. Bumped only if the wire-compatibility contract in keyderiver changes.
const VersionTag = "selfencrypt-go/1"

// ChunkDescriptor describes one chunk in stream order.
type ChunkDescriptor struct {
	PreHash  []byte // SHA-512 of the plaintext chunk, hashengine.Size bytes.
	PreSize  int64  // plaintext length in bytes
	PostHash []byte // SHA-512 of the encrypted chunk; the store key.
	PostSize int64  // encrypted length in bytes
}

// DataMap is the manifest: an ordered chunk sequence plus any residual
// trailing bytes too small to form a chunk.
type DataMap struct {
	Chunks          []ChunkDescriptor
	ResidualContent []byte
	TotalSize       int64
	VersionTag      string
	// FileHash is a stream-level SHA-512 over the entire plaintext,
	// recommended for wire compatibility with the legacy scheme (spec §6).
	FileHash []byte
}

// PreHashes returns the pre-hash of every chunk, in order, as the flat
// [][]byte keyderiver.Derive expects.
func (d *DataMap) PreHashes() [][]byte {
	out := make([][]byte, len(d.Chunks))
	for i := range d.Chunks {
		out[i] = d.Chunks[i].PreHash
	}
	return out
}

// Validate checks the invariants that must hold after Finalise (spec §3):
//  1. chunks.len()==0, or chunks.len()>=3.
//  2. all but the last chunk share the same pre_size; the last is in [1, nominal].
//  3. total_size == sum(pre_size) + len(residual_content).
//  4. every descriptor's hash fields are the right width.
func (d *DataMap) Validate() error {
	n := len(d.Chunks)
	if n != 0 && n < 3 {
		return fmt.Errorf("datamap: invariant violated: %d chunks (must be 0 or >= 3)", n)
	}

	var sum int64
	var nominal int64 = -1
	for i, c := range d.Chunks {
		if len(c.PreHash) != hashengine.Size {
			return fmt.Errorf("datamap: chunk %d: pre_hash is %d bytes, want %d", i, len(c.PreHash), hashengine.Size)
		}
		if len(c.PostHash) != hashengine.Size {
			return fmt.Errorf("datamap: chunk %d: post_hash is %d bytes, want %d", i, len(c.PostHash), hashengine.Size)
		}
		if i < n-1 {
			if nominal == -1 {
				nominal = c.PreSize
			} else if c.PreSize != nominal {
				return fmt.Errorf("datamap: chunk %d: pre_size %d does not match nominal size %d", i, c.PreSize, nominal)
			}
		} else if n > 0 {
			if c.PreSize < 1 || (nominal != -1 && c.PreSize > nominal) {
				return fmt.Errorf("datamap: last chunk pre_size %d out of range [1, %d]", c.PreSize, nominal)
			}
		}
		sum += c.PreSize
	}
	sum += int64(len(d.ResidualContent))
	if sum != d.TotalSize {
		return fmt.Errorf("datamap: total_size %d does not match computed %d", d.TotalSize, sum)
	}
	return nil
}

// wireDataMap is the JSON-serialisable shape; byte slices are base64 encoded
// under the hood by encoding/json for []byte fields automatically, but we
// spell it out explicitly to keep the wire format stable and documented.
type wireChunkDescriptor struct {
	PreHash  string `json:"pre_hash"`
	PreSize  int64  `json:"pre_size"`
	PostHash string `json:"post_hash"`
	PostSize int64  `json:"post_size"`
}

type wireDataMap struct {
	Chunks          []wireChunkDescriptor `json:"chunks"`
	ResidualContent string                `json:"residual_content"`
	TotalSize       int64                 `json:"total_size"`
	VersionTag      string                `json:"version_tag"`
	FileHash        string                `json:"file_hash,omitempty"`
}

// MarshalJSON renders the DataMap into the wire format recommended by spec
// §6: file_hash, per-chunk pre_hash/post_hash/pre_size/post_size,
// residual_content, total_size, version_tag.
func (d *DataMap) MarshalJSON() ([]byte, error) {
	w := wireDataMap{
		Chunks:          make([]wireChunkDescriptor, len(d.Chunks)),
		ResidualContent: base64.StdEncoding.EncodeToString(d.ResidualContent),
		TotalSize:       d.TotalSize,
		VersionTag:      d.VersionTag,
		FileHash:        base64.StdEncoding.EncodeToString(d.FileHash),
	}
	for i, c := range d.Chunks {
		w.Chunks[i] = wireChunkDescriptor{
			PreHash:  base64.StdEncoding.EncodeToString(c.PreHash),
			PreSize:  c.PreSize,
			PostHash: base64.StdEncoding.EncodeToString(c.PostHash),
			PostSize: c.PostSize,
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reverses MarshalJSON, losslessly.
func (d *DataMap) UnmarshalJSON(data []byte) error {
	var w wireDataMap
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("datamap: unmarshal: %w", err)
	}

	residual, err := base64.StdEncoding.DecodeString(w.ResidualContent)
	if err != nil {
		return fmt.Errorf("datamap: residual_content: %w", err)
	}
	fileHash, err := base64.StdEncoding.DecodeString(w.FileHash)
	if err != nil {
		return fmt.Errorf("datamap: file_hash: %w", err)
	}

	chunks := make([]ChunkDescriptor, len(w.Chunks))
	for i, c := range w.Chunks {
		preHash, err := base64.StdEncoding.DecodeString(c.PreHash)
		if err != nil {
			return fmt.Errorf("datamap: chunk %d pre_hash: %w", i, err)
		}
		postHash, err := base64.StdEncoding.DecodeString(c.PostHash)
		if err != nil {
			return fmt.Errorf("datamap: chunk %d post_hash: %w", i, err)
		}
		chunks[i] = ChunkDescriptor{
			PreHash:  preHash,
			PreSize:  c.PreSize,
			PostHash: postHash,
			PostSize: c.PostSize,
		}
	}

	d.Chunks = chunks
	d.ResidualContent = residual
	d.TotalSize = w.TotalSize
	d.VersionTag = w.VersionTag
	d.FileHash = fileHash
	return nil
}
