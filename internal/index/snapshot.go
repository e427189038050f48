package index

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const snapshotVersion = 1

type snapshotEnvelope struct {
	Version   int             `json:"version"`
	Dimension int             `json:"dimension"`
	Entries   []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Ordinal    int    `json:"ordinal"`
	Tokens     int    `json:"tokens"`
	Vector     string `json:"vector"` // base64 little-endian float32
}

// Snapshot serializes the full index state. restore(snapshot()) is a no-op
// on index state.
func (ix *Index) Snapshot() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	env := snapshotEnvelope{
		Version:   snapshotVersion,
		Dimension: ix.dim,
		Entries:   make([]snapshotEntry, len(ix.entries)),
	}
	for i, e := range ix.entries {
		env.Entries[i] = snapshotEntry{
			ChunkID:    e.id,
			DocumentID: e.meta.DocumentID,
			Text:       e.meta.Text,
			Ordinal:    e.meta.Ordinal,
			Tokens:     e.meta.Tokens,
			Vector:     base64.StdEncoding.EncodeToString(vectorToBytes(e.vec)),
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Restore replaces the index state with the snapshot atomically: the data is
// decoded into a fresh structure and swapped in only on full success, so a
// failed restore leaves the current state untouched.
func (ix *Index) Restore(data []byte) error {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if env.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d: %w", env.Version, domain.ErrValidation)
	}

	entries := make([]entry, len(env.Entries))
	pos := make(map[string]int, len(env.Entries))
	for i, se := range env.Entries {
		raw, err := base64.StdEncoding.DecodeString(se.Vector)
		if err != nil {
			return fmt.Errorf("decode vector for %s: %w", se.ChunkID, err)
		}
		vec, err := bytesToVector(raw)
		if err != nil {
			return fmt.Errorf("parse vector for %s: %w", se.ChunkID, err)
		}
		if len(vec) != env.Dimension {
			return fmt.Errorf("entry %s has %d dimensions, snapshot declares %d: %w",
				se.ChunkID, len(vec), env.Dimension, domain.ErrDimensionMismatch)
		}
		entries[i] = entry{
			id:  se.ChunkID,
			vec: vec,
			meta: Meta{
				DocumentID: se.DocumentID,
				Text:       se.Text,
				Ordinal:    se.Ordinal,
				Tokens:     se.Tokens,
			},
		}
		pos[se.ChunkID] = i
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = env.Dimension
	ix.entries = entries
	ix.pos = pos
	return nil
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
