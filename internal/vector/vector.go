// Package vector is the embedding index: persisted vectors with
// nearest-neighbor queries by cosine similarity. Results are deterministic
// for identical inputs and store state.
package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
)

// Payload is the metadata stored beside a vector, enough to render a search
// hit without a graph lookup.
type Payload struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Preview string `json:"preview"`
}

// Result is one ranked query hit.
type Result struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter restricts a query to matching entries. A nil filter matches all.
type Filter func(Payload) bool

// Store persists embeddings in the shared database.
type Store struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewStore creates a vector store on top of an open database.
func NewStore(db *storage.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Upsert stores a vector for a symbol or file aggregate. The first upsert
// fixes the store's dimension; later vectors must match it.
func (s *Store) Upsert(id string, fileID int64, vec []float32, payload Payload) error {
	if len(vec) == 0 {
		return mioerr.Upstream("vector", "empty embedding vector", nil)
	}
	if err := s.checkDimension(len(vec)); err != nil {
		return err
	}
	payloadJSON, err := encodePayload(payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO embeddings (id, file_id, vector, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET file_id = excluded.file_id,
		     vector = excluded.vector, payload = excluded.payload`,
		id, fileID, encodeVector(vec), payloadJSON)
	if err != nil {
		return fmt.Errorf("upsert embedding %s: %w", id, err)
	}
	return nil
}

// Query returns the top k entries ranked by cosine similarity, ties broken
// by ascending id so identical store states rank identically.
func (s *Store) Query(vec []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT id, vector, payload FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var id string
		var blob []byte
		var payloadJSON string
		if err := rows.Scan(&id, &blob, &payloadJSON); err != nil {
			return nil, err
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", id, err)
		}
		if len(stored) != len(vec) {
			continue // dimension drift from an older provider; skip
		}
		payload, err := decodePayload(payloadJSON)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", id, err)
		}
		if filter != nil && !filter(payload) {
			continue
		}
		results = append(results, Result{ID: id, Score: cosine(vec, stored), Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// PurgeFile removes all entries belonging to a file. Called when a file
// disappears from the codebase.
func (s *Store) PurgeFile(fileID int64) error {
	_, err := s.db.Exec(`DELETE FROM embeddings WHERE file_id = ?`, fileID)
	return err
}

// Count returns the number of stored embeddings.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// checkDimension fixes the dimension on first use and rejects mismatches.
func (s *Store) checkDimension(dim int) error {
	val, err := s.db.GetMeta(storage.MetaKeyEmbeddingDim)
	if err != nil {
		return err
	}
	if val == "" {
		return s.db.SetMeta(storage.MetaKeyEmbeddingDim, strconv.Itoa(dim))
	}
	stored, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("corrupt embedding dimension %q: %w", val, err)
	}
	if stored != dim {
		return mioerr.Upstream("vector",
			fmt.Sprintf("embedding dimension %d does not match store dimension %d", dim, stored), nil)
	}
	return nil
}

// cosine computes cosine similarity between two equal-length vectors.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// encodeVector packs float32s little-endian for blob storage.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func encodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(s string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
