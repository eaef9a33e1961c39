package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DhavalSuthar-24/miow-context-master/internal/mioerr"
	"github.com/DhavalSuthar-24/miow-context-master/internal/slogutil"
	"github.com/DhavalSuthar-24/miow-context-master/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.DB) {
	t.Helper()
	db, err := storage.Open(t.TempDir(), slogutil.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, slogutil.NewDiscardLogger()), db
}

// insertFile satisfies the embeddings foreign key on files.
func insertFile(t *testing.T, db *storage.DB, path string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO files (path, language, fingerprint) VALUES (?, 'typescript', 'fp')`, path)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestQueryRanksByCosineSimilarity(t *testing.T) {
	s, db := newTestStore(t)
	fid := insertFile(t, db, "a.ts")

	require.NoError(t, s.Upsert("sym-a", fid, []float32{1, 0, 0}, Payload{Name: "a", Kind: "function"}))
	require.NoError(t, s.Upsert("sym-b", fid, []float32{0.9, 0.1, 0}, Payload{Name: "b", Kind: "function"}))
	require.NoError(t, s.Upsert("sym-c", fid, []float32{0, 1, 0}, Payload{Name: "c", Kind: "type"}))

	results, err := s.Query([]float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "sym-a", results[0].ID)
	require.Equal(t, "sym-b", results[1].ID)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryDeterministicTieBreak(t *testing.T) {
	s, db := newTestStore(t)
	fid := insertFile(t, db, "a.ts")

	// Identical vectors: identical scores, so ids decide the order.
	require.NoError(t, s.Upsert("zz", fid, []float32{1, 1}, Payload{Name: "zz"}))
	require.NoError(t, s.Upsert("aa", fid, []float32{1, 1}, Payload{Name: "aa"}))

	for i := 0; i < 3; i++ {
		results, err := s.Query([]float32{1, 1}, 10, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"aa", "zz"}, []string{results[0].ID, results[1].ID})
	}
}

func TestQueryFilter(t *testing.T) {
	s, db := newTestStore(t)
	fid := insertFile(t, db, "a.ts")

	require.NoError(t, s.Upsert("fn", fid, []float32{1, 0}, Payload{Name: "fn", Kind: "function"}))
	require.NoError(t, s.Upsert("ty", fid, []float32{1, 0}, Payload{Name: "ty", Kind: "type"}))

	results, err := s.Query([]float32{1, 0}, 10, func(p Payload) bool { return p.Kind == "type" })
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "ty", results[0].ID)
}

func TestDimensionFixedAtFirstUpsert(t *testing.T) {
	s, db := newTestStore(t)
	fid := insertFile(t, db, "a.ts")

	require.NoError(t, s.Upsert("x", fid, []float32{1, 2, 3}, Payload{}))
	err := s.Upsert("y", fid, []float32{1, 2}, Payload{})
	require.True(t, mioerr.Is(err, mioerr.CodeUpstream))
}

func TestPurgeFileRemovesEntries(t *testing.T) {
	s, db := newTestStore(t)
	fidA := insertFile(t, db, "a.ts")
	fidB := insertFile(t, db, "b.ts")

	require.NoError(t, s.Upsert("a1", fidA, []float32{1, 0}, Payload{Path: "a.ts"}))
	require.NoError(t, s.Upsert("b1", fidB, []float32{0, 1}, Payload{Path: "b.ts"}))

	require.NoError(t, s.PurgeFile(fidA))
	n, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	results, err := s.Query([]float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b1", results[0].ID)
}

func TestEmptyStoreQueryReturnsNothing(t *testing.T) {
	s, _ := newTestStore(t)
	results, err := s.Query([]float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}
