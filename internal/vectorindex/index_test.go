package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

func mustAdd(t *testing.T, idx *Index, chunkID, docID, wsID string, vec []float32) {
	t.Helper()
	require.NoError(t, idx.Add(Ref{ChunkID: chunkID, DocumentID: docID, WorkspaceID: wsID}, vec))
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	mustAdd(t, idx, "c1", "d1", "w1", []float32{0, 0})
	mustAdd(t, idx, "c2", "d1", "w1", []float32{3, 4})
	mustAdd(t, idx, "c3", "d2", "w1", []float32{1, 0})

	hits, err := idx.Search([]float32{0, 0}, 10, "w1")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, float64(0), hits[0].Distance)
	assert.Equal(t, "c3", hits[1].ChunkID)
	assert.Equal(t, float64(1), hits[1].Distance)
	assert.Equal(t, "c2", hits[2].ChunkID)
	assert.Equal(t, float64(25), hits[2].Distance)
}

func TestSearchRespectsK(t *testing.T) {
	idx, err := NewIndex(1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		mustAdd(t, idx, string(rune('a'+i)), "d1", "w1", []float32{float32(i)})
	}
	hits, err := idx.Search([]float32{0}, 2, "")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchWorkspaceScope(t *testing.T) {
	idx, err := NewIndex(1)
	require.NoError(t, err)
	mustAdd(t, idx, "c1", "d1", "w1", []float32{1})
	mustAdd(t, idx, "c2", "d2", "w2", []float32{0})

	hits, err := idx.Search([]float32{0}, 10, "w1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := NewIndex(3)
	require.NoError(t, err)
	hits, err := idx.Search([]float32{1, 2, 3}, 5, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	_, err = idx.Search([]float32{1}, 5, "")
	assert.Error(t, err)
}

func TestRemoveDocument(t *testing.T) {
	idx, err := NewIndex(1)
	require.NoError(t, err)
	mustAdd(t, idx, "c1", "d1", "w1", []float32{1})
	mustAdd(t, idx, "c2", "d1", "w1", []float32{2})
	mustAdd(t, idx, "c3", "d2", "w1", []float32{3})

	assert.Equal(t, 2, idx.RemoveDocument("d1"))
	assert.Equal(t, 1, idx.Len())
	hits, err := idx.Search([]float32{0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ChunkID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index_2.bin")

	idx, err := NewIndex(2)
	require.NoError(t, err)
	mustAdd(t, idx, "c1", "d1", "w1", []float32{0.5, -1.25})
	mustAdd(t, idx, "c2", "d2", "w2", []float32{3, 4})
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path, 2)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	hits, err := loaded.Search([]float32{0.5, -1.25}, 1, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "w1", hits[0].WorkspaceID)
	assert.Equal(t, float64(0), hits[0].Distance)
}

func TestLoadMissingFile(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "nope.bin"), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index_2.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an index"), 0o644))
	_, err := Load(path, 2)
	assert.ErrorIs(t, err, appErr.ErrIndexCorrupt)
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	idx, err := NewIndex(2)
	require.NoError(t, err)
	mustAdd(t, idx, "c1", "d1", "w1", []float32{1, 2})
	require.NoError(t, idx.Save(path))

	_, err = Load(path, 3)
	assert.ErrorIs(t, err, appErr.ErrIndexCorrupt)
}
