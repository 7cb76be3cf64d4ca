package vectorindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/paperbotai/paperbot/internal/model"
)

// Manager keeps one resident index per embedding dimension and persists
// each to its own snapshot file under dir.
type Manager struct {
	dir string

	mu      sync.Mutex
	indexes map[int]*Index
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &Manager{dir: dir, indexes: make(map[int]*Index)}, nil
}

func (m *Manager) pathFor(dim int) string {
	return filepath.Join(m.dir, fmt.Sprintf("index_%d.bin", dim))
}

// Get returns the resident index for dim, loading its snapshot from disk
// the first time the dimension is seen.
func (m *Manager) Get(dim int) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[dim]; ok {
		return idx, nil
	}
	idx, err := Load(m.pathFor(dim), dim)
	if err != nil {
		return nil, err
	}
	m.indexes[dim] = idx
	return idx, nil
}

// SaveAll checkpoints every resident index. Failures are logged per index
// and the first one is returned after all saves were attempted.
func (m *Manager) SaveAll(ctx context.Context) error {
	m.mu.Lock()
	indexes := make(map[int]*Index, len(m.indexes))
	for dim, idx := range m.indexes {
		indexes[dim] = idx
	}
	m.mu.Unlock()

	var firstErr error
	for dim, idx := range indexes {
		if err := idx.Save(m.pathFor(dim)); err != nil {
			logutil.GetLogger(ctx).Error("save index failed", zap.Int("dim", dim), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logutil.GetLogger(ctx).Debug("index checkpoint saved", zap.Int("dim", dim), zap.Int("vectors", idx.Len()))
	}
	return firstErr
}

// RemoveDocument evicts the document's vectors from every resident index
// and reports the total removed.
func (m *Manager) RemoveDocument(documentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, idx := range m.indexes {
		removed += idx.RemoveDocument(documentID)
	}
	return removed
}

// RemoveWorkspace evicts the workspace's vectors from every resident index.
func (m *Manager) RemoveWorkspace(workspaceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, idx := range m.indexes {
		removed += idx.RemoveWorkspace(workspaceID)
	}
	return removed
}

// Rebuild replaces the resident index for dim with the given rows and
// checkpoints it immediately.
func (m *Manager) Rebuild(ctx context.Context, dim int, rows []model.IndexedEmbedding) error {
	idx, err := NewIndex(dim)
	if err != nil {
		return err
	}
	for _, row := range rows {
		ref := Ref{ChunkID: row.ChunkID, DocumentID: row.DocumentID, WorkspaceID: row.WorkspaceID}
		if err := idx.Add(ref, row.Vector); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.indexes[dim] = idx
	m.mu.Unlock()
	if err := idx.Save(m.pathFor(dim)); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("index rebuilt", zap.Int("dim", dim), zap.Int("vectors", idx.Len()))
	return nil
}
