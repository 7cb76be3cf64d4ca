package vectorindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

// Ref identifies what a stored vector points at. WorkspaceID and DocumentID
// are carried so searches can be scoped and documents evicted without a
// database round trip.
type Ref struct {
	ChunkID     string
	DocumentID  string
	WorkspaceID string
}

// Hit is one search result. Distance is squared L2, so smaller is closer.
type Hit struct {
	Ref
	Distance float64
}

// Index is a flat in-memory vector index over a single dimension. All
// methods are safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	dim  int
	refs []Ref
	data []float32 // len(refs) * dim, row-major
}

func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension: %d", dim)
	}
	return &Index{dim: dim}, nil
}

func (idx *Index) Dim() int {
	return idx.dim
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.refs)
}

// Add appends one vector. Vectors for a chunk already present are not
// deduplicated; callers remove the document first when re-ingesting.
func (idx *Index) Add(ref Ref, vec []float32) error {
	if len(vec) != idx.dim {
		return fmt.Errorf("vector dimension mismatch: got %d, index is %d", len(vec), idx.dim)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.refs = append(idx.refs, ref)
	idx.data = append(idx.data, vec...)
	return nil
}

// Search scans the index and returns up to k nearest vectors by squared L2
// distance, ascending. A non-empty workspaceID restricts the scan to that
// workspace. Fewer than k stored vectors yields fewer than k hits.
func (idx *Index) Search(query []float32, k int, workspaceID string) ([]Hit, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, index is %d", len(query), idx.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]Hit, 0, len(idx.refs))
	for i, ref := range idx.refs {
		if workspaceID != "" && ref.WorkspaceID != workspaceID {
			continue
		}
		row := idx.data[i*idx.dim : (i+1)*idx.dim]
		var dist float64
		for j, q := range query {
			d := float64(q) - float64(row[j])
			dist += d * d
		}
		hits = append(hits, Hit{Ref: ref, Distance: dist})
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// RemoveDocument drops every vector belonging to the document and reports
// how many were removed.
func (idx *Index) RemoveDocument(documentID string) int {
	return idx.removeIf(func(ref Ref) bool { return ref.DocumentID == documentID })
}

// RemoveWorkspace drops every vector belonging to the workspace.
func (idx *Index) RemoveWorkspace(workspaceID string) int {
	return idx.removeIf(func(ref Ref) bool { return ref.WorkspaceID == workspaceID })
}

func (idx *Index) removeIf(match func(Ref) bool) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	kept := 0
	refs := idx.refs[:0]
	data := idx.data[:0]
	for i, ref := range idx.refs {
		if match(ref) {
			continue
		}
		refs = append(refs, ref)
		data = append(data, idx.data[i*idx.dim:(i+1)*idx.dim]...)
		kept++
	}
	removed := len(idx.refs) - kept
	idx.refs = refs
	idx.data = data
	return removed
}

// Reset empties the index.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.refs = nil
	idx.data = nil
}

const (
	fileMagic   = uint32(0x50424958) // "PBIX"
	fileVersion = uint32(1)
)

// Save writes a snapshot to path, going through a temp file and rename so
// a crash mid-write never leaves a truncated index behind.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := idx.writeTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (idx *Index) writeTo(w io.Writer) error {
	header := []uint32{fileMagic, fileVersion, uint32(idx.dim), uint32(len(idx.refs))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for i, ref := range idx.refs {
		for _, s := range []string{ref.ChunkID, ref.DocumentID, ref.WorkspaceID} {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		row := idx.data[i*idx.dim : (i+1)*idx.dim]
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a snapshot written by Save. A missing file yields an empty
// index; a malformed one yields ErrIndexCorrupt so callers can fall back
// to a rebuild from the database.
func Load(path string, dim int) (*Index, error) {
	idx, err := NewIndex(dim)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := idx.readFrom(f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", appErr.ErrIndexCorrupt, path, err)
	}
	return idx, nil
}

func (idx *Index) readFrom(r io.Reader) error {
	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return err
		}
	}
	if magic != fileMagic {
		return fmt.Errorf("bad magic %#x", magic)
	}
	if version != fileVersion {
		return fmt.Errorf("unsupported version %d", version)
	}
	if int(dim) != idx.dim {
		return fmt.Errorf("dimension mismatch: file has %d, expected %d", dim, idx.dim)
	}
	refs := make([]Ref, 0, count)
	data := make([]float32, 0, int(count)*idx.dim)
	for i := uint32(0); i < count; i++ {
		var ref Ref
		for _, dst := range []*string{&ref.ChunkID, &ref.DocumentID, &ref.WorkspaceID} {
			s, err := readString(r)
			if err != nil {
				return err
			}
			*dst = s
		}
		row := make([]float32, idx.dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return err
		}
		refs = append(refs, ref)
		data = append(data, row...)
	}
	idx.refs = refs
	idx.data = data
	return nil
}

const maxRefStringLen = 1 << 12

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxRefStringLen {
		return "", fmt.Errorf("ref string too long: %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
