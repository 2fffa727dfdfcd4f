package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force inner product index. Knowledge bases are
// small enough per tenant that a linear scan stays well under a millisecond.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimensions int
	slots      map[string]int
	ids        []string
	vectors    [][]float32
}

var _ Index = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &MemoryIndex{
		dimensions: dimensions,
		slots:      make(map[string]int),
	}, nil
}

// Upsert inserts or replaces the vector stored under each ID.
func (m *MemoryIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		if slot, ok := m.slots[id]; ok {
			m.vectors[slot] = vec
			continue
		}
		m.slots[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns up to k results ordered by score, then ID. When allow is
// non-nil only IDs it accepts are considered, so the k slots are not spent
// on documents the caller cannot see.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int, allow func(id string) bool) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	results := make([]Result, 0, len(m.ids))
	for i, id := range m.ids {
		if allow != nil && !allow(id) {
			continue
		}
		results = append(results, Result{ID: id, Score: InnerProduct(query, m.vectors[i])})
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
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

// Remove deletes the given IDs. Unknown IDs are ignored.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		slot, ok := m.slots[id]
		if !ok {
			continue
		}
		last := len(m.ids) - 1
		if slot != last {
			m.ids[slot] = m.ids[last]
			m.vectors[slot] = m.vectors[last]
			m.slots[m.ids[slot]] = slot
		}
		m.ids = m.ids[:last]
		m.vectors = m.vectors[:last]
		delete(m.slots, id)
	}
	return nil
}

// Size returns the number of stored vectors.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Dimensions returns the vector length the index accepts.
func (m *MemoryIndex) Dimensions() int { return m.dimensions }
