package flowstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zapfunnel/flow-service/pkg/types"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for testing and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	flows map[string]*types.Document
}

// NewMemoryStore creates a new in-memory flow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows: make(map[string]*types.Document),
	}
}

// seedDocument builds a fresh flow: a start node and nothing else, so
// the canvas never opens empty. An empty id gets a generated one.
func seedDocument(id, name string) *types.Document {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &types.Document{
		ID:   id,
		Name: name,
		Nodes: []types.Node{{
			ID:       uuid.NewString(),
			Kind:     types.KindStart,
			Position: types.Position{X: 100, Y: 100},
			Data:     types.NodeData{Label: "Start"},
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Create saves a new flow seeded with a start node.
func (s *MemoryStore) Create(ctx context.Context, name string) (*types.Document, error) {
	doc := seedDocument("", name)

	s.mu.Lock()
	s.flows[doc.ID] = doc
	s.mu.Unlock()

	return doc.Clone(), nil
}

// Insert saves a complete document.
func (s *MemoryStore) Insert(ctx context.Context, doc *types.Document) (*types.Document, error) {
	cp := doc.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[cp.ID]; exists {
		return nil, ErrFlowExists
	}
	s.flows[cp.ID] = cp
	return cp.Clone(), nil
}

// Get retrieves a flow by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	// Return a copy to prevent external mutation
	return doc.Clone(), nil
}

// Load retrieves a flow, seeding and persisting a fresh document under
// the id when none exists. Loading never fails on a missing id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.flows[id]; ok {
		return doc.Clone(), nil
	}
	doc := seedDocument(id, "Untitled Flow")
	s.flows[doc.ID] = doc
	return doc.Clone(), nil
}

// Save overwrites an existing flow.
func (s *MemoryStore) Save(ctx context.Context, doc *types.Document) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.flows[doc.ID]
	if !ok {
		return nil, ErrFlowNotFound
	}

	cp := doc.Clone()
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.flows[cp.ID] = cp
	return cp.Clone(), nil
}

// Rename changes a flow's name.
func (s *MemoryStore) Rename(ctx context.Context, id, name string) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	doc.Name = name
	doc.UpdatedAt = time.Now().UTC()
	return doc.Clone(), nil
}

// Delete removes a flow.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[id]; !ok {
		return ErrFlowNotFound
	}
	delete(s.flows, id)
	return nil
}

// List returns summaries of all flows, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.flows))
	for _, doc := range s.flows {
		summaries = append(summaries, summarize(doc))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
