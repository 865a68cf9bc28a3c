// Package archive stores exported flow snapshots in object storage so
// an account keeps an off-box history of its published flows.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Ref points at one archived snapshot.
type Ref struct {
	// URI is the full object path (e.g. "s3://bucket/flows/id/ts.json")
	URI string `json:"uri"`

	// Size in bytes
	Size int64 `json:"size,omitempty"`

	// Checksum (SHA256)
	Checksum string `json:"checksum,omitempty"`

	// CreatedAt timestamp
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Store is the snapshot storage backend.
type Store interface {
	// Put archives a snapshot under the flow's history.
	Put(ctx context.Context, flowID string, snapshot []byte) (*Ref, error)

	// Get retrieves an archived snapshot.
	Get(ctx context.Context, ref *Ref) (io.ReadCloser, error)

	// List returns a flow's archived snapshots, newest first.
	List(ctx context.Context, flowID string) ([]*Ref, error)

	// PresignGet generates a presigned download URL where the backend
	// supports it.
	PresignGet(ctx context.Context, ref *Ref, expiry time.Duration) (string, error)
}

// snapshotKey builds the object key for one archived export.
func snapshotKey(flowID string, at time.Time) string {
	return fmt.Sprintf("flows/%s/%s.json", flowID, at.UTC().Format("20060102T150405.000Z0700"))
}

// MemoryStore keeps snapshots in memory. Suitable for testing and
// deployments without object storage.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte // uri -> snapshot
	byFlow  map[string][]*Ref
}

// NewMemoryStore creates an empty in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		byFlow:  make(map[string][]*Ref),
	}
}

// Put archives a snapshot.
func (s *MemoryStore) Put(ctx context.Context, flowID string, snapshot []byte) (*Ref, error) {
	now := time.Now().UTC()
	ref := &Ref{
		URI:       "mem://" + snapshotKey(flowID, now),
		Size:      int64(len(snapshot)),
		Checksum:  checksum(snapshot),
		CreatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref.URI] = append([]byte(nil), snapshot...)
	s.byFlow[flowID] = append(s.byFlow[flowID], ref)
	return ref, nil
}

// Get retrieves an archived snapshot.
func (s *MemoryStore) Get(ctx context.Context, ref *Ref) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[ref.URI]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", ref.URI)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// checksum returns the hex SHA256 of a snapshot.
func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// List returns a flow's archived snapshots, newest first.
func (s *MemoryStore) List(ctx context.Context, flowID string) ([]*Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]*Ref, len(s.byFlow[flowID]))
	copy(refs, s.byFlow[flowID])
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})
	return refs, nil
}

// PresignGet is unsupported for the memory store.
func (s *MemoryStore) PresignGet(ctx context.Context, ref *Ref, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presigned URLs not supported by memory archive")
}
