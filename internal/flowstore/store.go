// Package flowstore provides flow document persistence.
package flowstore

import (
	"context"
	"errors"
	"time"

	"github.com/zapfunnel/flow-service/pkg/types"
)

// Common errors returned by Store implementations.
var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrFlowExists   = errors.New("flow already exists")
)

// Summary is the listing projection of a stored flow, enough for the
// flow index and quota accounting without loading full graphs.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	NodeCount    int       `json:"nodeCount"`
	EdgeCount    int       `json:"edgeCount"`
	MessageNodes int       `json:"messageNodes"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store defines the interface for flow persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create saves a new flow seeded with a start node.
	Create(ctx context.Context, name string) (*types.Document, error)

	// Insert saves a complete document, keeping its id when set.
	// Returns ErrFlowExists if the id is taken.
	Insert(ctx context.Context, doc *types.Document) (*types.Document, error)

	// Get retrieves a flow by id. Returns ErrFlowNotFound if missing.
	Get(ctx context.Context, id string) (*types.Document, error)

	// Load retrieves a flow by id, seeding and persisting a fresh
	// start-node-only document when the id is unknown. Total: a missing
	// id is never an error.
	Load(ctx context.Context, id string) (*types.Document, error)

	// Save overwrites an existing flow, refreshing UpdatedAt.
	// Returns ErrFlowNotFound if missing.
	Save(ctx context.Context, doc *types.Document) (*types.Document, error)

	// Rename changes a flow's name. Returns ErrFlowNotFound if missing.
	Rename(ctx context.Context, id, name string) (*types.Document, error)

	// Delete removes a flow. Returns ErrFlowNotFound if missing.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all flows, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Close releases any resources.
	Close() error
}

// summarize builds the listing projection of a document.
func summarize(doc *types.Document) Summary {
	return Summary{
		ID:           doc.ID,
		Name:         doc.Name,
		NodeCount:    len(doc.Nodes),
		EdgeCount:    len(doc.Edges),
		MessageNodes: doc.CountKind(types.KindMessage),
		UpdatedAt:    doc.UpdatedAt,
	}
}
