package flowstore

import (
	"context"
	"errors"
	"testing"

	"github.com/zapfunnel/flow-service/pkg/types"
)

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("creates flow seeded with start node", func(t *testing.T) {
		doc, err := store.Create(ctx, "Welcome Flow")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		if doc.ID == "" {
			t.Error("expected ID to be generated")
		}
		if doc.Name != "Welcome Flow" {
			t.Errorf("expected Name %q, got %q", "Welcome Flow", doc.Name)
		}
		if len(doc.Nodes) != 1 || doc.Nodes[0].Kind != types.KindStart {
			t.Errorf("expected a single start node, got %v", doc.Nodes)
		}
		if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
			t.Error("timestamps should be set")
		}
	})

	t.Run("returned document is a copy", func(t *testing.T) {
		doc, _ := store.Create(ctx, "Isolated")
		doc.Name = "clobbered"

		stored, err := store.Get(ctx, doc.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if stored.Name != "Isolated" {
			t.Errorf("store leaked its internal document: %q", stored.Name)
		}
	})
}

func TestMemoryStore_Insert(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	doc := &types.Document{
		ID:   "imported",
		Name: "Imported Flow",
		Nodes: []types.Node{
			{ID: "s", Kind: types.KindStart},
			{ID: "m", Kind: types.KindMessage},
		},
		Edges: []types.Edge{{ID: "e1", From: "s", To: "m"}},
	}

	t.Run("keeps provided id", func(t *testing.T) {
		got, err := store.Insert(ctx, doc)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if got.ID != "imported" {
			t.Errorf("expected ID %q, got %q", "imported", got.ID)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt should be set")
		}
	})

	t.Run("returns error for duplicate id", func(t *testing.T) {
		_, err := store.Insert(ctx, doc)
		if !errors.Is(err, ErrFlowExists) {
			t.Errorf("expected ErrFlowExists, got %v", err)
		}
	})

	t.Run("generates id when empty", func(t *testing.T) {
		got, err := store.Insert(ctx, &types.Document{Name: "No ID"})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if got.ID == "" {
			t.Error("expected ID to be generated")
		}
	})
}

func TestMemoryStore_Get(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Get Test")

	t.Run("gets existing flow", func(t *testing.T) {
		doc, err := store.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if doc.ID != created.ID {
			t.Errorf("expected ID %q, got %q", created.ID, doc.ID)
		}
	})

	t.Run("returns error for non-existent flow", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent")
		if !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})
}

func TestMemoryStore_Load(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("returns existing flow", func(t *testing.T) {
		created, _ := store.Create(ctx, "Existing")
		doc, err := store.Load(ctx, created.ID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if doc.Name != "Existing" {
			t.Errorf("expected the stored flow, got %q", doc.Name)
		}
	})

	t.Run("seeds and persists unknown id", func(t *testing.T) {
		doc, err := store.Load(ctx, "never-created")
		if err != nil {
			t.Fatalf("Load must be total, got %v", err)
		}
		if doc.ID != "never-created" {
			t.Errorf("expected the requested id, got %q", doc.ID)
		}
		if len(doc.Nodes) != 1 || doc.Nodes[0].Kind != types.KindStart {
			t.Errorf("expected a seeded start node, got %v", doc.Nodes)
		}

		// The seed is persisted: a plain Get now succeeds.
		stored, err := store.Get(ctx, "never-created")
		if err != nil {
			t.Fatalf("seeded flow not persisted: %v", err)
		}
		if stored.Nodes[0].ID != doc.Nodes[0].ID {
			t.Error("persisted seed differs from the returned document")
		}
	})
}

func TestMemoryStore_Save(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Save Test")

	t.Run("saves graph changes and refreshes UpdatedAt", func(t *testing.T) {
		doc := created.Clone()
		doc.Nodes = append(doc.Nodes, types.Node{ID: "m1", Kind: types.KindMessage})

		saved, err := store.Save(ctx, doc)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if len(saved.Nodes) != 2 {
			t.Errorf("expected 2 nodes, got %d", len(saved.Nodes))
		}
		if saved.UpdatedAt.Before(created.UpdatedAt) {
			t.Error("UpdatedAt should be refreshed")
		}
		if !saved.CreatedAt.Equal(created.CreatedAt) {
			t.Error("CreatedAt must be preserved")
		}
	})

	t.Run("returns error for non-existent flow", func(t *testing.T) {
		_, err := store.Save(ctx, &types.Document{ID: "non-existent"})
		if !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})
}

func TestMemoryStore_Rename(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Old Name")

	t.Run("renames existing flow", func(t *testing.T) {
		doc, err := store.Rename(ctx, created.ID, "New Name")
		if err != nil {
			t.Fatalf("Rename failed: %v", err)
		}
		if doc.Name != "New Name" {
			t.Errorf("expected Name %q, got %q", "New Name", doc.Name)
		}
	})

	t.Run("returns error for non-existent flow", func(t *testing.T) {
		_, err := store.Rename(ctx, "non-existent", "x")
		if !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	created, _ := store.Create(ctx, "Delete Test")

	t.Run("deletes existing flow", func(t *testing.T) {
		if err := store.Delete(ctx, created.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		_, err := store.Get(ctx, created.ID)
		if !errors.Is(err, ErrFlowNotFound) {
			t.Error("flow should be deleted")
		}
	})

	t.Run("returns error for non-existent flow", func(t *testing.T) {
		err := store.Delete(ctx, "non-existent")
		if !errors.Is(err, ErrFlowNotFound) {
			t.Errorf("expected ErrFlowNotFound, got %v", err)
		}
	})
}

func TestMemoryStore_List(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	a, _ := store.Create(ctx, "Flow A")
	b, _ := store.Insert(ctx, &types.Document{
		Name: "Flow B",
		Nodes: []types.Node{
			{ID: "s", Kind: types.KindStart},
			{ID: "m1", Kind: types.KindMessage},
			{ID: "m2", Kind: types.KindMessage},
		},
		Edges: []types.Edge{
			{ID: "e1", From: "s", To: "m1"},
			{ID: "e2", From: "m1", To: "m2"},
		},
	})

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 flows, got %d", len(list))
	}

	byID := map[string]Summary{}
	for _, s := range list {
		byID[s.ID] = s
	}
	if got := byID[b.ID]; got.NodeCount != 3 || got.EdgeCount != 2 || got.MessageNodes != 2 {
		t.Errorf("summary for B = %+v", got)
	}
	if got := byID[a.ID]; got.NodeCount != 1 || got.MessageNodes != 0 {
		t.Errorf("summary for A = %+v", got)
	}
}
