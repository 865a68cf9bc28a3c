package flowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zapfunnel/flow-service/pkg/types"
)

const (
	flowKeyPrefix = "flow:"
	flowListKey   = "flows"
)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed flow store.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store using an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) flowKey(id string) string {
	return flowKeyPrefix + id
}

func (s *RedisStore) write(ctx context.Context, doc *types.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal flow: %w", err)
	}

	// Transaction keeps the document and the id set consistent.
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.flowKey(doc.ID), data, 0)
	pipe.SAdd(ctx, flowListKey, doc.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save flow: %w", err)
	}
	return nil
}

// Create saves a new flow seeded with a start node.
func (s *RedisStore) Create(ctx context.Context, name string) (*types.Document, error) {
	doc := seedDocument("", name)
	if err := s.write(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Insert saves a complete document.
func (s *RedisStore) Insert(ctx context.Context, doc *types.Document) (*types.Document, error) {
	cp := doc.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}

	exists, err := s.client.Exists(ctx, s.flowKey(cp.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check exists: %w", err)
	}
	if exists > 0 {
		return nil, ErrFlowExists
	}

	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	if err := s.write(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Get retrieves a flow by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*types.Document, error) {
	data, err := s.client.Get(ctx, s.flowKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flow: %w", err)
	}

	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal flow: %w", err)
	}
	return &doc, nil
}

// Load retrieves a flow, seeding and persisting a fresh document under
// the id when none exists. Loading never fails on a missing id.
func (s *RedisStore) Load(ctx context.Context, id string) (*types.Document, error) {
	doc, err := s.Get(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, ErrFlowNotFound) {
		return nil, err
	}

	doc = seedDocument(id, "Untitled Flow")
	if err := s.write(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save overwrites an existing flow.
func (s *RedisStore) Save(ctx context.Context, doc *types.Document) (*types.Document, error) {
	stored, err := s.Get(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	cp := doc.Clone()
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Rename changes a flow's name.
func (s *RedisStore) Rename(ctx context.Context, id, name string) (*types.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Name = name
	doc.UpdatedAt = time.Now().UTC()

	if err := s.write(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes a flow.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, s.flowKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists == 0 {
		return ErrFlowNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.flowKey(id))
	pipe.SRem(ctx, flowListKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	return nil
}

// List returns summaries of all flows, newest first.
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.SMembers(ctx, flowListKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flow ids: %w", err)
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if errors.Is(err, ErrFlowNotFound) {
			// Stale reference, clean up
			s.client.SRem(ctx, flowListKey, id)
			continue
		}
		if err != nil {
			continue // Skip on error
		}
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

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
