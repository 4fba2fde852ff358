package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tender-workflow/internal/tender/upload"
)

// CorrelationStore remembers the applicationId per (tender, bidder) so a
// returning bidder resumes into the same application.
type CorrelationStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCorrelationStore(client redis.Cmdable, ttl time.Duration) *CorrelationStore {
	return &CorrelationStore{client: client, ttl: ttl}
}

func correlationKey(tenderID, bidderID string) string {
	return fmt.Sprintf("application:%s:%s", tenderID, bidderID)
}

// For scopes the store to one wizard session.
func (s *CorrelationStore) For(tenderID, bidderID string) upload.IDStore {
	return &scopedIDStore{store: s, key: correlationKey(tenderID, bidderID)}
}

// Forget drops the mapping, e.g. after the application was submitted.
func (s *CorrelationStore) Forget(ctx context.Context, tenderID, bidderID string) error {
	return s.client.Del(ctx, correlationKey(tenderID, bidderID)).Err()
}

type scopedIDStore struct {
	store *CorrelationStore
	key   string
}

func (s *scopedIDStore) Get(ctx context.Context) (string, error) {
	id, err := s.store.client.Get(ctx, s.key).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.key, err)
	}
	return id, nil
}

// SetIfAbsent uses SETNX, so concurrent sessions agree on the first id.
func (s *scopedIDStore) SetIfAbsent(ctx context.Context, id string) (string, error) {
	set, err := s.store.client.SetNX(ctx, s.key, id, s.store.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("setnx %s: %w", s.key, err)
	}
	if set {
		return id, nil
	}
	return s.Get(ctx)
}
