package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/logger"
)

// TenderCache fronts a TenderService with Redis. Cache failures fall through
// to the backend.
type TenderCache struct {
	next   backend.TenderService
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

var _ backend.TenderService = (*TenderCache)(nil)

func NewTenderCache(next backend.TenderService, client redis.Cmdable, ttl time.Duration, log logger.Logger) *TenderCache {
	return &TenderCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "tender-cache"}),
	}
}

func tenderKey(tenderID string) string {
	return "tender:" + tenderID
}

func (c *TenderCache) GetTenderDetails(ctx context.Context, tenderID string) (*backend.TenderDetails, error) {
	key := tenderKey(tenderID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var details backend.TenderDetails
		if jsonErr := json.Unmarshal(data, &details); jsonErr == nil {
			return &details, nil
		}
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
	case !stderrors.Is(err, redis.Nil):
		c.logger.Warn("tender cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	details, err := c.next.GetTenderDetails(ctx, tenderID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(details); jsonErr == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("tender cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return details, nil
}

func (c *TenderCache) CreateTender(ctx context.Context, form backend.TenderForm) (string, error) {
	return c.next.CreateTender(ctx, form)
}

func (c *TenderCache) UpdateTender(ctx context.Context, tenderID string, form backend.TenderForm) error {
	if err := c.next.UpdateTender(ctx, tenderID, form); err != nil {
		return err
	}
	c.Invalidate(ctx, tenderID)
	return nil
}

// Invalidate drops the cached details; called after submission and updates.
func (c *TenderCache) Invalidate(ctx context.Context, tenderID string) {
	if err := c.client.Del(ctx, tenderKey(tenderID)).Err(); err != nil {
		c.logger.Warn("tender cache invalidate failed", map[string]interface{}{"tenderId": tenderID, "error": err.Error()})
	}
}
