package ruleset

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"suvidha/internal/catalog/models"
	"suvidha/internal/catalog/ports"
	"suvidha/internal/rules"
	"suvidha/pkg/domain"
)

// CurrentCache fronts a RuleSetStore with a Redis cache for the hot
// Current() lookup on the live assess path. Resolve and History always go to
// the backing store; Publish writes through and invalidates.
//
// Cache failures degrade to the backing store; a cold or broken cache never
// changes results, only latency.
type CurrentCache struct {
	inner  ports.RuleSetStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCurrentCache(inner ports.RuleSetStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CurrentCache {
	return &CurrentCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func currentKey(schemeID domain.SchemeID) string {
	return "suvidha:ruleset:current:" + string(schemeID)
}

func (c *CurrentCache) Publish(ctx context.Context, schemeID domain.SchemeID, criteria []rules.Criterion, effectiveFrom time.Time) (*models.RuleSet, error) {
	rs, err := c.inner.Publish(ctx, schemeID, criteria, effectiveFrom)
	if err != nil {
		return nil, err
	}
	if delErr := c.client.Del(ctx, currentKey(schemeID)).Err(); delErr != nil {
		c.logger.WarnContext(ctx, "failed to invalidate rule set cache",
			"scheme_id", schemeID, "error", delErr)
	}
	return rs, nil
}

func (c *CurrentCache) Current(ctx context.Context, schemeID domain.SchemeID) (*models.RuleSet, error) {
	key := currentKey(schemeID)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var rs models.RuleSet
		if unmarshalErr := json.Unmarshal(raw, &rs); unmarshalErr == nil {
			// A cached entry can outlive its effective range when the
			// successor was published elsewhere; verify before serving.
			if rs.Contains(time.Now()) {
				return &rs, nil
			}
		}
	} else if err != redis.Nil {
		c.logger.WarnContext(ctx, "rule set cache read failed",
			"scheme_id", schemeID, "error", err)
	}

	rs, err := c.inner.Current(ctx, schemeID)
	if err != nil {
		return nil, err
	}

	if encoded, marshalErr := json.Marshal(rs); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "rule set cache write failed",
				"scheme_id", schemeID, "error", setErr)
		}
	}
	return rs, nil
}

func (c *CurrentCache) Resolve(ctx context.Context, schemeID domain.SchemeID, at time.Time) (*models.RuleSet, error) {
	return c.inner.Resolve(ctx, schemeID, at)
}

func (c *CurrentCache) History(ctx context.Context, schemeID domain.SchemeID) ([]*models.RuleSet, error) {
	return c.inner.History(ctx, schemeID)
}
