package gas

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

// Cache stores gas readings in Redis so that several optimizer instances can
// share one refresh. Each chain lives in its own hash under gas:<chain> with
// a price and a collection timestamp.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis at the given address. The TTL bounds how old a
// cached price may be before a refresh goes back to the live sources.
func NewCache(addr, password string, db int, ttl time.Duration) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client, ttl: ttl}
}

// Ping verifies the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Reading returns a cached reading covering all requested chains. The second
// return value is false when any chain is missing or stale.
func (c *Cache) Reading(ctx context.Context, chains []types.Chain) (*model.GasPriceReading, bool) {
	pipe := c.client.Pipeline()
	cmds := make(map[types.Chain]*redis.MapStringStringCmd, len(chains))
	for _, chain := range chains {
		cmds[chain] = pipe.HGetAll(ctx, cacheKey(chain))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logrus.Warnf("Redis read failed: %v", err)
		return nil, false
	}

	prices := make(map[types.Chain]float64, len(chains))
	oldest := time.Now()
	for chain, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			return nil, false // Chain not cached
		}

		price, err := strconv.ParseFloat(vals["price"], 64)
		if err != nil || price <= 0 {
			return nil, false
		}
		ts, err := strconv.ParseInt(vals["ts"], 10, 64)
		if err != nil {
			return nil, false
		}

		collectedAt := time.Unix(ts, 0)
		if time.Since(collectedAt) > c.ttl {
			return nil, false // Stale entry
		}
		if collectedAt.Before(oldest) {
			oldest = collectedAt
		}
		prices[chain] = price
	}

	return &model.GasPriceReading{Prices: prices, CollectedAt: oldest}, true
}

// Store writes a reading to Redis. Entries expire on their own shortly after
// going stale so abandoned chains don't linger.
func (c *Cache) Store(ctx context.Context, reading model.GasPriceReading) error {
	ts := reading.CollectedAt.Unix()

	pipe := c.client.Pipeline()
	for chain, price := range reading.Prices {
		key := cacheKey(chain)
		pipe.HSet(ctx, key, map[string]interface{}{
			"price": strconv.FormatFloat(price, 'f', -1, 64),
			"ts":    strconv.FormatInt(ts, 10),
		})
		pipe.Expire(ctx, key, 2*c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func cacheKey(chain types.Chain) string {
	return "gas:" + string(chain)
}
