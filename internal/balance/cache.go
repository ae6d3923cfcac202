package balance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autoCoinBot/internal/ports"
)

// Cache serves balances to the trading loop from a short-TTL cache over the
// exchange. A stale read triggers a refresh of every registered asset in one
// pass, so a tick touching several instruments costs at most one REST round
// per asset per TTL window.
//
// A failed per-asset query degrades that asset to a zero balance for the
// current window instead of failing the read: the engine then simply sizes no
// orders from it until the next refresh succeeds.
type Cache struct {
	querier ports.BalanceQuerier
	logger  ports.Logger
	ttl     time.Duration

	mu        sync.Mutex
	values    map[string]float64
	refreshed time.Time

	now func() time.Time // injectable for tests
}

// New creates a balance cache tracking the given assets.
func New(querier ports.BalanceQuerier, assets []string, ttl time.Duration, logger ports.Logger) (*Cache, error) {
	if querier == nil {
		return nil, fmt.Errorf("balance querier is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for balance cache")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("balance cache TTL must be positive")
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("at least one asset is required")
	}

	values := make(map[string]float64, len(assets))
	for _, a := range assets {
		values[a] = 0
	}
	return &Cache{
		querier: querier,
		logger:  logger,
		ttl:     ttl,
		values:  values,
		now:     time.Now,
	}, nil
}

// GetBalance returns the cached balance for the asset, refreshing all tracked
// assets first if the cache window has expired. Unknown assets are an error;
// the tracked set is fixed at construction.
func (c *Cache) GetBalance(ctx context.Context, asset string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.values[asset]; !ok {
		return 0, fmt.Errorf("asset %s is not tracked: %w", asset, ports.ErrNotFound)
	}

	if c.now().Sub(c.refreshed) >= c.ttl {
		c.refreshLocked(ctx)
	}
	return c.values[asset], nil
}

// Invalidate expires the cache so the next read refreshes. Called after order
// fills, when the cached balances are known to be wrong.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = time.Time{}
}

func (c *Cache) refreshLocked(ctx context.Context) {
	for asset := range c.values {
		v, err := c.querier.QueryBalance(ctx, asset)
		if err != nil {
			c.logger.Warn(ctx, "Balance query failed, degrading asset to zero for this window",
				map[string]interface{}{"asset": asset, "error": err.Error()})
			c.values[asset] = 0
			continue
		}
		c.values[asset] = v
	}
	c.refreshed = c.now()
}
