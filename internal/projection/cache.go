package projection

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/toslens/internal/domain"
)

// Cache memoizes Project. Results carry no wall-clock data, so an entry
// stays valid for as long as it is resident.
type Cache struct {
	c *ristretto.Cache
}

// NewCache creates a Cache holding up to maxEntries projections.
func NewCache(maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("projection: new cache: %w", err)
	}
	return &Cache{c: c}, nil
}

// Project returns the memoized projection for (principal, horizonDays),
// computing and storing it on a miss. The returned slices are copies.
func (c *Cache) Project(principal decimal.Decimal, horizonDays int) domain.ProjectionResult {
	key := cacheKey(principal, horizonDays)
	if v, ok := c.c.Get(key); ok {
		if res, ok := v.(domain.ProjectionResult); ok {
			return clone(res)
		}
	}
	res := Project(principal, horizonDays)
	c.c.Set(key, res, 1)
	return clone(res)
}

// Wait blocks until pending writes are visible to Get.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}

func cacheKey(principal decimal.Decimal, horizonDays int) string {
	return principal.String() + "|" + strconv.Itoa(horizonDays)
}

func clone(r domain.ProjectionResult) domain.ProjectionResult {
	if r.DataPoints != nil {
		r.DataPoints = append([]domain.ProjectionPoint(nil), r.DataPoints...)
	}
	if r.Milestones != nil {
		r.Milestones = append([]domain.ProjectionPoint(nil), r.Milestones...)
	}
	return r
}
