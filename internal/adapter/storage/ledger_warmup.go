package storage

import (
	"context"
	"fmt"
)

// WarmRedisLedger seeds Redis with the catalog's counters for every item Redis
// does not track yet and returns how many items it seeded. Counters already in
// Redis win: on the Redis backend the SQL stock row is never decremented, so
// copying it over would hand sold units back out after a restart.
func WarmRedisLedger(ctx context.Context, catalog *SQLAdapter, cache *RedisAdapter) (int, error) {
	items, err := catalog.ListItems(ctx)
	if err != nil {
		return 0, err
	}
	seeded := 0
	for _, item := range items {
		rec, err := catalog.GetStock(ctx, item.ID)
		if err != nil {
			return seeded, fmt.Errorf("read stock of item %d: %w", item.ID, err)
		}
		ok, err := cache.SeedStock(ctx, item.ID, rec.Stock, rec.Sales)
		if err != nil {
			return seeded, err
		}
		if ok {
			seeded++
		}
	}
	return seeded, nil
}
