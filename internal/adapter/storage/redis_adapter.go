package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

const (
	stockKeyPrefix       = "stock:"
	salesKeyPrefix       = "sales:"
	idempotencyKeyPrefix = "purchase:"
	pendingMarker        = "pending"

	DefaultIdempotencyTTL = 24 * time.Hour
)

// Returns -1 when the stock key is missing, 0 when stock is short, 1 on success.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

var seedLedgerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = DefaultIdempotencyTTL
	}
	return &RedisAdapter{client: client, idempotencyTTL: idempotencyTTL}
}

func stockKey(itemID int64) string { return stockKeyPrefix + strconv.FormatInt(itemID, 10) }
func salesKey(itemID int64) string { return salesKeyPrefix + strconv.FormatInt(itemID, 10) }

func (r *RedisAdapter) TryDecrement(ctx context.Context, itemID int64, quantity int64) (bool, error) {
	if err := checkQuantity(quantity); err != nil {
		return false, err
	}
	result, err := decrementStockScript.Run(ctx, r.client, []string{stockKey(itemID)}, quantity).Int()
	if err != nil {
		return false, domain.NewStoreError("redis decrement stock", err)
	}

	switch result {
	case 1:
		return true, nil
	case -1:
		return false, domain.ErrItemNotFound
	default:
		return false, nil
	}
}

func (r *RedisAdapter) RecordSale(ctx context.Context, itemID int64, quantity int64) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	if err := r.client.IncrBy(ctx, salesKey(itemID), quantity).Err(); err != nil {
		return domain.NewStoreError("redis record sale", err)
	}
	return nil
}

func (r *RedisAdapter) GetStock(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	values, err := r.client.MGet(ctx, stockKey(itemID), salesKey(itemID)).Result()
	if err != nil {
		return nil, domain.NewStoreError("redis get stock", err)
	}
	if values[0] == nil {
		return nil, domain.ErrItemNotFound
	}

	rec := &domain.StockRecord{ItemID: itemID}
	if rec.Stock, err = parseCounter(values[0]); err != nil {
		return nil, fmt.Errorf("parse stock of item %d: %w", itemID, err)
	}
	if values[1] != nil {
		if rec.Sales, err = parseCounter(values[1]); err != nil {
			return nil, fmt.Errorf("parse sales of item %d: %w", itemID, err)
		}
	}
	return rec, nil
}

func parseCounter(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected counter type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// SetStock overwrites the stock counter of a newly listed item.
func (r *RedisAdapter) SetStock(ctx context.Context, itemID int64, stock int64) error {
	if err := r.client.Set(ctx, stockKey(itemID), stock, 0).Err(); err != nil {
		return domain.NewStoreError("redis set stock", err)
	}
	return nil
}

// SeedStock writes both counters only when Redis holds no stock for the item,
// so counters that already moved are never reset. Reports whether it wrote.
func (r *RedisAdapter) SeedStock(ctx context.Context, itemID int64, stock int64, sales int64) (bool, error) {
	seeded, err := seedLedgerScript.Run(ctx, r.client, []string{stockKey(itemID), salesKey(itemID)}, stock, sales).Int()
	if err != nil {
		return false, domain.NewStoreError("redis seed stock", err)
	}
	return seeded == 1, nil
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, *domain.Receipt, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, pendingMarker, r.idempotencyTTL).Result()
	if err != nil {
		return false, nil, domain.NewStoreError("redis claim idempotency key", err)
	}
	if ok {
		return true, nil, nil
	}

	val, err := r.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; the caller may retry
		return false, nil, nil
	}
	if err != nil {
		return false, nil, domain.NewStoreError("redis read idempotency key", err)
	}
	if val == pendingMarker {
		return false, nil, nil
	}

	var receipt domain.Receipt
	if err := json.Unmarshal([]byte(val), &receipt); err != nil {
		return false, nil, fmt.Errorf("decode stored receipt: %w", err)
	}
	return false, &receipt, nil
}

func (r *RedisAdapter) Complete(ctx context.Context, key string, receipt domain.Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := r.client.Set(ctx, idempotencyKeyPrefix+key, data, r.idempotencyTTL).Err(); err != nil {
		return domain.NewStoreError("redis complete idempotency key", err)
	}
	return nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return domain.NewStoreError("redis release idempotency key", err)
	}
	return nil
}
