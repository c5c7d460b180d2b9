package handler

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/PJB0911/SecKill-i/internal/adapter/storage"
	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/core/service"
	"github.com/PJB0911/SecKill-i/internal/worker"
)

// testEnv wires the real services over SQLite and an in-process Redis.
type testEnv struct {
	db     *storage.SQLAdapter
	cache  *storage.RedisAdapter
	promos *service.PromoService
	items  *service.ItemService
	orders *service.OrderService
	pool   *worker.ReceiptPool
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, storage.Migrate(sqlDB, storage.DialectSQLite))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := storage.NewSQLAdapter(sqlDB)
	cache := storage.NewRedisAdapter(rdb, time.Minute)

	promos := service.NewPromoService(db, db, nil)
	items := service.NewItemService(db, db, promos, logger)
	orders := service.NewOrderService(items, db, cache, logger, 128)

	pool := worker.NewReceiptPool(db, logger, 2, time.Second)
	pool.Start(orders.GetReceiptQueue())
	t.Cleanup(func() {
		orders.Close()
		pool.Wait()
	})

	return &testEnv{db: db, cache: cache, promos: promos, items: items, orders: orders, pool: pool}
}

func (e *testEnv) createItem(t *testing.T, price string, stock int64) int64 {
	t.Helper()
	view, err := e.items.CreateItem(context.Background(), domain.Item{
		Title: "phone",
		Price: decimal.RequireFromString(price),
	}, stock)
	require.NoError(t, err)
	return view.ID
}
