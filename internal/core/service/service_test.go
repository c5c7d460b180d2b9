package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PJB0911/SecKill-i/internal/adapter/storage"
	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/port"
)

var tenAM = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// flakyLedger fails the configured ledger calls and delegates the rest.
// afterDecrement runs once a decrement went through.
type flakyLedger struct {
	port.StockLedger
	decrementErr   error
	recordErr      error
	afterDecrement func()
}

func (l *flakyLedger) TryDecrement(ctx context.Context, itemID int64, quantity int64) (bool, error) {
	if l.decrementErr != nil {
		return false, l.decrementErr
	}
	ok, err := l.StockLedger.TryDecrement(ctx, itemID, quantity)
	if ok && l.afterDecrement != nil {
		l.afterDecrement()
	}
	return ok, err
}

func (l *flakyLedger) RecordSale(ctx context.Context, itemID int64, quantity int64) error {
	if l.recordErr != nil {
		return l.recordErr
	}
	return l.StockLedger.RecordSale(ctx, itemID, quantity)
}

// gatedCatalog holds GetItem until release is closed and reports the ctx
// error it saw by then.
type gatedCatalog struct {
	port.ItemRepository
	entered chan struct{}
	release chan struct{}
	seenErr chan error
}

func newGatedCatalog(repo port.ItemRepository) *gatedCatalog {
	return &gatedCatalog{
		ItemRepository: repo,
		entered:        make(chan struct{}, 1),
		release:        make(chan struct{}),
		seenErr:        make(chan error, 1),
	}
}

func (g *gatedCatalog) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	g.entered <- struct{}{}
	<-g.release
	g.seenErr <- ctx.Err()
	return g.ItemRepository.GetItem(ctx, id)
}

type fixture struct {
	clock  *fakeClock
	store  *storage.MemoryAdapter
	ledger *flakyLedger
	promos *PromoService
	items  *ItemService
	orders *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := &fakeClock{now: tenAM.Add(-time.Hour)}
	store := storage.NewMemoryAdapter()
	ledger := &flakyLedger{StockLedger: store}

	promos := NewPromoService(store, store, clock.Now)
	items := NewItemService(store, store, promos, logger)
	orders := NewOrderService(items, ledger, store, logger, 64)
	t.Cleanup(orders.Close)

	return &fixture{clock: clock, store: store, ledger: ledger, promos: promos, items: items, orders: orders}
}

func (f *fixture) createItem(t *testing.T, price string, stock int64) int64 {
	t.Helper()
	view, err := f.items.CreateItem(context.Background(), domain.Item{
		Title:       "phone",
		Description: "flagship",
		Price:       decimal.RequireFromString(price),
	}, stock)
	require.NoError(t, err)
	return view.ID
}

func (f *fixture) stock(t *testing.T, itemID int64) domain.StockRecord {
	t.Helper()
	rec, err := f.store.GetStock(context.Background(), itemID)
	require.NoError(t, err)
	return *rec
}
