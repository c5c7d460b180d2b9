package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

func TestMemoryTryDecrement_Concurrent(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	id, err := m.CreateItem(ctx, domain.Item{Title: "phone", Price: decimal.NewFromInt(100)}, 20)
	require.NoError(t, err)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := m.TryDecrement(ctx, id, 1); err == nil && ok {
				successCount.Add(1)
				m.RecordSale(ctx, id, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), successCount.Load())
	rec, err := m.GetStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Stock)
	assert.Equal(t, int64(20), rec.Sales)
}

func TestMemoryTryDecrement_UnknownItem(t *testing.T) {
	m := NewMemoryAdapter()

	_, err := m.TryDecrement(context.Background(), 9, 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.ErrorIs(t, m.RecordSale(context.Background(), 9, 1), domain.ErrItemNotFound)
}

func TestMemoryLedger_RejectsNonPositiveQuantity(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	id, err := m.CreateItem(ctx, domain.Item{Title: "phone", Price: decimal.NewFromInt(100)}, 5)
	require.NoError(t, err)

	for _, q := range []int64{0, -3} {
		ok, err := m.TryDecrement(ctx, id, q)
		assert.False(t, ok)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, m.RecordSale(ctx, id, q), domain.ErrValidation)
	}

	rec, err := m.GetStock(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Stock)
	assert.Equal(t, int64(0), rec.Sales)
}

func TestMemoryGetPromoByItemID_LatestEnding(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	p, err := m.GetPromoByItemID(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = m.CreatePromo(ctx, domain.Promo{ItemID: 1, StartAt: base, EndAt: base.Add(time.Hour)})
	require.NoError(t, err)
	later, err := m.CreatePromo(ctx, domain.Promo{ItemID: 1, StartAt: base.Add(2 * time.Hour), EndAt: base.Add(3 * time.Hour)})
	require.NoError(t, err)

	p, err = m.GetPromoByItemID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, later, p.ID)
}

func TestMemoryIdempotency(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	claimed, _, _ := m.Claim(ctx, "k")
	assert.True(t, claimed)
	claimed, existing, _ := m.Claim(ctx, "k")
	assert.False(t, claimed)
	assert.Nil(t, existing)

	require.NoError(t, m.Complete(ctx, "k", domain.Receipt{ID: "r"}))
	_, existing, _ = m.Claim(ctx, "k")
	require.NotNil(t, existing)
	assert.Equal(t, "r", existing.ID)

	require.NoError(t, m.Release(ctx, "k"))
	claimed, _, _ = m.Claim(ctx, "k")
	assert.True(t, claimed)
}
