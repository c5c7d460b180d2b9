package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

func morningPromo(itemID int64) domain.Promo {
	return domain.Promo{
		ItemID:  itemID,
		Name:    "morning",
		StartAt: tenAM,
		EndAt:   tenAM.Add(5 * time.Minute),
		Price:   decimal.RequireFromString("9.99"),
	}
}

func TestPromoService_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createItem(t, "19.99", 5)

	p, err := f.promos.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p, "no promotion yet")

	created, err := f.promos.CreatePromo(ctx, morningPromo(id))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	tests := []struct {
		name    string
		now     time.Time
		wantNil bool
	}{
		{"upcoming", tenAM.Add(-time.Minute), false},
		{"active", tenAM.Add(3 * time.Minute), false},
		{"ended", tenAM.Add(5 * time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.promos.ResolveAt(ctx, id, tt.now)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, p)
			} else {
				require.NotNil(t, p)
				assert.Equal(t, created.ID, p.ID)
			}
		})
	}
}

func TestPromoService_CreatePromo_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createItem(t, "19.99", 5)

	_, err := f.promos.CreatePromo(ctx, morningPromo(id+1))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	tooExpensive := morningPromo(id)
	tooExpensive.Price = decimal.RequireFromString("25.00")
	_, err = f.promos.CreatePromo(ctx, tooExpensive)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.promos.CreatePromo(ctx, morningPromo(id))
	require.NoError(t, err)

	_, err = f.promos.CreatePromo(ctx, morningPromo(id))
	assert.ErrorIs(t, err, domain.ErrValidation, "an item has at most one live promotion")
}

func TestPromoService_CreatePromo_AfterPreviousEnded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createItem(t, "19.99", 5)

	_, err := f.promos.CreatePromo(ctx, morningPromo(id))
	require.NoError(t, err)

	f.clock.Set(tenAM.Add(10 * time.Minute))
	next := morningPromo(id)
	next.StartAt = tenAM.Add(time.Hour)
	next.EndAt = tenAM.Add(2 * time.Hour)
	second, err := f.promos.CreatePromo(ctx, next)
	require.NoError(t, err)

	p, err := f.promos.Resolve(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, second.ID, p.ID)
}
