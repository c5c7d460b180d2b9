package service

import (
	"context"
	"fmt"
	"time"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/port"
)

// Clock returns the current instant. A nil Clock means time.Now.
type Clock func() time.Time

// PromoService resolves which promotion, if any, applies to an item. Status is
// always derived from the clock at read time, never stored.
type PromoService struct {
	promos port.PromoRepository
	items  port.ItemRepository
	now    Clock
}

func NewPromoService(promos port.PromoRepository, items port.ItemRepository, clock Clock) *PromoService {
	if clock == nil {
		clock = time.Now
	}
	return &PromoService{promos: promos, items: items, now: clock}
}

// Resolve returns the promotion of itemID when it is active or not yet started,
// and nil when it has ended or none exists.
func (s *PromoService) Resolve(ctx context.Context, itemID int64) (*domain.Promo, error) {
	return s.ResolveAt(ctx, itemID, s.now())
}

func (s *PromoService) ResolveAt(ctx context.Context, itemID int64, now time.Time) (*domain.Promo, error) {
	promo, err := s.promos.GetPromoByItemID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get promo of item %d: %w", itemID, err)
	}
	if promo == nil || promo.StatusAt(now) == domain.PromoStatusEnded {
		return nil, nil
	}
	return promo, nil
}

// CreatePromo schedules a promotion. An item may have only one promotion that
// has not ended yet.
func (s *PromoService) CreatePromo(ctx context.Context, promo domain.Promo) (*domain.Promo, error) {
	item, err := s.items.GetItem(ctx, promo.ItemID)
	if err != nil {
		return nil, err
	}
	if err := promo.Validate(item.Price); err != nil {
		return nil, err
	}

	current, err := s.Resolve(ctx, promo.ItemID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, domain.Invalidf("item %d already has promotion %d scheduled", promo.ItemID, current.ID)
	}

	id, err := s.promos.CreatePromo(ctx, promo)
	if err != nil {
		return nil, fmt.Errorf("create promo: %w", err)
	}
	promo.ID = id
	return &promo, nil
}
