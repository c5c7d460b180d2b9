package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromoStatus int

// Numeric values are part of the wire format.
const (
	PromoStatusNone       PromoStatus = 0
	PromoStatusNotStarted PromoStatus = 1
	PromoStatusActive     PromoStatus = 2
	PromoStatusEnded      PromoStatus = 3
)

func (s PromoStatus) String() string {
	switch s {
	case PromoStatusNotStarted:
		return "not_started"
	case PromoStatusActive:
		return "active"
	case PromoStatusEnded:
		return "ended"
	default:
		return "none"
	}
}

type Promo struct {
	ID      int64
	ItemID  int64
	Name    string
	StartAt time.Time
	EndAt   time.Time
	Price   decimal.Decimal
}

// StatusAt derives the promotion status for the instant now.
// The active window is [StartAt, EndAt).
func (p Promo) StatusAt(now time.Time) PromoStatus {
	switch {
	case now.Before(p.StartAt):
		return PromoStatusNotStarted
	case now.Before(p.EndAt):
		return PromoStatusActive
	default:
		return PromoStatusEnded
	}
}

// Validate checks the promotion against the base price of its item.
func (p Promo) Validate(basePrice decimal.Decimal) error {
	if p.ItemID <= 0 {
		return Invalidf("item id must be positive")
	}
	if !p.EndAt.After(p.StartAt) {
		return Invalidf("promo end must be after start")
	}
	if err := checkPrice("promo price", p.Price); err != nil {
		return err
	}
	if p.Price.GreaterThan(basePrice) {
		return Invalidf("promo price %s exceeds item price %s", p.Price, basePrice)
	}
	return nil
}
