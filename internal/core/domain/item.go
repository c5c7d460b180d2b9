package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places a stored price keeps.
const PriceScale = 2

func checkPrice(field string, price decimal.Decimal) error {
	if price.IsNegative() {
		return Invalidf("%s must not be negative", field)
	}
	if !price.Equal(price.Truncate(PriceScale)) {
		return Invalidf("%s %s has more than %d decimal places", field, price, PriceScale)
	}
	return nil
}

type Item struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	ImgURL      string
	CreatedAt   time.Time
}

// Validate checks the fields required to list an item.
func (i Item) Validate() error {
	if i.Title == "" {
		return Invalidf("title is required")
	}
	return checkPrice("price", i.Price)
}

// ItemView is a point-in-time snapshot of an item, its stock and its promotion.
type ItemView struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	ImgURL      string
	Stock       int64
	Sales       int64
	Promo       PromoView
}

// PromoView carries the promotion overlay of an ItemView. Status is
// PromoStatusNone when there is no active or upcoming promotion.
type PromoView struct {
	Status  PromoStatus
	ID      int64
	StartAt time.Time
	Price   decimal.Decimal
}

func (v ItemView) HasPromo() bool {
	return v.Promo.Status != PromoStatusNone
}
