package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseRequest struct {
	IdempotencyKey string
	UserID         string
	ItemID         int64
	Amount         int64
}

func (r PurchaseRequest) Validate() error {
	if r.ItemID <= 0 {
		return Invalidf("item id must be positive")
	}
	if r.Amount <= 0 {
		return Invalidf("amount must be positive")
	}
	return nil
}

// Receipt confirms a stock reservation and the unit price charged for it.
type Receipt struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	UserID         string          `json:"user_id"`
	ItemID         int64           `json:"item_id"`
	Amount         int64           `json:"amount"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	PromoID        int64           `json:"promo_id,omitempty"` // 0 when sold at base price
	PurchasedAt    time.Time       `json:"purchased_at"`
}

func (r Receipt) Total() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(r.Amount))
}
