package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStoreError_IsTransient(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("stock decrement failed: %w", NewStoreError("decrement stock", cause))

	assert.ErrorIs(t, err, ErrTransientStore)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrItemNotFound)
	assert.Contains(t, err.Error(), "decrement stock")
}

func TestInvalidf(t *testing.T) {
	err := Invalidf("amount %d too large", 7)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "amount 7 too large")
}

func TestPurchaseRequestValidate(t *testing.T) {
	assert.NoError(t, PurchaseRequest{ItemID: 1, Amount: 1}.Validate())
	assert.ErrorIs(t, PurchaseRequest{ItemID: 0, Amount: 1}.Validate(), ErrValidation)
	assert.ErrorIs(t, PurchaseRequest{ItemID: 1, Amount: 0}.Validate(), ErrValidation)
	assert.ErrorIs(t, PurchaseRequest{ItemID: 1, Amount: -2}.Validate(), ErrValidation)
}

func TestItemValidate(t *testing.T) {
	assert.NoError(t, Item{Title: "phone", Price: decimal.Zero}.Validate())
	assert.ErrorIs(t, Item{Price: decimal.NewFromInt(1)}.Validate(), ErrValidation)
	assert.ErrorIs(t, Item{Title: "phone", Price: decimal.NewFromInt(-1)}.Validate(), ErrValidation)
}

func TestItemValidate_PriceScale(t *testing.T) {
	assert.NoError(t, Item{Title: "phone", Price: decimal.RequireFromString("19.99")}.Validate())
	assert.NoError(t, Item{Title: "phone", Price: decimal.RequireFromString("19.900")}.Validate())

	err := Item{Title: "phone", Price: decimal.RequireFromString("19.999")}.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "decimal places")
}

func TestReceiptTotal(t *testing.T) {
	r := Receipt{Amount: 3, UnitPrice: decimal.RequireFromString("9.99")}
	assert.Equal(t, "29.97", r.Total().String())
}
