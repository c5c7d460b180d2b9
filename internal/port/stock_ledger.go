package port

import (
	"context"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

// StockLedger owns the stock and sales counters of every item.
type StockLedger interface {
	// TryDecrement atomically reserves quantity units if at least that many
	// remain. It returns false, with nothing changed, when stock is short.
	TryDecrement(ctx context.Context, itemID int64, quantity int64) (bool, error)

	// RecordSale increases the sold counter. Only called after a successful TryDecrement.
	RecordSale(ctx context.Context, itemID int64, quantity int64) error

	// GetStock reads the current ledger row
	GetStock(ctx context.Context, itemID int64) (*domain.StockRecord, error)
}

// StockSeeder is implemented by ledgers that live outside the catalog store
// and must be told about newly listed items.
type StockSeeder interface {
	SetStock(ctx context.Context, itemID int64, stock int64) error
}
