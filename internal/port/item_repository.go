package port

import (
	"context"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

type ItemRepository interface {
	// CreateItem inserts the item and its stock row in one transaction and
	// returns the assigned ID.
	CreateItem(ctx context.Context, item domain.Item, stock int64) (int64, error)

	// GetItem returns domain.ErrItemNotFound for an unknown ID
	GetItem(ctx context.Context, id int64) (*domain.Item, error)

	ListItems(ctx context.Context) ([]domain.Item, error)
}

type PromoRepository interface {
	// GetPromoByItemID returns the most recent promotion of the item, or nil
	// when none was ever configured.
	GetPromoByItemID(ctx context.Context, itemID int64) (*domain.Promo, error)

	CreatePromo(ctx context.Context, promo domain.Promo) (int64, error)
}

type ReceiptRepository interface {
	SaveReceipt(ctx context.Context, receipt domain.Receipt) error
}
