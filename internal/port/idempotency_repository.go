package port

import (
	"context"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

type IdempotencyRepository interface {
	// Claim marks key as in flight. It returns claimed=false when the key was
	// already claimed, together with the stored receipt if that attempt completed.
	Claim(ctx context.Context, key string) (claimed bool, existing *domain.Receipt, err error)

	// Complete stores the receipt of a claimed key.
	Complete(ctx context.Context, key string, receipt domain.Receipt) error

	// Release forgets a claimed key whose attempt definitely did not reserve stock.
	Release(ctx context.Context, key string) error
}
