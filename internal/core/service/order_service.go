package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/port"
)

const claimWriteTimeout = 2 * time.Second

// OrderService reserves stock for purchases and queues their receipts for
// persistence.
type OrderService struct {
	items        *ItemService
	ledger       port.StockLedger
	idempotency  port.IdempotencyRepository
	now          Clock
	receiptQueue chan domain.Receipt
	closeOnce    sync.Once
	logger       *zap.Logger
	tracer       trace.Tracer
}

// NewOrderService wires the orchestrator. idempotency may be nil, in which case
// request IDs are ignored.
func NewOrderService(items *ItemService, ledger port.StockLedger, idempotency port.IdempotencyRepository, logger *zap.Logger, queueSize int) *OrderService {
	return &OrderService{
		items:        items,
		ledger:       ledger,
		idempotency:  idempotency,
		now:          items.promos.now,
		receiptQueue: make(chan domain.Receipt, queueSize),
		logger:       logger,
		tracer:       otel.Tracer("seckill/order"),
	}
}

// Purchase reserves req.Amount units of the item and returns the receipt.
//
// A request carrying an IdempotencyKey that already completed returns the
// original receipt; one whose earlier attempt has an unknown outcome fails
// with domain.ErrPurchasePending instead of reserving stock a second time.
func (s *OrderService) Purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "order.purchase",
		trace.WithAttributes(
			attribute.Int64("item.id", req.ItemID),
			attribute.Int64("purchase.amount", req.Amount),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	useKey := req.IdempotencyKey != "" && s.idempotency != nil
	if useKey {
		claimed, existing, err := s.idempotency.Claim(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if existing != nil {
			span.SetAttributes(attribute.Bool("purchase.replayed", true))
			return existing, nil
		}
		if !claimed {
			return nil, domain.ErrPurchasePending
		}
	}

	receipt, outcomeUnknown, err := s.purchase(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if useKey {
			s.settleFailedClaim(ctx, req.IdempotencyKey, outcomeUnknown, err)
		}
		return nil, err
	}

	// Stock is reserved: the rest must not depend on the caller still waiting.
	if useKey {
		s.completeClaim(ctx, *receipt)
	}
	s.receiptQueue <- *receipt

	return receipt, nil
}

// purchase reports outcomeUnknown when the decrement may have been applied
// even though an error is returned.
func (s *OrderService) purchase(ctx context.Context, req domain.PurchaseRequest) (*domain.Receipt, bool, error) {
	now := s.now()

	quote, err := s.items.PriceAt(ctx, req.ItemID, now)
	if err != nil {
		return nil, false, err
	}

	ledgerCtx, span := s.tracer.Start(ctx, "ledger.try_decrement")
	ok, err := s.ledger.TryDecrement(ledgerCtx, req.ItemID, req.Amount)
	span.SetAttributes(attribute.Bool("ledger.decremented", ok))
	span.End()
	if err != nil {
		unknown := errors.Is(err, domain.ErrTransientStore)
		return nil, unknown, fmt.Errorf("stock decrement failed: %w", err)
	}
	if !ok {
		return nil, false, domain.ErrInsufficientStock
	}

	// The stock is reserved from here on; a failed counter update only leaves
	// the sales figure short. A caller that gave up must not cause one.
	if err := s.ledger.RecordSale(context.WithoutCancel(ctx), req.ItemID, req.Amount); err != nil {
		s.logger.Error("sales counter not updated, needs reconciliation",
			zap.Int64("item_id", req.ItemID), zap.Int64("amount", req.Amount), zap.Error(err))
	}

	return &domain.Receipt{
		ID:             uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		UserID:         req.UserID,
		ItemID:         req.ItemID,
		Amount:         req.Amount,
		UnitPrice:      quote.UnitPrice,
		PromoID:        quote.PromoID,
		PurchasedAt:    now,
	}, false, nil
}

func (s *OrderService) completeClaim(ctx context.Context, receipt domain.Receipt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), claimWriteTimeout)
	defer cancel()
	if err := s.idempotency.Complete(ctx, receipt.IdempotencyKey, receipt); err != nil {
		s.logger.Warn("failed to store receipt for request id",
			zap.String("request_id", receipt.IdempotencyKey), zap.String("receipt_id", receipt.ID), zap.Error(err))
	}
}

func (s *OrderService) settleFailedClaim(ctx context.Context, key string, outcomeUnknown bool, cause error) {
	if outcomeUnknown {
		s.logger.Warn("purchase outcome unknown, request id stays pending",
			zap.String("request_id", key), zap.Error(cause))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), claimWriteTimeout)
	defer cancel()
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("failed to release request id", zap.String("request_id", key), zap.Error(err))
	}
}

func (s *OrderService) GetReceiptQueue() <-chan domain.Receipt {
	return s.receiptQueue
}

// Close stops accepting receipts. Callers must stop issuing purchases first.
// A full queue blocks Purchase until a worker frees a slot.
func (s *OrderService) Close() {
	s.closeOnce.Do(func() { close(s.receiptQueue) })
}
