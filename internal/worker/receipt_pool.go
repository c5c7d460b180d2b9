package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/port"
)

// ReceiptPool persists receipts drained from the purchase queue. A failed
// write is logged and dropped; the stock stays reserved.
type ReceiptPool struct {
	repo         port.ReceiptRepository
	logger       *zap.Logger
	workers      int
	writeTimeout time.Duration
	wg           sync.WaitGroup
}

func NewReceiptPool(repo port.ReceiptRepository, logger *zap.Logger, workers int, writeTimeout time.Duration) *ReceiptPool {
	if workers < 1 {
		workers = 1
	}
	return &ReceiptPool{
		repo:         repo,
		logger:       logger,
		workers:      workers,
		writeTimeout: writeTimeout,
	}
}

// Start launches the workers. They exit once queue is closed and drained.
func (p *ReceiptPool) Start(queue <-chan domain.Receipt) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.loop(id, queue)
		}(i)
	}
	p.logger.Info("receipt workers started", zap.Int("workers", p.workers))
}

func (p *ReceiptPool) Wait() {
	p.wg.Wait()
}

func (p *ReceiptPool) loop(id int, queue <-chan domain.Receipt) {
	for receipt := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)

		if err := p.repo.SaveReceipt(ctx, receipt); err != nil {
			p.logger.Error("failed to save receipt",
				zap.Int("worker", id),
				zap.String("receipt_id", receipt.ID),
				zap.Int64("item_id", receipt.ItemID),
				zap.Error(err))
		} else {
			p.logger.Debug("saved receipt", zap.Int("worker", id), zap.String("receipt_id", receipt.ID))
		}

		cancel()
	}
}
