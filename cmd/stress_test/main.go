package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/PJB0911/SecKill-i/internal/adapter/storage"
	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	initialStock  = 20
	totalRequests = 500
	requestsPerS  = 2000
	burst         = 100
	queueSize     = 1000
)

func main() {
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	catalog := storage.NewMemoryAdapter()
	ledger := storage.NewRedisAdapter(rdb, time.Minute)
	logger := zap.NewNop()

	promos := service.NewPromoService(catalog, catalog, nil)
	items := service.NewItemService(catalog, ledger, promos, logger)
	orders := service.NewOrderService(items, ledger, ledger, logger, queueSize)
	defer orders.Close()

	view, err := items.CreateItem(ctx, domain.Item{
		Title: "stress item",
		Price: decimal.RequireFromString("19.99"),
	}, initialStock)
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}
	// The in-memory catalog restarts its IDs, so drop the sales counter a
	// previous run left behind.
	rdb.Del(ctx, fmt.Sprintf("sales:%d", view.ID))
	itemID := view.ID

	// Drain the receipt queue in background
	go func() {
		for range orders.GetReceiptQueue() {
		}
	}()

	limiter := rate.NewLimiter(rate.Limit(requestsPerS), burst)

	var successCount, soldOutCount, otherCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		if err := limiter.Wait(ctx); err != nil {
			log.Fatalf("limiter: %v", err)
		}
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := orders.Purchase(ctx, domain.PurchaseRequest{
				IdempotencyKey: fmt.Sprintf("stress-%d-%d", start.UnixNano(), userID),
				UserID:         fmt.Sprintf("user-%d", userID),
				ItemID:         itemID,
				Amount:         1,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d purchases succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	rec, err := ledger.GetStock(ctx, itemID)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	fmt.Printf("Final Stock: %d, Sales: %d\n", rec.Stock, rec.Sales)

	if rec.Stock == 0 && rec.Sales == int64(success) {
		fmt.Println("PASS: stock depleted to 0 and sales match receipts")
	} else {
		fmt.Printf("FAIL: expected stock 0 and sales %d\n", success)
	}
}
