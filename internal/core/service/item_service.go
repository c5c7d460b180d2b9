package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
	"github.com/PJB0911/SecKill-i/internal/port"
)

const viewBuildTimeout = 5 * time.Second

// ItemService builds read views of items and lists new ones.
type ItemService struct {
	items  port.ItemRepository
	ledger port.StockLedger
	promos *PromoService
	logger *zap.Logger
	sfg    singleflight.Group // collapses concurrent view builds of a hot item
}

func NewItemService(items port.ItemRepository, ledger port.StockLedger, promos *PromoService, logger *zap.Logger) *ItemService {
	return &ItemService{
		items:  items,
		ledger: ledger,
		promos: promos,
		logger: logger,
	}
}

// Quote is the price a purchase pays at a given instant.
type Quote struct {
	UnitPrice decimal.Decimal
	PromoID   int64
}

// CreateItem lists an item together with its initial stock.
func (s *ItemService) CreateItem(ctx context.Context, item domain.Item, stock int64) (*domain.ItemView, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, domain.Invalidf("stock must not be negative")
	}

	id, err := s.items.CreateItem(ctx, item, stock)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	if seeder, ok := s.ledger.(port.StockSeeder); ok {
		if err := seeder.SetStock(ctx, id, stock); err != nil {
			return nil, fmt.Errorf("seed stock of item %d: %w", id, err)
		}
	}

	s.logger.Info("item listed", zap.Int64("item_id", id), zap.Int64("stock", stock))
	return s.BuildView(ctx, id)
}

// BuildView returns a snapshot of the item, its ledger counters and its
// active or upcoming promotion. Staleness is fine for display only.
//
// Concurrent builds of one item share a single load, which runs detached from
// any one caller's cancellation; each caller still stops waiting on its own ctx.
func (s *ItemService) BuildView(ctx context.Context, itemID int64) (*domain.ItemView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := s.sfg.DoChan(strconv.FormatInt(itemID, 10), func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(shared, viewBuildTimeout)
		defer cancel()
		return s.buildView(buildCtx, itemID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		view := *res.Val.(*domain.ItemView)
		return &view, nil
	}
}

func (s *ItemService) ListItems(ctx context.Context) ([]domain.ItemView, error) {
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	views := make([]domain.ItemView, 0, len(items))
	for _, item := range items {
		view, err := s.compose(ctx, item)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *ItemService) buildView(ctx context.Context, itemID int64) (*domain.ItemView, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.compose(ctx, *item)
}

func (s *ItemService) compose(ctx context.Context, item domain.Item) (*domain.ItemView, error) {
	stock, err := s.ledger.GetStock(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("get stock of item %d: %w", item.ID, err)
	}

	view := &domain.ItemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Price:       item.Price,
		ImgURL:      item.ImgURL,
		Stock:       stock.Stock,
		Sales:       stock.Sales,
		Promo:       domain.PromoView{Status: domain.PromoStatusNone},
	}

	now := s.promos.now()
	promo, err := s.promos.ResolveAt(ctx, item.ID, now)
	if err != nil {
		return nil, err
	}
	if promo != nil {
		view.Promo = domain.PromoView{
			Status:  promo.StatusAt(now),
			ID:      promo.ID,
			StartAt: promo.StartAt,
			Price:   promo.Price,
		}
	}
	return view, nil
}

// PriceAt returns the unit price of itemID at now. The promotional price
// applies only while the promotion is active.
func (s *ItemService) PriceAt(ctx context.Context, itemID int64, now time.Time) (Quote, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return Quote{}, err
	}

	promo, err := s.promos.ResolveAt(ctx, itemID, now)
	if err != nil {
		return Quote{}, err
	}
	if promo == nil || promo.StatusAt(now) != domain.PromoStatusActive {
		return Quote{UnitPrice: item.Price}, nil
	}

	if promo.Price.GreaterThan(item.Price) {
		return Quote{}, domain.Invalidf("promo %d price %s exceeds item price %s", promo.ID, promo.Price, item.Price)
	}
	return Quote{UnitPrice: promo.Price, PromoID: promo.ID}, nil
}
