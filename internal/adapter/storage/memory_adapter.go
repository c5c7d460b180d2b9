package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

// stockCell guards one item's counters with its own lock so unrelated items
// never contend.
type stockCell struct {
	mu    sync.Mutex
	stock int64
	sales int64
}

// MemoryAdapter keeps the catalog, the ledger and idempotency keys in process.
// It backs tests and single-process deployments without Redis or MySQL.
type MemoryAdapter struct {
	mu          sync.RWMutex
	nextItemID  int64
	nextPromoID int64
	items       map[int64]domain.Item
	promos      map[int64][]domain.Promo
	stocks      map[int64]*stockCell
	receipts    []domain.Receipt
	keys        map[string]*domain.Receipt
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		nextItemID:  1,
		nextPromoID: 1,
		items:       make(map[int64]domain.Item),
		promos:      make(map[int64][]domain.Promo),
		stocks:      make(map[int64]*stockCell),
		keys:        make(map[string]*domain.Receipt),
	}
}

func (m *MemoryAdapter) CreateItem(_ context.Context, item domain.Item, stock int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item.ID = m.nextItemID
	m.nextItemID++
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	m.items[item.ID] = item
	m.stocks[item.ID] = &stockCell{stock: stock}
	return item.ID, nil
}

func (m *MemoryAdapter) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (m *MemoryAdapter) ListItems(_ context.Context) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) GetPromoByItemID(_ context.Context, itemID int64) (*domain.Promo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	promos := m.promos[itemID]
	if len(promos) == 0 {
		return nil, nil
	}
	latest := promos[0]
	for _, p := range promos[1:] {
		if p.EndAt.After(latest.EndAt) || (p.EndAt.Equal(latest.EndAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	return &latest, nil
}

func (m *MemoryAdapter) CreatePromo(_ context.Context, promo domain.Promo) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	promo.ID = m.nextPromoID
	m.nextPromoID++
	m.promos[promo.ItemID] = append(m.promos[promo.ItemID], promo)
	return promo.ID, nil
}

func (m *MemoryAdapter) cell(itemID int64) (*stockCell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.stocks[itemID]
	return c, ok
}

// TryDecrement runs the read-modify-write under the item's own lock.
func (m *MemoryAdapter) TryDecrement(_ context.Context, itemID int64, quantity int64) (bool, error) {
	if err := checkQuantity(quantity); err != nil {
		return false, err
	}
	c, ok := m.cell(itemID)
	if !ok {
		return false, domain.ErrItemNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stock < quantity {
		return false, nil
	}
	c.stock -= quantity
	return true, nil
}

func (m *MemoryAdapter) RecordSale(_ context.Context, itemID int64, quantity int64) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	c, ok := m.cell(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}

	c.mu.Lock()
	c.sales += quantity
	c.mu.Unlock()
	return nil
}

func (m *MemoryAdapter) GetStock(_ context.Context, itemID int64) (*domain.StockRecord, error) {
	c, ok := m.cell(itemID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return &domain.StockRecord{ItemID: itemID, Stock: c.stock, Sales: c.sales}, nil
}

func (m *MemoryAdapter) SaveReceipt(_ context.Context, receipt domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, receipt)
	return nil
}

// Receipts returns a copy of every persisted receipt.
func (m *MemoryAdapter) Receipts() []domain.Receipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Receipt(nil), m.receipts...)
}

func (m *MemoryAdapter) Claim(_ context.Context, key string) (bool, *domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.keys[key]
	if ok {
		if existing == nil {
			return false, nil, nil
		}
		r := *existing
		return false, &r, nil
	}
	m.keys[key] = nil
	return true, nil, nil
}

func (m *MemoryAdapter) Complete(_ context.Context, key string, receipt domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = &receipt
	return nil
}

func (m *MemoryAdapter) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
