package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/PJB0911/SecKill-i/internal/core/domain"
)

// SQLAdapter stores the catalog and the stock ledger in MySQL (or SQLite,
// which accepts the same statements). Timestamps are unix milliseconds.
type SQLAdapter struct {
	db *sql.DB
}

func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// checkQuantity guards every ledger adapter: a non-positive quantity would
// turn a decrement into a restock.
func checkQuantity(quantity int64) error {
	if quantity <= 0 {
		return domain.Invalidf("quantity must be positive, got %d", quantity)
	}
	return nil
}

func (s *SQLAdapter) CreateItem(ctx context.Context, item domain.Item, stock int64) (int64, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.NewStoreError("begin tx", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO items (title, description, price, img_url, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		item.Title, item.Description, item.Price, item.ImgURL, toMillis(item.CreatedAt),
	)
	if err != nil {
		return 0, domain.NewStoreError("insert item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, domain.NewStoreError("read item id", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO item_stock (item_id, stock, sales) VALUES (?, ?, 0)`,
		id, stock,
	)
	if err != nil {
		return 0, domain.NewStoreError("insert item stock", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, domain.NewStoreError("commit item", err)
	}
	return id, nil
}

func (s *SQLAdapter) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	var item domain.Item
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, price, img_url, created_at
		FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.Description, &item.Price, &item.ImgURL, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("query item", err)
	}

	item.CreatedAt = fromMillis(createdAt)
	return &item, nil
}

func (s *SQLAdapter) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, price, img_url, created_at
		FROM items ORDER BY id`)
	if err != nil {
		return nil, domain.NewStoreError("query items", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Price, &item.ImgURL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("iterate items", err)
	}
	return items, nil
}

func (s *SQLAdapter) GetPromoByItemID(ctx context.Context, itemID int64) (*domain.Promo, error) {
	var p domain.Promo
	var startAt, endAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, name, start_at, end_at, price
		FROM promos WHERE item_id = ?
		ORDER BY end_at DESC, id DESC LIMIT 1`, itemID,
	).Scan(&p.ID, &p.ItemID, &p.Name, &startAt, &endAt, &p.Price)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStoreError("query promo", err)
	}

	p.StartAt = fromMillis(startAt)
	p.EndAt = fromMillis(endAt)
	return &p, nil
}

func (s *SQLAdapter) CreatePromo(ctx context.Context, promo domain.Promo) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO promos (item_id, name, start_at, end_at, price)
		VALUES (?, ?, ?, ?, ?)`,
		promo.ItemID, promo.Name, toMillis(promo.StartAt), toMillis(promo.EndAt), promo.Price,
	)
	if err != nil {
		return 0, domain.NewStoreError("insert promo", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, domain.NewStoreError("read promo id", err)
	}
	return id, nil
}

// TryDecrement is a single conditional UPDATE; the WHERE guard is what keeps
// concurrent buyers from overselling.
func (s *SQLAdapter) TryDecrement(ctx context.Context, itemID int64, quantity int64) (bool, error) {
	if err := checkQuantity(quantity); err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE item_stock
		SET stock = stock - ?
		WHERE item_id = ? AND stock >= ?`,
		quantity, itemID, quantity,
	)
	if err != nil {
		return false, domain.NewStoreError("decrement stock", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, domain.NewStoreError("decrement stock rows", err)
	}
	if rows > 0 {
		return true, nil
	}

	// Nothing was decremented; only tell a missing row apart from short stock.
	if err := s.stockRowExists(ctx, itemID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLAdapter) stockRowExists(ctx context.Context, itemID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM item_stock WHERE item_id = ?`, itemID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrItemNotFound
	}
	if err != nil {
		return domain.NewStoreError("query stock row", err)
	}
	return nil
}

func (s *SQLAdapter) RecordSale(ctx context.Context, itemID int64, quantity int64) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE item_stock SET sales = sales + ? WHERE item_id = ?`,
		quantity, itemID,
	)
	if err != nil {
		return domain.NewStoreError("increase sales", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStoreError("increase sales rows", err)
	}
	if rows == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (s *SQLAdapter) GetStock(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	rec := domain.StockRecord{ItemID: itemID}
	err := s.db.QueryRowContext(ctx, `
		SELECT stock, sales FROM item_stock WHERE item_id = ?`, itemID,
	).Scan(&rec.Stock, &rec.Sales)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("query stock", err)
	}
	return &rec, nil
}

func (s *SQLAdapter) SaveReceipt(ctx context.Context, r domain.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, idempotency_key, user_id, item_id, amount, unit_price, promo_id, purchased_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.IdempotencyKey, r.UserID, r.ItemID, r.Amount, r.UnitPrice, r.PromoID, toMillis(r.PurchasedAt),
	)
	if err != nil {
		return domain.NewStoreError("insert receipt", err)
	}
	return nil
}
