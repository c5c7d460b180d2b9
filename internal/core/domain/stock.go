package domain

// StockRecord is the ledger row of an item. Stock is never negative and Sales
// only grows.
type StockRecord struct {
	ItemID int64
	Stock  int64
	Sales  int64
}
