package service

import (
	"context"
	"errors"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the inventory ledger.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("not enough stock")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrNegativeStock     = errors.New("stock must be >= 0")
)

// LedgerStore defines the DB methods the ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type LedgerStore interface {
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	ReserveProductStock(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error)
	ReleaseProductStock(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error)
	SetProductStock(ctx context.Context, arg database.SetProductStockParams) (database.Product, error)
}

// Ledger owns product stock counts. All mutations go through conditional
// updates in the storage layer, so concurrent callers cannot oversell; the
// ledger never does read-modify-write on stock.
type Ledger struct {
	store LedgerStore
}

// NewLedger creates a Ledger over the given store. Pass a transaction-bound
// store to make ledger calls part of a larger atomic operation.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// Reserve decrements stock by qty and returns the product with its current
// name and price, the snapshot an order line is built from. Fails with
// ErrProductNotFound when no product matches (productID, ownerEmail) and
// ErrInsufficientStock when fewer than qty units are on hand.
func (l *Ledger) Reserve(ctx context.Context, productID uuid.UUID, ownerEmail string, qty int32) (database.Product, error) {
	if qty <= 0 {
		return database.Product{}, ErrInvalidQuantity
	}

	p, err := l.store.ReserveProductStock(ctx, database.ReserveProductStockParams{
		ID:         productID,
		OwnerEmail: ownerEmail,
		Quantity:   qty,
	})
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Product{}, err
	}

	// The conditional update matched nothing: either the product does not
	// exist for this tenant, or stock is short. Look it up to tell the two
	// apart.
	if _, gerr := l.store.GetProduct(ctx, database.GetProductParams{
		ID:         productID,
		OwnerEmail: ownerEmail,
	}); gerr != nil {
		if errors.Is(gerr, pgx.ErrNoRows) {
			return database.Product{}, ErrProductNotFound
		}
		return database.Product{}, gerr
	}
	return database.Product{}, ErrInsufficientStock
}

// Release puts qty units back, used when a bill line is removed or a pending
// order is cancelled.
func (l *Ledger) Release(ctx context.Context, productID uuid.UUID, ownerEmail string, qty int32) (database.Product, error) {
	if qty <= 0 {
		return database.Product{}, ErrInvalidQuantity
	}

	p, err := l.store.ReleaseProductStock(ctx, database.ReleaseProductStockParams{
		ID:         productID,
		OwnerEmail: ownerEmail,
		Quantity:   qty,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Product{}, ErrProductNotFound
		}
		return database.Product{}, err
	}
	return p, nil
}

// SetStock overwrites the stock count, for manual corrections and restocking.
func (l *Ledger) SetStock(ctx context.Context, productID uuid.UUID, ownerEmail string, stock int32) (database.Product, error) {
	if stock < 0 {
		return database.Product{}, ErrNegativeStock
	}

	p, err := l.store.SetProductStock(ctx, database.SetProductStockParams{
		ID:         productID,
		OwnerEmail: ownerEmail,
		Stock:      stock,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Product{}, ErrProductNotFound
		}
		return database.Product{}, err
	}
	return p, nil
}
