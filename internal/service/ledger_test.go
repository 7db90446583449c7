package service

import (
	"context"
	"errors"
	"testing"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// mockLedgerStore implements LedgerStore with configurable behavior.
type mockLedgerStore struct {
	getProductFn          func(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	reserveProductStockFn func(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error)
	releaseProductStockFn func(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error)
	setProductStockFn     func(ctx context.Context, arg database.SetProductStockParams) (database.Product, error)
}

func (m *mockLedgerStore) GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	return m.getProductFn(ctx, arg)
}
func (m *mockLedgerStore) ReserveProductStock(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
	return m.reserveProductStockFn(ctx, arg)
}
func (m *mockLedgerStore) ReleaseProductStock(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error) {
	return m.releaseProductStockFn(ctx, arg)
}
func (m *mockLedgerStore) SetProductStock(ctx context.Context, arg database.SetProductStockParams) (database.Product, error) {
	return m.setProductStockFn(ctx, arg)
}

func TestReserve_HappyPath(t *testing.T) {
	productID := uuid.New()
	var captured database.ReserveProductStockParams
	store := &mockLedgerStore{
		reserveProductStockFn: func(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
			captured = arg
			return database.Product{ID: arg.ID, OwnerEmail: arg.OwnerEmail, Name: "Dosa", Stock: 7}, nil
		},
	}

	p, err := NewLedger(store).Reserve(context.Background(), productID, "a@example.com", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Quantity != 3 {
		t.Errorf("reserve quantity: got %d, want 3", captured.Quantity)
	}
	if p.Stock != 7 {
		t.Errorf("returned stock: got %d, want 7", p.Stock)
	}
}

func TestReserve_InvalidQuantity(t *testing.T) {
	store := &mockLedgerStore{}
	_, err := NewLedger(store).Reserve(context.Background(), uuid.New(), "a@example.com", 0)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestReserve_ProductNotFound(t *testing.T) {
	store := &mockLedgerStore{
		reserveProductStockFn: func(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
			return database.Product{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
			return database.Product{}, pgx.ErrNoRows
		},
	}

	_, err := NewLedger(store).Reserve(context.Background(), uuid.New(), "a@example.com", 1)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	productID := uuid.New()
	store := &mockLedgerStore{
		reserveProductStockFn: func(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
			// Conditional decrement matched nothing.
			return database.Product{}, pgx.ErrNoRows
		},
		getProductFn: func(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
			// But the product does exist, so the stock was short.
			return database.Product{ID: productID, OwnerEmail: arg.OwnerEmail, Stock: 1}, nil
		},
	}

	_, err := NewLedger(store).Reserve(context.Background(), productID, "a@example.com", 5)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestReserve_StoreError(t *testing.T) {
	dbErr := errors.New("connection reset")
	store := &mockLedgerStore{
		reserveProductStockFn: func(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
			return database.Product{}, dbErr
		},
	}

	_, err := NewLedger(store).Reserve(context.Background(), uuid.New(), "a@example.com", 1)
	if !errors.Is(err, dbErr) {
		t.Fatalf("expected store error to pass through, got: %v", err)
	}
}

func TestRelease_HappyPath(t *testing.T) {
	var captured database.ReleaseProductStockParams
	store := &mockLedgerStore{
		releaseProductStockFn: func(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error) {
			captured = arg
			return database.Product{ID: arg.ID, Stock: 12}, nil
		},
	}

	p, err := NewLedger(store).Release(context.Background(), uuid.New(), "a@example.com", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Quantity != 2 {
		t.Errorf("release quantity: got %d, want 2", captured.Quantity)
	}
	if p.Stock != 12 {
		t.Errorf("returned stock: got %d, want 12", p.Stock)
	}
}

func TestRelease_ProductNotFound(t *testing.T) {
	store := &mockLedgerStore{
		releaseProductStockFn: func(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error) {
			return database.Product{}, pgx.ErrNoRows
		},
	}

	_, err := NewLedger(store).Release(context.Background(), uuid.New(), "a@example.com", 1)
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestSetStock_Negative(t *testing.T) {
	store := &mockLedgerStore{}
	_, err := NewLedger(store).SetStock(context.Background(), uuid.New(), "a@example.com", -1)
	if !errors.Is(err, ErrNegativeStock) {
		t.Fatalf("expected ErrNegativeStock, got: %v", err)
	}
}

func TestSetStock_HappyPath(t *testing.T) {
	var captured database.SetProductStockParams
	store := &mockLedgerStore{
		setProductStockFn: func(ctx context.Context, arg database.SetProductStockParams) (database.Product, error) {
			captured = arg
			return database.Product{ID: arg.ID, Stock: arg.Stock}, nil
		},
	}

	p, err := NewLedger(store).SetStock(context.Background(), uuid.New(), "a@example.com", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Stock != 0 {
		t.Errorf("set stock: got %d, want 0", captured.Stock)
	}
	if p.Stock != 0 {
		t.Errorf("returned stock: got %d, want 0", p.Stock)
	}
}
