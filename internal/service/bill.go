package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned when a bill edit targets an item name no
// Completed order for the seat contains.
var ErrItemNotFound = errors.New("item not found in any active order")

// DefaultCompanyName is printed on bills for tenants that never set one.
const DefaultCompanyName = "FOODBOOK"

// BillStore defines the DB methods needed to read and edit bills.
// Satisfied by *database.Queries (and its WithTx variant).
type BillStore interface {
	LedgerStore
	ListCompletedOrdersBySeat(ctx context.Context, arg database.SeatOrdersParams) ([]database.Order, error)
	ListCompletedOrdersBySeatForUpdate(ctx context.Context, arg database.SeatOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
}

// NewBillStore creates a BillStore from a DBTX (pool or tx).
type NewBillStore func(db database.DBTX) BillStore

// BillLine is one flattened line of a bill.
type BillLine struct {
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// BillView is the derived bill for a seat: the union of its Completed
// orders at a point in time. It is never persisted.
type BillView struct {
	SeatNumber  string
	OrdersCount int
	Items       []BillLine
	GrandTotal  decimal.Decimal
	CompanyName string
	FoodNote    string
}

// BillService presents and mutates a seat's Completed orders as one
// logical bill.
type BillService struct {
	pool     TxBeginner
	newStore NewBillStore
	store    BillStore
}

// NewBillService creates a new BillService. store is the pool-backed
// BillStore used for reads.
func NewBillService(pool TxBeginner, newStore NewBillStore, store BillStore) *BillService {
	return &BillService{pool: pool, newStore: newStore, store: store}
}

// GetBill derives the current bill for a seat. Returns (nil, nil) when the
// seat has no Completed orders. Line items are concatenated across orders,
// oldest order first; duplicate names stay distinct lines.
func (s *BillService) GetBill(ctx context.Context, seatNumber, ownerEmail string) (*BillView, error) {
	orders, err := s.store.ListCompletedOrdersBySeat(ctx, database.SeatOrdersParams{
		SeatNumber: seatNumber,
		OwnerEmail: ownerEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("list seat orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	view := &BillView{
		SeatNumber:  seatNumber,
		OrdersCount: len(orders),
		GrandTotal:  decimal.Zero,
		CompanyName: DefaultCompanyName,
	}
	if orders[0].FoodNote.Valid {
		view.FoodNote = orders[0].FoodNote.String
	}

	for _, order := range orders {
		view.GrandTotal = view.GrandTotal.Add(numericToDecimal(order.TotalAmount))

		items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		for _, item := range items {
			price := numericToDecimal(item.UnitPrice)
			view.Items = append(view.Items, BillLine{
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: price,
				LineTotal: price.Mul(decimal.NewFromInt32(item.Quantity)),
			})
		}
	}

	user, err := s.store.GetUserByEmail(ctx, ownerEmail)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err == nil && user.CompanyName.Valid && user.CompanyName.String != "" {
		view.CompanyName = user.CompanyName.String
	}

	return view, nil
}

// RemoveItem takes one unit of the named item off the seat's bill: the first
// matching line across the seat's Completed orders (oldest order first)
// loses one unit, or the whole line when its quantity was 1. The owning
// order's total and tax are recomputed from its remaining lines, and the
// order itself is deleted when its last line goes. One unit of stock is
// released back to the ledger. Everything happens in one transaction with
// the seat's orders locked, so concurrent edits serialize.
func (s *BillService) RemoveItem(ctx context.Context, seatNumber, ownerEmail, itemName string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	orders, err := store.ListCompletedOrdersBySeatForUpdate(ctx, database.SeatOrdersParams{
		SeatNumber: seatNumber,
		OwnerEmail: ownerEmail,
	})
	if err != nil {
		return fmt.Errorf("list seat orders: %w", err)
	}

	for _, order := range orders {
		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}

		idx := -1
		for i, item := range items {
			if item.Name == itemName {
				idx = i
				break
			}
		}
		if idx == -1 {
			continue
		}

		target := items[idx]
		if target.Quantity > 1 {
			updated, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
				ID:       target.ID,
				Quantity: target.Quantity - 1,
			})
			if err != nil {
				return fmt.Errorf("update item quantity: %w", err)
			}
			items[idx] = updated
		} else {
			if err := store.DeleteOrderItem(ctx, target.ID); err != nil {
				return fmt.Errorf("delete order item: %w", err)
			}
			items = append(items[:idx], items[idx+1:]...)
		}

		// Put the unit back on the shelf. The catalog entry may be gone;
		// the bill edit still stands.
		if _, err := store.ReleaseProductStock(ctx, database.ReleaseProductStockParams{
			ID:         target.ProductID,
			OwnerEmail: ownerEmail,
			Quantity:   1,
		}); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("release stock: %w", err)
		}

		if len(items) == 0 {
			if err := store.DeleteOrder(ctx, order.ID); err != nil {
				return fmt.Errorf("delete order: %w", err)
			}
			return tx.Commit(ctx)
		}

		subtotal := decimal.Zero
		for _, item := range items {
			subtotal = subtotal.Add(numericToDecimal(item.UnitPrice).Mul(decimal.NewFromInt32(item.Quantity)))
		}
		tax := decimal.Zero
		if numericToDecimal(order.TaxAmount).IsPositive() {
			tax = taxOn(subtotal)
		}

		if _, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
			ID:          order.ID,
			TotalAmount: decimalToNumeric(subtotal.Add(tax)),
			TaxAmount:   decimalToNumeric(tax),
		}); err != nil {
			return fmt.Errorf("update order totals: %w", err)
		}
		return tx.Commit(ctx)
	}

	return ErrItemNotFound
}

// AddItem appends one unit of a product to the seat's bill. It reserves the
// unit through the ledger and creates a single-line order directly in
// Completed, the path walk-in additions take past the kitchen flow.
func (s *BillService) AddItem(ctx context.Context, seatNumber, ownerEmail string, productID uuid.UUID) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	ledger := NewLedger(store)

	p, err := ledger.Reserve(ctx, productID, ownerEmail, 1)
	if err != nil {
		return nil, err
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OwnerEmail:  ownerEmail,
		SeatNumber:  seatNumber,
		Status:      database.OrderStatusCompleted,
		TotalAmount: p.Price,
		TaxAmount:   decimalToNumeric(decimal.Zero),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:   order.ID,
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  1,
		UnitPrice: p.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: []database.OrderItem{item}}, nil
}
