package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems       = errors.New("items are required")
	ErrSeatRequired     = errors.New("seat number is required")
	ErrInvalidProductID = errors.New("invalid product_id")
	ErrMixedOwners      = errors.New("items belong to different restaurants")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	LedgerStore
	GetProductByID(ctx context.Context, id uuid.UUID) (database.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for placing an order. The caller
// may be an unauthenticated guest; the owning tenant is derived from the
// first item's product.
type CreateOrderRequest struct {
	SeatNumber string
	FoodNote   string
	ApplyTax   bool
	Items      []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single (product, quantity) request.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
}

// CreateOrderResult is the created order with its snapshotted line items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService turns cart line items into persisted orders.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// Create validates the cart, reserves stock for every line and persists a
// Pending order, all inside one transaction: a shortfall on any item rolls
// back every reservation already made for this call, so an order can never
// partially apply.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(req.SeatNumber) == "" {
		return nil, ErrSeatRequired
	}

	// Parse all IDs up front so no stock moves for a malformed cart.
	ids := make([]uuid.UUID, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		ids[i] = id
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	ledger := NewLedger(store)

	// The first item's product decides which tenant the order belongs to.
	first, err := store.GetProductByID(ctx, ids[0])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("item[0]: %w", ErrProductNotFound)
		}
		return nil, fmt.Errorf("item[0]: get product: %w", err)
	}
	ownerEmail := first.OwnerEmail

	subtotal := decimal.Zero
	itemParams := make([]database.CreateOrderItemParams, 0, len(req.Items))

	for i, item := range req.Items {
		p, err := ledger.Reserve(ctx, ids[i], ownerEmail, item.Quantity)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) && i > 0 {
				// Missing under this tenant: if the product exists at all,
				// the cart mixes restaurants.
				if _, lerr := store.GetProductByID(ctx, ids[i]); lerr == nil {
					return nil, fmt.Errorf("item[%d]: %w", i, ErrMixedOwners)
				}
			}
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}

		subtotal = subtotal.Add(numericToDecimal(p.Price).Mul(decimal.NewFromInt32(item.Quantity)))
		itemParams = append(itemParams, database.CreateOrderItemParams{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			UnitPrice: p.Price,
		})
	}

	tax := decimal.Zero
	if req.ApplyTax {
		tax = taxOn(subtotal)
	}
	total := subtotal.Add(tax)

	foodNote := pgtype.Text{}
	if req.FoodNote != "" {
		foodNote = pgtype.Text{String: req.FoodNote, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OwnerEmail:  ownerEmail,
		SeatNumber:  req.SeatNumber,
		Status:      database.OrderStatusPending,
		TotalAmount: decimalToNumeric(total),
		TaxAmount:   decimalToNumeric(tax),
		FoodNote:    foodNote,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(itemParams))
	for _, ip := range itemParams {
		ip.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, ip)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}
