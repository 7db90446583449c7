package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the status lifecycle controller.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrStatusConflict    = errors.New("order status changed, please retry")
	ErrNoOrdersFound     = errors.New("no completed orders found to pay")
)

// allowedTransitions defines the legal order lifecycle.
// Cancelled and Paid are terminal.
var allowedTransitions = map[database.OrderStatus][]database.OrderStatus{
	database.OrderStatusPending:   {database.OrderStatusCompleted, database.OrderStatusCancelled},
	database.OrderStatusCompleted: {database.OrderStatusPaid},
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPending, database.OrderStatusCompleted,
		database.OrderStatusCancelled, database.OrderStatusPaid:
		return true
	}
	return false
}

// ValidateTransition checks the transition table.
func ValidateTransition(current, next database.OrderStatus) error {
	for _, allowed := range allowedTransitions[current] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, next)
}

// StatusStore defines the DB methods needed for status transitions.
// Satisfied by *database.Queries (and its WithTx variant).
type StatusStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ReleaseProductStock(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CloseSeatOrders(ctx context.Context, arg database.CloseSeatOrdersParams) (int64, error)
}

// NewStatusStore creates a StatusStore from a DBTX (pool or tx).
type NewStatusStore func(db database.DBTX) StatusStore

// StatusService advances orders through their lifecycle and settles bills.
type StatusService struct {
	pool     TxBeginner
	newStore NewStatusStore
	store    StatusStore
}

// NewStatusService creates a new StatusService. store is the pool-backed
// StatusStore used for single-statement operations.
func NewStatusService(pool TxBeginner, newStore NewStatusStore, store StatusStore) *StatusService {
	return &StatusService{pool: pool, newStore: newStore, store: store}
}

// UpdateStatus moves the order to next if the transition table allows it.
// The write is conditional on the status still being what we read, so a
// concurrent transition surfaces as ErrStatusConflict instead of a lost
// update. Cancellation additionally releases the order's reserved stock.
func (s *StatusService) UpdateStatus(ctx context.Context, orderID uuid.UUID, ownerEmail string, next database.OrderStatus) (database.Order, error) {
	if !isValidOrderStatus(next) {
		return database.Order{}, ErrInvalidStatus
	}

	if next == database.OrderStatusCancelled {
		return s.cancel(ctx, orderID, ownerEmail)
	}

	current, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, OwnerEmail: ownerEmail})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateTransition(current.Status, next); err != nil {
		return database.Order{}, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		OwnerEmail: ownerEmail,
		Status:     next,
		FromStatus: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return updated, nil
}

// cancel flips a Pending order to Cancelled and restocks its line items, in
// one transaction. Items whose catalog entry has since been deleted are
// skipped; order history outlives the catalog.
func (s *StatusService) cancel(ctx context.Context, orderID uuid.UUID, ownerEmail string) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, database.GetOrderParams{ID: orderID, OwnerEmail: ownerEmail})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	if err := ValidateTransition(order.Status, database.OrderStatusCancelled); err != nil {
		return database.Order{}, err
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order items: %w", err)
	}
	for _, item := range items {
		_, err := store.ReleaseProductStock(ctx, database.ReleaseProductStockParams{
			ID:         item.ProductID,
			OwnerEmail: ownerEmail,
			Quantity:   item.Quantity,
		})
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("release stock: %w", err)
		}
	}

	cancelled, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		OwnerEmail: ownerEmail,
		Status:     database.OrderStatusCancelled,
		FromStatus: order.Status,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return cancelled, nil
}

// CloseBill settles a seat: every Completed order becomes Paid in one bulk
// update. Reports ErrNoOrdersFound when the seat has nothing to pay, which
// also makes a second close of the same bill fail cleanly.
func (s *StatusService) CloseBill(ctx context.Context, seatNumber, ownerEmail string) (int64, error) {
	count, err := s.store.CloseSeatOrders(ctx, database.CloseSeatOrdersParams{
		SeatNumber: seatNumber,
		OwnerEmail: ownerEmail,
	})
	if err != nil {
		return 0, fmt.Errorf("close seat orders: %w", err)
	}
	if count == 0 {
		return 0, ErrNoOrdersFound
	}
	return count, nil
}
