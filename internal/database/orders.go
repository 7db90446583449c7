package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, owner_email, seat_number, status, total_amount, tax_amount, food_note, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerEmail, &o.SeatNumber, &o.Status,
		&o.TotalAmount, &o.TaxAmount, &o.FoodNote, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	OwnerEmail  string
	SeatNumber  string
	Status      OrderStatus
	TotalAmount pgtype.Numeric
	TaxAmount   pgtype.Numeric
	FoodNote    pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (owner_email, seat_number, status, total_amount, tax_amount, food_note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orderColumns,
		arg.OwnerEmail, arg.SeatNumber, arg.Status, arg.TotalAmount, arg.TaxAmount, arg.FoodNote)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  int32
	UnitPrice pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_id, product_id, name, quantity, unit_price`,
		arg.OrderID, arg.ProductID, arg.Name, arg.Quantity, arg.UnitPrice).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice)
	return it, err
}

type GetOrderParams struct {
	ID         uuid.UUID
	OwnerEmail string
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND owner_email = $2`, arg.ID, arg.OwnerEmail)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the life of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE id = $1 AND owner_email = $2
		FOR UPDATE`, arg.ID, arg.OwnerEmail)
	return scanOrder(row)
}

type ListOrdersParams struct {
	OwnerEmail string
	Status     NullOrderStatus
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	var status any
	if arg.Status.Valid {
		status = string(arg.Status.OrderStatus)
	}
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE owner_email = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.OwnerEmail, status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit_price
		FROM order_items WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type SeatOrdersParams struct {
	SeatNumber string
	OwnerEmail string
}

// ListCompletedOrdersBySeat returns the orders a seat's bill is derived
// from, oldest first so bill edits hit a deterministic order.
func (q *Queries) ListCompletedOrdersBySeat(ctx context.Context, arg SeatOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE seat_number = $1 AND owner_email = $2 AND status = 'Completed'
		ORDER BY created_at ASC`, arg.SeatNumber, arg.OwnerEmail)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// ListCompletedOrdersBySeatForUpdate locks the seat's Completed orders so
// concurrent bill edits serialize instead of double-applying.
func (q *Queries) ListCompletedOrdersBySeatForUpdate(ctx context.Context, arg SeatOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE seat_number = $1 AND owner_email = $2 AND status = 'Completed'
		ORDER BY created_at ASC
		FOR UPDATE`, arg.SeatNumber, arg.OwnerEmail)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	OwnerEmail string
	Status     OrderStatus
	FromStatus OrderStatus
}

// UpdateOrderStatus flips the status only if it still holds the expected
// value; pgx.ErrNoRows signals a concurrent change.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND owner_email = $2 AND status = $4
		RETURNING `+orderColumns,
		arg.ID, arg.OwnerEmail, arg.Status, arg.FromStatus)
	return scanOrder(row)
}

type CloseSeatOrdersParams struct {
	SeatNumber string
	OwnerEmail string
}

// CloseSeatOrders marks every Completed order for the seat Paid and reports
// how many were settled.
func (q *Queries) CloseSeatOrders(ctx context.Context, arg CloseSeatOrdersParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE orders
		SET status = 'Paid', updated_at = now()
		WHERE seat_number = $1 AND owner_email = $2 AND status = 'Completed'`,
		arg.SeatNumber, arg.OwnerEmail)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type UpdateOrderItemQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateOrderItemQuantity(ctx context.Context, arg UpdateOrderItemQuantityParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, `
		UPDATE order_items SET quantity = $2
		WHERE id = $1
		RETURNING id, order_id, product_id, name, quantity, unit_price`,
		arg.ID, arg.Quantity).
		Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice)
	return it, err
}

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	return err
}

type UpdateOrderTotalsParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
	TaxAmount   pgtype.Numeric
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET total_amount = $2, tax_amount = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.TotalAmount, arg.TaxAmount)
	return scanOrder(row)
}

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}

func (q *Queries) DeleteOrdersByOwner(ctx context.Context, ownerEmail string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orders WHERE owner_email = $1`, ownerEmail)
	return err
}
