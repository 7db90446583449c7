package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStatus values match the CHECK constraint on orders.status.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusPaid      OrderStatus = "Paid"
)

// NullOrderStatus is an optional status filter.
type NullOrderStatus struct {
	OrderStatus OrderStatus
	Valid       bool
}

type Product struct {
	ID          uuid.UUID
	OwnerEmail  string
	Name        string
	Description pgtype.Text
	Category    string
	Price       pgtype.Numeric
	Stock       int32
	ImageUrl    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID          uuid.UUID
	OwnerEmail  string
	SeatNumber  string
	Status      OrderStatus
	TotalAmount pgtype.Numeric
	TaxAmount   pgtype.Numeric
	FoodNote    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is a line item snapshotted at order time. ProductID is a weak
// reference used for stock reconciliation only.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  int32
	UnitPrice pgtype.Numeric
}

type User struct {
	ID             uuid.UUID
	Email          string
	CompanyName    pgtype.Text
	PasswordHash   pgtype.Text
	HasSetPassword bool
	CreatedAt      time.Time
}

type RolePassword struct {
	ID           uuid.UUID
	OwnerEmail   string
	Role         string
	PasswordHash string
	UpdatedAt    time.Time
}
