package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetDailySalesParams struct {
	OwnerEmail string
	StartDate  time.Time
	EndDate    time.Time
}

type GetDailySalesRow struct {
	SaleDate     pgtype.Date
	OrderCount   int64
	TotalRevenue pgtype.Numeric
	TotalTax     pgtype.Numeric
}

// GetDailySales aggregates Paid orders per calendar day. Cancelled and
// still-open orders never count as revenue.
func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT DATE(updated_at) AS sale_date,
		       COUNT(*) AS order_count,
		       COALESCE(SUM(total_amount), 0) AS total_revenue,
		       COALESCE(SUM(tax_amount), 0) AS total_tax
		FROM orders
		WHERE owner_email = $1
		  AND status = 'Paid'
		  AND updated_at >= $2 AND updated_at < $3
		GROUP BY DATE(updated_at)
		ORDER BY sale_date`, arg.OwnerEmail, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue, &r.TotalTax); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetProductSalesParams struct {
	OwnerEmail string
	StartDate  time.Time
	EndDate    time.Time
	Limit      int32
}

type GetProductSalesRow struct {
	ProductID    uuid.UUID
	ProductName  string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

// GetProductSales ranks dishes by units sold across Paid orders. Names come
// from the order-time snapshot, so deleted products still report.
func (q *Queries) GetProductSales(ctx context.Context, arg GetProductSalesParams) ([]GetProductSalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT oi.product_id,
		       oi.name AS product_name,
		       COALESCE(SUM(oi.quantity), 0) AS quantity_sold,
		       COALESCE(SUM(oi.quantity * oi.unit_price), 0) AS total_revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.owner_email = $1
		  AND o.status = 'Paid'
		  AND o.updated_at >= $2 AND o.updated_at < $3
		GROUP BY oi.product_id, oi.name
		ORDER BY quantity_sold DESC, total_revenue DESC
		LIMIT $4`, arg.OwnerEmail, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetProductSalesRow
	for rows.Next() {
		var r GetProductSalesRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
