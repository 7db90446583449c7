package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, owner_email, name, description, category, price, stock, image_url, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OwnerEmail, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Stock, &p.ImageUrl, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type CreateProductParams struct {
	OwnerEmail  string
	Name        string
	Description pgtype.Text
	Category    string
	Price       pgtype.Numeric
	Stock       int32
	ImageUrl    pgtype.Text
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (owner_email, name, description, category, price, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		arg.OwnerEmail, arg.Name, arg.Description, arg.Category, arg.Price, arg.Stock, arg.ImageUrl)
	return scanProduct(row)
}

func (q *Queries) ListProductsByOwner(ctx context.Context, ownerEmail string) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE owner_email = $1
		ORDER BY category, name`, ownerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type GetProductParams struct {
	ID         uuid.UUID
	OwnerEmail string
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE id = $1 AND owner_email = $2`, arg.ID, arg.OwnerEmail)
	return scanProduct(row)
}

// GetProductByID looks up a product without a tenant filter. Used only to
// determine the owning tenant of a guest order's first item.
func (q *Queries) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

type UpdateProductParams struct {
	ID          uuid.UUID
	OwnerEmail  string
	Name        string
	Description pgtype.Text
	Category    string
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET name = $3, description = $4, category = $5, price = $6, image_url = $7, updated_at = now()
		WHERE id = $1 AND owner_email = $2
		RETURNING `+productColumns,
		arg.ID, arg.OwnerEmail, arg.Name, arg.Description, arg.Category, arg.Price, arg.ImageUrl)
	return scanProduct(row)
}

type DeleteProductParams struct {
	ID         uuid.UUID
	OwnerEmail string
}

// DeleteProduct removes the catalog entry only; order history keeps its
// snapshots.
func (q *Queries) DeleteProduct(ctx context.Context, arg DeleteProductParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		DELETE FROM products WHERE id = $1 AND owner_email = $2
		RETURNING id`, arg.ID, arg.OwnerEmail).Scan(&id)
	return id, err
}

type ReserveProductStockParams struct {
	ID         uuid.UUID
	OwnerEmail string
	Quantity   int32
}

// ReserveProductStock is a conditional decrement: it only succeeds when
// enough stock is on hand, so concurrent reservations can never oversell.
// Returns pgx.ErrNoRows when the product is missing or stock is short.
func (q *Queries) ReserveProductStock(ctx context.Context, arg ReserveProductStockParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock = stock - $3, updated_at = now()
		WHERE id = $1 AND owner_email = $2 AND stock >= $3
		RETURNING `+productColumns,
		arg.ID, arg.OwnerEmail, arg.Quantity)
	return scanProduct(row)
}

type ReleaseProductStockParams struct {
	ID         uuid.UUID
	OwnerEmail string
	Quantity   int32
}

func (q *Queries) ReleaseProductStock(ctx context.Context, arg ReleaseProductStockParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $3, updated_at = now()
		WHERE id = $1 AND owner_email = $2
		RETURNING `+productColumns,
		arg.ID, arg.OwnerEmail, arg.Quantity)
	return scanProduct(row)
}

type SetProductStockParams struct {
	ID         uuid.UUID
	OwnerEmail string
	Stock      int32
}

func (q *Queries) SetProductStock(ctx context.Context, arg SetProductStockParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock = $3, updated_at = now()
		WHERE id = $1 AND owner_email = $2
		RETURNING `+productColumns,
		arg.ID, arg.OwnerEmail, arg.Stock)
	return scanProduct(row)
}

func (q *Queries) DeleteProductsByOwner(ctx context.Context, ownerEmail string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM products WHERE owner_email = $1`, ownerEmail)
	return err
}
