package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, company_name, password_hash, has_set_password, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.CompanyName, &u.PasswordHash, &u.HasSetPassword, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	Email       string
	CompanyName pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, company_name)
		VALUES ($1, $2)
		RETURNING `+userColumns, arg.Email, arg.CompanyName)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

type UpdateUserCompanyNameParams struct {
	Email       string
	CompanyName pgtype.Text
}

func (q *Queries) UpdateUserCompanyName(ctx context.Context, arg UpdateUserCompanyNameParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET company_name = $2
		WHERE email = $1
		RETURNING `+userColumns, arg.Email, arg.CompanyName)
	return scanUser(row)
}

type SetUserPasswordParams struct {
	Email        string
	PasswordHash string
}

func (q *Queries) SetUserPassword(ctx context.Context, arg SetUserPasswordParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET password_hash = $2, has_set_password = true
		WHERE email = $1
		RETURNING `+userColumns, arg.Email, arg.PasswordHash)
	return scanUser(row)
}

func (q *Queries) DeleteUserByEmail(ctx context.Context, email string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM users WHERE email = $1`, email)
	return err
}
