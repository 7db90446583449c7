package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const rolePasswordColumns = `id, owner_email, role, password_hash, updated_at`

func scanRolePassword(row pgx.Row) (RolePassword, error) {
	var rp RolePassword
	err := row.Scan(&rp.ID, &rp.OwnerEmail, &rp.Role, &rp.PasswordHash, &rp.UpdatedAt)
	return rp, err
}

type UpsertRolePasswordParams struct {
	OwnerEmail   string
	Role         string
	PasswordHash string
}

func (q *Queries) UpsertRolePassword(ctx context.Context, arg UpsertRolePasswordParams) (RolePassword, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO role_passwords (owner_email, role, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_email, role)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()
		RETURNING `+rolePasswordColumns,
		arg.OwnerEmail, arg.Role, arg.PasswordHash)
	return scanRolePassword(row)
}

type GetRolePasswordParams struct {
	OwnerEmail string
	Role       string
}

func (q *Queries) GetRolePassword(ctx context.Context, arg GetRolePasswordParams) (RolePassword, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+rolePasswordColumns+` FROM role_passwords
		WHERE owner_email = $1 AND role = $2`, arg.OwnerEmail, arg.Role)
	return scanRolePassword(row)
}

func (q *Queries) ListRolePasswords(ctx context.Context, ownerEmail string) ([]RolePassword, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+rolePasswordColumns+` FROM role_passwords
		WHERE owner_email = $1
		ORDER BY role`, ownerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rps []RolePassword
	for rows.Next() {
		rp, err := scanRolePassword(rows)
		if err != nil {
			return nil, err
		}
		rps = append(rps, rp)
	}
	return rps, rows.Err()
}

func (q *Queries) DeleteRolePasswordsByOwner(ctx context.Context, ownerEmail string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM role_passwords WHERE owner_email = $1`, ownerEmail)
	return err
}
