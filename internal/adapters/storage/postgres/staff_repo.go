package postgres

import (
	"context"
	"database/sql"
	"strings"

	"breast-screening-service/internal/domain/staff"
	"breast-screening-service/internal/ports/auth"
)

type StaffRepo struct {
	db *sql.DB
}

func NewStaffRepo(db *sql.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

func (r *StaffRepo) Create(ctx context.Context, a staff.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, name, email, role, status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		a.ID,
		a.Name,
		a.Email,
		string(a.Role),
		string(a.Status),
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *StaffRepo) GetByID(ctx context.Context, id string) (staff.Account, error) {
	return r.getBy(ctx, `WHERE id = $1`, strings.TrimSpace(id))
}

func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (staff.Account, error) {
	return r.getBy(ctx, `WHERE email = $1`, strings.TrimSpace(email))
}

func (r *StaffRepo) getBy(ctx context.Context, where, arg string) (staff.Account, error) {
	if arg == "" {
		return staff.Account{}, staff.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, status, created_at, updated_at
		FROM users
	`+where, arg)

	var a staff.Account
	var role, status string
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&role,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return staff.Account{}, staff.ErrNotFound
		}
		return staff.Account{}, err
	}

	a.Role = auth.Role(role)
	a.Status = staff.Status(status)
	return a, nil
}

func (r *StaffRepo) ListByRole(ctx context.Context, role auth.Role) ([]staff.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, role, status, created_at, updated_at
		FROM users
		WHERE role = $1
		ORDER BY created_at ASC
	`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]staff.Account, 0)
	for rows.Next() {
		var a staff.Account
		var rl, status string
		if err := rows.Scan(
			&a.ID,
			&a.Name,
			&a.Email,
			&rl,
			&status,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Role = auth.Role(rl)
		a.Status = staff.Status(status)
		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *StaffRepo) Update(ctx context.Context, a staff.Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET
			name = $2,
			email = $3,
			status = $4,
			updated_at = $5
		WHERE id = $1
	`,
		a.ID,
		a.Name,
		a.Email,
		string(a.Status),
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func (r *StaffRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func (r *StaffRepo) CountByRole(ctx context.Context, role auth.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n)
	return n, err
}
