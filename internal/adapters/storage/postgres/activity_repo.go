package postgres

import (
	"context"
	"database/sql"

	"breast-screening-service/internal/domain/activity"
)

type ActivityRepo struct {
	db *sql.DB
}

func NewActivityRepo(db *sql.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Append(ctx context.Context, e activity.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		e.ID,
		toNullString(e.ActorID),
		e.ActionType,
		e.Description,
		e.Timestamp,
	)
	return err
}

func (r *ActivityRepo) ListRecent(ctx context.Context, limit int) ([]activity.EntryWithActor, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			a.id, a.user_id, a.action_type, a.description, a.created_at,
			COALESCE(u.name, 'Unknown')
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]activity.EntryWithActor, 0)
	for rows.Next() {
		var e activity.EntryWithActor
		var actor sql.NullString
		if err := rows.Scan(
			&e.ID,
			&actor,
			&e.ActionType,
			&e.Description,
			&e.Timestamp,
			&e.ActorName,
		); err != nil {
			return nil, err
		}
		e.ActorID = fromNullString(actor)
		out = append(out, e)
	}

	return out, rows.Err()
}

func (r *ActivityRepo) UnlinkActor(ctx context.Context, actorID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE activity_logs SET user_id = NULL WHERE user_id = $1
	`, actorID)
	return err
}

func (r *ActivityRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs`).Scan(&n)
	return n, err
}
