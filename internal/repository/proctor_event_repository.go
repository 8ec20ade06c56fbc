package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ProctorEventRepository is the append-only proctoring log.
type ProctorEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctorEventRepository creates a new ProctorEventRepository.
func NewProctorEventRepository(pool *pgxpool.Pool) *ProctorEventRepository {
	return &ProctorEventRepository{pool: pool}
}

// Append records one event. The timestamp is assigned by the database.
func (r *ProctorEventRepository) Append(ctx context.Context, e *model.ProctorEvent) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctor_events (session_id, kind, details)
		 VALUES ($1, $2, $3)
		 RETURNING id, recorded_at`,
		e.SessionID, e.Kind, e.Details,
	).Scan(&e.ID, &e.RecordedAt)
}

// ListBySession returns a session's events ordered by timestamp.
func (r *ProctorEventRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, recorded_at, kind, details
		 FROM proctor_events
		 WHERE session_id = $1
		 ORDER BY recorded_at, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ProctorEvent
	for rows.Next() {
		var e model.ProctorEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.RecordedAt, &e.Kind, &e.Details); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
