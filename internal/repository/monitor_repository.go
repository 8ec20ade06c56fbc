package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// MonitorRepository provides the aggregate queries behind the reviewer monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListOngoingSessions returns every ONGOING session with its candidate name.
func (r *MonitorRepository) ListOngoingSessions(ctx context.Context) ([]model.MonitoredSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.candidate_id, c.name, s.started_at, s.question_count
		 FROM exam_sessions s
		 JOIN candidates c ON c.id = s.candidate_id
		 WHERE s.status = 'ONGOING'
		 ORDER BY s.started_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.MonitoredSession
	for rows.Next() {
		var m model.MonitoredSession
		if err := rows.Scan(&m.SessionID, &m.CandidateID, &m.CandidateName, &m.StartedAt, &m.QuestionCount); err != nil {
			return nil, err
		}
		sessions = append(sessions, m)
	}
	return sessions, rows.Err()
}

// GetAnsweredCounts returns the number of autosaved answers per ONGOING session.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.session_id, COUNT(*)
		 FROM candidate_answers a
		 JOIN exam_sessions s ON s.id = a.session_id
		 WHERE s.status = 'ONGOING'
		 GROUP BY a.session_id`,
	)
	if err != nil {
		return nil, err
	}
	return scanCounts(rows)
}

// GetAlertCounts returns the number of ALERT events per ONGOING session.
func (r *MonitorRepository) GetAlertCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.session_id, COUNT(*)
		 FROM proctor_events e
		 JOIN exam_sessions s ON s.id = e.session_id
		 WHERE s.status = 'ONGOING' AND e.kind = 'ALERT'
		 GROUP BY e.session_id`,
	)
	if err != nil {
		return nil, err
	}
	return scanCounts(rows)
}

func scanCounts(rows pgx.Rows) (map[uuid.UUID]int64, error) {
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var (
			id    uuid.UUID
			count int64
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}
