package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const sessionColumns = `id, candidate_id, status, started_at, finished_at, score, question_cutoff, question_count`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool    *pgxpool.Pool
	answers *AnswerRepository
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool, answers *AnswerRepository) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool, answers: answers}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.CandidateID, &s.Status, &s.StartedAt, &s.FinishedAt, &s.Score, &s.QuestionCutoff, &s.QuestionCount)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetOngoingByCandidate returns the candidate's ONGOING session or pgx.ErrNoRows.
func (r *ExamSessionRepository) GetOngoingByCandidate(ctx context.Context, candidateID int) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE candidate_id = $1 AND status = 'ONGOING'`, candidateID,
	))
}

// GetByID returns a session in any state regardless of owner.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id,
	))
}

// GetByIDAndCandidate returns a session owned by candidateID in any state.
func (r *ExamSessionRepository) GetByIDAndCandidate(ctx context.Context, id uuid.UUID, candidateID int) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE id = $1 AND candidate_id = $2`, id, candidateID,
	))
}

// CreateOngoing inserts a new ONGOING session. When the candidate already has
// one (concurrent start), nothing is inserted and pgx.ErrNoRows is returned.
func (r *ExamSessionRepository) CreateOngoing(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (candidate_id, status, question_cutoff, question_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (candidate_id) WHERE status = 'ONGOING' DO NOTHING
		 RETURNING id, started_at`,
		s.CandidateID, model.SessionStatusOngoing, s.QuestionCutoff, s.QuestionCount,
	).Scan(&s.ID, &s.StartedAt)
}

// Finalize moves an ONGOING session to FINISHED in one transaction. The
// session row is locked FOR UPDATE before the saved answers are read, so no
// autosave can land between grading and the status change. If the session is
// not ONGOING (or not owned) nothing is written and pgx.ErrNoRows is returned.
// grade receives the saved answers and returns the score plus the answers to
// record.
func (r *ExamSessionRepository) Finalize(
	ctx context.Context,
	id uuid.UUID,
	candidateID int,
	grade func(saved []model.CandidateAnswer) (float64, []model.CandidateAnswer),
) (*model.ExamSession, error) {
	var finished *model.ExamSession

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM exam_sessions
			 WHERE id = $1 AND candidate_id = $2 AND status = 'ONGOING'
			 FOR UPDATE`, id, candidateID,
		).Scan(&locked)
		if err != nil {
			return err
		}

		saved, err := r.answers.listOn(ctx, tx, id)
		if err != nil {
			return err
		}
		score, answers := grade(saved)

		s, err := scanSession(tx.QueryRow(ctx,
			`UPDATE exam_sessions
			 SET status = $1, score = $2, finished_at = $3
			 WHERE id = $4
			 RETURNING `+sessionColumns,
			model.SessionStatusFinished, score, time.Now(), id,
		))
		if err != nil {
			return err
		}

		if err := r.answers.UpsertMany(ctx, tx, id, answers); err != nil {
			return err
		}
		finished = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finished, nil
}

// ListByCandidate retrieves all sessions for a candidate, newest first.
func (r *ExamSessionRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
