package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const upsertAnswerSQL = `INSERT INTO candidate_answers (session_id, question_id, answer, updated_at)
	 VALUES ($1, $2, $3, NOW())
	 ON CONFLICT (session_id, question_id)
	 DO UPDATE SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at`

// AnswerRepository stores the latest answer per (session, question).
// Uniqueness is enforced by uq_candidate_answers_session_question.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert inserts or overwrites a single answer of an ONGOING session. The
// session row is share-locked, which conflicts with the FOR UPDATE taken by
// Finalize: the write either commits before finalize reads the answers or
// fails afterwards with pgx.ErrNoRows.
func (r *AnswerRepository) Upsert(ctx context.Context, sessionID uuid.UUID, questionID int64, answer string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM exam_sessions WHERE id = $1 AND status = 'ONGOING' FOR SHARE`, sessionID,
		).Scan(&one)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, upsertAnswerSQL, sessionID, questionID, answer)
		return err
	})
}

// UpsertMany upserts all answers on db using a single batch round-trip.
func (r *AnswerRepository) UpsertMany(ctx context.Context, db DBTX, sessionID uuid.UUID, answers []model.CandidateAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(upsertAnswerSQL, sessionID, a.QuestionID, a.Answer)
	}

	br := db.SendBatch(ctx, batch)
	for i := range answers {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert answer for question %d: %w", answers[i].QuestionID, err)
		}
	}
	return br.Close()
}

// ListBySession returns a session's answers ordered by question id.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.CandidateAnswer, error) {
	return r.listOn(ctx, r.pool, sessionID)
}

func (r *AnswerRepository) listOn(ctx context.Context, db DBTX, sessionID uuid.UUID) ([]model.CandidateAnswer, error) {
	rows, err := db.Query(ctx,
		`SELECT session_id, question_id, answer, updated_at
		 FROM candidate_answers
		 WHERE session_id = $1
		 ORDER BY question_id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.CandidateAnswer
	for rows.Next() {
		var a model.CandidateAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Answer, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
