package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// MaxID returns the highest question id, or 0 for an empty bank.
func (r *QuestionRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM questions`).Scan(&id)
	return id, err
}

// ListPinned returns the first limit questions by id among those with id <= cutoff.
func (r *QuestionRepository) ListPinned(ctx context.Context, cutoff int64, limit int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, question_type, options, correct_answer, marks, negative_marks
		 FROM questions
		 WHERE id <= $1
		 ORDER BY id
		 LIMIT $2`, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q       model.Question
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Type, &options, &q.CorrectAnswer, &q.Marks, &q.NegativeMarks); err != nil {
			return nil, err
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options of question %d: %w", q.ID, err)
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	var options []byte
	if len(q.Options) > 0 {
		raw, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options: %w", err)
		}
		options = raw
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (question_text, question_type, options, correct_answer, marks, negative_marks)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		q.QuestionText, q.Type, options, q.CorrectAnswer, q.Marks, q.NegativeMarks,
	).Scan(&q.ID)
}
