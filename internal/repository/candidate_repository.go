package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// CandidateRepository handles candidate identity profiles.
type CandidateRepository struct {
	pool *pgxpool.Pool
}

// NewCandidateRepository creates a new CandidateRepository.
func NewCandidateRepository(pool *pgxpool.Pool) *CandidateRepository {
	return &CandidateRepository{pool: pool}
}

// GetByID retrieves a candidate by id.
func (r *CandidateRepository) GetByID(ctx context.Context, id int) (*model.Candidate, error) {
	c := &model.Candidate{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, face_image_path FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.FaceImagePath)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a candidate and sets its id.
func (r *CandidateRepository) Create(ctx context.Context, c *model.Candidate) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO candidates (name, face_image_path) VALUES ($1, $2) RETURNING id`,
		c.Name, c.FaceImagePath,
	).Scan(&c.ID)
}

// UpdateFaceImage points the candidate at a new reference image. A missing
// candidate yields pgx.ErrNoRows.
func (r *CandidateRepository) UpdateFaceImage(ctx context.Context, id int, path string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE candidates SET face_image_path = $2 WHERE id = $1`, id, path,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
