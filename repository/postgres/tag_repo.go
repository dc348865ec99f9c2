package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

type tagRepository struct {
	pool *pgxpool.Pool
}

// NewTagRepository returns a Postgres-backed implementation of TagRepository.
func NewTagRepository(pool *pgxpool.Pool) repository.TagRepository {
	return &tagRepository{pool: pool}
}

func (r *tagRepository) List(ctx context.Context, userID string) ([]domain.Tag, error) {
	const query = `
	SELECT id, user_id, name, created_at
	FROM tags
	WHERE user_id = $1
	ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *tagRepository) Create(ctx context.Context, tag *domain.Tag) error {
	if tag == nil || tag.Name == "" {
		return domain.ErrInvalidPayload
	}
	tag.Name = strings.ToLower(strings.TrimSpace(tag.Name))

	const query = `
	INSERT INTO tags (user_id, name)
	VALUES ($1, $2)
	RETURNING id, created_at
	`
	if err := r.pool.QueryRow(ctx, query, tag.UserID, tag.Name).Scan(&tag.ID, &tag.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrTagExists
		}
		return err
	}
	return nil
}

func (r *tagRepository) Delete(ctx context.Context, userID string, id int64) error {
	const query = `DELETE FROM tags WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTagNotFound
	}
	return nil
}
