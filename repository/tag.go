package repository

import (
	"context"

	"github.com/taskstream/backend/domain"
)

type TagRepository interface {
	List(ctx context.Context, userID string) ([]domain.Tag, error)
	Create(ctx context.Context, tag *domain.Tag) error
	Delete(ctx context.Context, userID string, id int64) error
}
