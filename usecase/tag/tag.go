package tag

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

// UseCase manages the per-user label set. Tag changes on tasks themselves
// flow through the task use case so they land in the event log.
type UseCase struct {
	tags   repository.TagRepository
	logger *zap.Logger
}

func New(tags repository.TagRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tags:   tags,
		logger: logger,
	}
}

func (uc *UseCase) ListTags(ctx context.Context, userID string) ([]domain.Tag, error) {
	return uc.tags.List(ctx, userID)
}

func (uc *UseCase) CreateTag(ctx context.Context, userID, name string) (*domain.Tag, error) {
	tag := &domain.Tag{UserID: userID, Name: name}
	if err := uc.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (uc *UseCase) DeleteTag(ctx context.Context, userID string, id int64) error {
	return uc.tags.Delete(ctx, userID, id)
}
