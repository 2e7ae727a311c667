package journals

import (
	"context"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Journal, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Journal, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a journal. Codes are stored upper-cased.
func (s *Service) Create(ctx context.Context, in CreateInput) (Journal, error) {
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}
	in.Code = normalizeCode(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	return s.repo.Insert(ctx, in)
}
