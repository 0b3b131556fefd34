package companies

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Company, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	if id <= 0 {
		return Company{}, errors.New("invalid company ID")
	}
	return s.repo.Get(ctx, id)
}

// Exists reports whether a company is registered. The adjustment workflow
// uses this as a creation precondition.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, id)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Company, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Division = strings.TrimSpace(in.Division)
	if in.Code == "" || in.Name == "" {
		return Company{}, errors.New("company code and name required")
	}
	if in.Division == "" {
		return Company{}, errors.New("company division required")
	}
	if in.OpeningCapital.IsNegative() {
		return Company{}, errors.New("opening capital cannot be negative")
	}
	return s.repo.Create(ctx, in)
}
