package service

import (
	"context"

	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
)

type TillService interface {
	// ListForOutlet returns the outlet's tills with in-use derived from the
	// OPEN shifts at query time.
	ListForOutlet(ctx context.Context, outletID uuid.UUID) ([]model.TillStatus, error)
}

type tillService struct {
	repo repository.TillRepository
}

func NewTillService(repo repository.TillRepository) TillService {
	return &tillService{repo: repo}
}

func (s *tillService) ListForOutlet(ctx context.Context, outletID uuid.UUID) ([]model.TillStatus, error) {
	if outletID == uuid.Nil {
		return nil, validationError(map[string]string{"outlet_id": "required"})
	}
	tills, err := s.repo.ListByOutletWithUsage(ctx, outletID)
	if err != nil {
		return nil, persistenceError("could not list tills", err)
	}
	return tills, nil
}
