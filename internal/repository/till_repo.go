package repository

import (
	"context"

	"tillshift/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TillRepository interface {
	Create(ctx context.Context, t *model.Till) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Till, error)
	// ListByOutletWithUsage derives in-use from live OPEN shifts on every call.
	ListByOutletWithUsage(ctx context.Context, outletID uuid.UUID) ([]model.TillStatus, error)
}

type tillRepo struct{ db *gorm.DB }

func NewTillRepository(db *gorm.DB) TillRepository { return &tillRepo{db: db} }

// Create writes every column so an inactive till is not flipped back to the
// column default.
func (r *tillRepo) Create(ctx context.Context, t *model.Till) error {
	return translate(r.db.WithContext(ctx).Select("*").Create(t).Error)
}

func (r *tillRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Till, error) {
	var t model.Till
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *tillRepo) ListByOutletWithUsage(ctx context.Context, outletID uuid.UUID) ([]model.TillStatus, error) {
	var rows []model.TillStatus
	err := r.db.WithContext(ctx).
		Table("tills").
		Select(`tills.*, (
			SELECT s.id FROM shifts s
			WHERE s.outlet_id = tills.outlet_id AND s.till_id = tills.id AND s.status = ?
			LIMIT 1
		) AS open_shift_id`, model.ShiftOpen).
		Where("tills.outlet_id = ?", outletID).
		Order("tills.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for i := range rows {
		rows[i].InUse = rows[i].OpenShiftID != nil
	}
	return rows, nil
}
