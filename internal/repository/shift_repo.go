package repository

import (
	"context"
	"errors"

	"tillshift/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ShiftFilter narrows history queries. Nil fields are not applied.
type ShiftFilter struct {
	OutletID uuid.UUID
	From     *datatypes.Date
	To       *datatypes.Date
	Status   *model.ShiftStatus
	Page     int
	Limit    int
}

// ShiftRepository is the shift store. Insert and Close are single conditional
// writes; exclusivity lives in the unique indexes, not in callers.
type ShiftRepository interface {
	// Insert returns ErrDuplicate when either unique index rejects the row.
	Insert(ctx context.Context, s *model.Shift) error
	// Close writes the closing fields only if the row is still OPEN.
	// Returns ErrNotOpen when no OPEN row with s.ID exists.
	Close(ctx context.Context, s *model.Shift) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error)
	// FindBlocking returns the shift that makes an insert for the key
	// conflict: the same-date shift first, else the till's OPEN shift.
	FindBlocking(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (*model.Shift, error)
	FindOpen(ctx context.Context, outletID uuid.UUID, tillID *uuid.UUID) (*model.Shift, error)
	FindOpenByOperator(ctx context.Context, operatorID uuid.UUID) (*model.Shift, error)
	Exists(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (bool, error)
	ListOpen(ctx context.Context, outletID *uuid.UUID) ([]model.Shift, error)
	ListHistory(ctx context.Context, f ShiftFilter) ([]model.Shift, int64, error)
	ListStaleOpen(ctx context.Context, before datatypes.Date) ([]model.Shift, error)
}

type shiftRepo struct{ db *gorm.DB }

func NewShiftRepository(db *gorm.DB) ShiftRepository { return &shiftRepo{db: db} }

func (r *shiftRepo) Insert(ctx context.Context, s *model.Shift) error {
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *shiftRepo) Close(ctx context.Context, s *model.Shift) error {
	if s.EndedAt == nil || s.ClosingCash == nil || s.Variance == nil {
		return errors.New("close: ended_at, closing_cash and variance are required")
	}
	updates := map[string]any{
		"status":       model.ShiftClosed,
		"ended_at":     *s.EndedAt,
		"closing_cash": *s.ClosingCash,
		"variance":     *s.Variance,
		"notes":        s.Notes,
	}
	if s.NetCashMovement != nil {
		updates["net_cash_movement"] = *s.NetCashMovement
	}
	if s.ExpectedCash != nil {
		updates["expected_cash"] = *s.ExpectedCash
	}
	if s.VariancePct != nil {
		updates["variance_pct"] = *s.VariancePct
	}
	if s.VarianceClass != nil {
		updates["variance_class"] = *s.VarianceClass
	}

	res := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("id = ? AND status = ?", s.ID, model.ShiftOpen).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotOpen
	}
	return nil
}

func (r *shiftRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) FindBlocking(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("outlet_id = ? AND till_id = ? AND operating_date = ?", outletID, tillID, date).
		First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translate(err)
	}
	return r.FindOpen(ctx, outletID, &tillID)
}

func (r *shiftRepo) FindOpen(ctx context.Context, outletID uuid.UUID, tillID *uuid.UUID) (*model.Shift, error) {
	q := r.db.WithContext(ctx).Where("outlet_id = ? AND status = ?", outletID, model.ShiftOpen)
	if tillID != nil {
		q = q.Where("till_id = ?", *tillID)
	}
	var s model.Shift
	if err := q.Order("started_at DESC").First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) FindOpenByOperator(ctx context.Context, operatorID uuid.UUID) (*model.Shift, error) {
	var s model.Shift
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND status = ?", operatorID, model.ShiftOpen).
		Order("started_at DESC").
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *shiftRepo) Exists(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Shift{}).
		Where("outlet_id = ? AND till_id = ? AND operating_date = ?", outletID, tillID, date).
		Count(&n).Error
	return n > 0, translate(err)
}

func (r *shiftRepo) ListOpen(ctx context.Context, outletID *uuid.UUID) ([]model.Shift, error) {
	q := r.db.WithContext(ctx).Where("status = ?", model.ShiftOpen)
	if outletID != nil {
		q = q.Where("outlet_id = ?", *outletID)
	}
	var shifts []model.Shift
	err := q.Order("started_at ASC").Find(&shifts).Error
	return shifts, translate(err)
}

func (r *shiftRepo) ListHistory(ctx context.Context, f ShiftFilter) ([]model.Shift, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Shift{}).Where("outlet_id = ?", f.OutletID)
	if f.From != nil {
		q = q.Where("operating_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("operating_date <= ?", *f.To)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	var shifts []model.Shift
	err := q.Order("operating_date DESC, started_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&shifts).Error
	return shifts, total, translate(err)
}

func (r *shiftRepo) ListStaleOpen(ctx context.Context, before datatypes.Date) ([]model.Shift, error) {
	var shifts []model.Shift
	err := r.db.WithContext(ctx).
		Where("status = ? AND operating_date < ?", model.ShiftOpen, before).
		Order("operating_date ASC").
		Find(&shifts).Error
	return shifts, translate(err)
}
