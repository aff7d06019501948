package repository

import (
	"context"

	"tillshift/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OperatorRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error)
	// Upsert creates the operator or refreshes name, email, password, role
	// and outlet for an existing username, reactivating it.
	Upsert(ctx context.Context, o *model.Operator) error
}

type operatorRepo struct{ db *gorm.DB }

func NewOperatorRepository(db *gorm.DB) OperatorRepository { return &operatorRepo{db: db} }

func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*model.Operator, error) {
	var o model.Operator
	err := r.db.WithContext(ctx).Where("username = ? AND active = ?", username, true).First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *operatorRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var o model.Operator
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *operatorRepo) Upsert(ctx context.Context, o *model.Operator) error {
	o.Active = true
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "outlet_id", "active", "updated_at"}),
	}).Create(o).Error)
}
