package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Operator roles.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Operator is a staff member allowed to run shifts.
// OutletID restricts the operator to one outlet; nil = all outlets.
type Operator struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        *string
	PasswordHash string     `gorm:"not null"`
	Role         string     `gorm:"type:varchar(20);not null"`
	OutletID     *uuid.UUID `gorm:"type:uuid"`
	Active       bool       `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Operator) TableName() string { return "operators" }

func (o *Operator) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
