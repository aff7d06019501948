package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Till is a cash drawer registered to an outlet. Outlet administration owns
// these rows; whether a till is in use is never stored here.
type Till struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OutletID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tills_outlet_name,priority:1"`
	Name      string    `gorm:"type:varchar(80);not null;uniqueIndex:idx_tills_outlet_name,priority:2"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Till) TableName() string { return "tills" }

func (t *Till) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TillStatus is a till annotated with live shift state. Only the repository
// builds it, from the OPEN shifts that reference the till.
type TillStatus struct {
	Till        `gorm:"embedded"`
	OpenShiftID *uuid.UUID `gorm:"column:open_shift_id"`
	InUse       bool       `gorm:"-"`
}
