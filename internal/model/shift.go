package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ShiftStatus: "OPEN" | "CLOSED". CLOSED is terminal.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

// VarianceClass: "balanced" | "warning" | "critical"
const (
	VarianceBalanced = "balanced"
	VarianceWarning  = "warning"
	VarianceCritical = "critical"
)

// Shift is one operator's working session on one till for one operating date.
// Two unique indexes back the exclusivity rules:
//   - idx_shifts_outlet_till_date: one shift per (outlet, till, operating_date)
//   - idx_shifts_open_till (partial, status = 'OPEN'): one OPEN shift per (outlet, till)
//
// EndedAt, ClosingCash and Variance are written together by the close UPDATE.
type Shift struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OutletID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_shifts_outlet_till_date,priority:1"`
	TillID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_shifts_outlet_till_date,priority:2"`
	OperatorID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OperatingDate datatypes.Date  `gorm:"not null;uniqueIndex:idx_shifts_outlet_till_date,priority:3"`
	OpeningCash   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	FloatingCash  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Notes         *string
	Status        ShiftStatus `gorm:"type:varchar(10);not null;index"`
	StartedAt     time.Time   `gorm:"not null"`

	// Set on close only.
	EndedAt         *time.Time
	ClosingCash     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NetCashMovement *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ExpectedCash    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Variance        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	VariancePct     *decimal.Decimal `gorm:"type:decimal(7,2)"`
	VarianceClass   *string          `gorm:"type:varchar(10)"`
}

func (Shift) TableName() string { return "shifts" }

// BeforeCreate assigns the id client-side so both backends behave the same
// (sqlite has no gen_random_uuid()).
func (s *Shift) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Shift) IsOpen() bool { return s.Status == ShiftOpen }

// Day returns the operating date as a UTC midnight time.
func (s *Shift) Day() time.Time { return time.Time(s.OperatingDate) }

// DateOf truncates t to its calendar date (in t's own location) and returns it
// as UTC midnight, the single representation stored in operating_date.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return datatypes.Date{}, err
	}
	return DateOf(t), nil
}

// FormatDate renders an operating date as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(time.DateOnly)
}
