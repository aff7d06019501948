package dto

import (
	"time"

	"tillshift/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// StartShiftRequest carries only format rules in its tags. Amount ranges,
// precision, notes length and till preconditions are checked by the shift
// service so one 422 can list all of them.
type StartShiftRequest struct {
	OutletID      string           `json:"outlet_id"      validate:"required,uuid"`
	TillID        string           `json:"till_id"        validate:"required,uuid"`
	OperatingDate string           `json:"operating_date" validate:"required,datetime=2006-01-02"`
	OpeningCash   *decimal.Decimal `json:"opening_cash"`
	FloatingCash  *decimal.Decimal `json:"floating_cash"`
	Notes         *string          `json:"notes"`
}

// MissingFields reports amounts that must be present even when zero.
func (r StartShiftRequest) MissingFields() map[string]string {
	if r.OpeningCash == nil {
		return map[string]string{"opening_cash": "required"}
	}
	return nil
}

type CloseShiftRequest struct {
	ClosingCash *decimal.Decimal `json:"closing_cash"`
	// Optional: when absent the sales subsystem is asked for the figure.
	NetCashMovement *decimal.Decimal `json:"net_cash_movement"`
	Notes           *string          `json:"notes"`
}

func (r CloseShiftRequest) MissingFields() map[string]string {
	if r.ClosingCash == nil {
		return map[string]string{"closing_cash": "required"}
	}
	return nil
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ShiftResponse struct {
	ID              string  `json:"id"`
	OutletID        string  `json:"outlet_id"`
	TillID          string  `json:"till_id"`
	OperatorID      string  `json:"operator_id"`
	OperatingDate   string  `json:"operating_date"`
	Status          string  `json:"status"`
	OpeningCash     string  `json:"opening_cash"`
	FloatingCash    string  `json:"floating_cash"`
	Notes           *string `json:"notes"`
	StartedAt       string  `json:"started_at"`
	EndedAt         *string `json:"ended_at"`
	ClosingCash     *string `json:"closing_cash"`
	NetCashMovement *string `json:"net_cash_movement"`
	ExpectedCash    *string `json:"expected_cash"`
	Variance        *string `json:"variance"`
	VariancePct     *string `json:"variance_pct"`
	VarianceClass   *string `json:"variance_class"`
}

type ShiftListResponse struct {
	Data  []ShiftResponse `json:"data"`
	Page  int             `json:"page,omitempty"`
	Limit int             `json:"limit,omitempty"`
	Total int64           `json:"total"`
}

type ShiftExistsResponse struct {
	Exists bool `json:"exists"`
}

func NewShiftResponse(s *model.Shift) ShiftResponse {
	resp := ShiftResponse{
		ID:              s.ID.String(),
		OutletID:        s.OutletID.String(),
		TillID:          s.TillID.String(),
		OperatorID:      s.OperatorID.String(),
		OperatingDate:   model.FormatDate(s.OperatingDate),
		Status:          string(s.Status),
		OpeningCash:     Money(s.OpeningCash),
		FloatingCash:    Money(s.FloatingCash),
		Notes:           s.Notes,
		StartedAt:       s.StartedAt.UTC().Format(time.RFC3339),
		ClosingCash:     moneyPtr(s.ClosingCash),
		NetCashMovement: moneyPtr(s.NetCashMovement),
		ExpectedCash:    moneyPtr(s.ExpectedCash),
		Variance:        moneyPtr(s.Variance),
		VariancePct:     moneyPtr(s.VariancePct),
		VarianceClass:   s.VarianceClass,
	}
	if s.EndedAt != nil {
		t := s.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &t
	}
	return resp
}

func NewShiftListResponse(shifts []model.Shift) ShiftListResponse {
	data := make([]ShiftResponse, 0, len(shifts))
	for i := range shifts {
		data = append(data, NewShiftResponse(&shifts[i]))
	}
	return ShiftListResponse{Data: data, Total: int64(len(data))}
}

// Money renders an amount with exactly two decimals.
func Money(d decimal.Decimal) string { return d.StringFixed(2) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := Money(*d)
	return &s
}
