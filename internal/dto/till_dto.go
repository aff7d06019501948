package dto

import "tillshift/internal/model"

type TillResponse struct {
	ID          string  `json:"id"`
	OutletID    string  `json:"outlet_id"`
	Name        string  `json:"name"`
	Active      bool    `json:"active"`
	InUse       bool    `json:"in_use"`
	OpenShiftID *string `json:"open_shift_id"`
}

func NewTillResponse(t *model.TillStatus) TillResponse {
	resp := TillResponse{
		ID:       t.ID.String(),
		OutletID: t.OutletID.String(),
		Name:     t.Name,
		Active:   t.Active,
		InUse:    t.InUse,
	}
	if t.OpenShiftID != nil {
		id := t.OpenShiftID.String()
		resp.OpenShiftID = &id
	}
	return resp
}
