package dto

import "tillshift/internal/model"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OperatorResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Email    *string `json:"email"`
	Role     string  `json:"role"`
	OutletID *string `json:"outlet_id"`
}

type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"`
	Operator     OperatorResponse `json:"operator"`
}

func NewOperatorResponse(o *model.Operator) OperatorResponse {
	resp := OperatorResponse{
		ID:       o.ID.String(),
		Username: o.Username,
		Name:     o.Name,
		Email:    o.Email,
		Role:     o.Role,
	}
	if o.OutletID != nil {
		id := o.OutletID.String()
		resp.OutletID = &id
	}
	return resp
}
