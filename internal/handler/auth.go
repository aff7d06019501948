package handler

import (
	"errors"
	"net/http"

	"tillshift/internal/apierror"
	"tillshift/internal/dto"
	"tillshift/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Operator login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		authFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Exchanges a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "Refresh token"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		authFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func authFailure(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, apierror.New(err.Error()))
		return
	}
	log.Error().Err(err).Msg("auth: unexpected failure")
	c.JSON(http.StatusServiceUnavailable, apierror.NewUnavailable("authentication unavailable", false))
}
