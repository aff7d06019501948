package handler

import (
	"net/http"

	"tillshift/internal/dto"
	"tillshift/internal/middleware"
	"tillshift/internal/service"

	"github.com/gin-gonic/gin"
)

type TillsHandler struct{ svc service.TillService }

func NewTillsHandler(svc service.TillService) *TillsHandler { return &TillsHandler{svc: svc} }

// ListForOutlet godoc
// @Summary Tills of an outlet with their in-use flag
// @Tags tills
// @Produce json
// @Security BearerAuth
// @Param outlet_id path string true "Outlet ID"
// @Success 200 {array} dto.TillResponse
// @Router /v1/outlets/{outlet_id}/tills [get]
func (h *TillsHandler) ListForOutlet(c *gin.Context) {
	outletID, ok := parseUUIDParam(c, "outlet_id")
	if !ok {
		return
	}
	if !middleware.CanAccessOutlet(c, outletID) {
		forbidOutlet(c)
		return
	}
	tills, err := h.svc.ListForOutlet(c.Request.Context(), outletID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := make([]dto.TillResponse, 0, len(tills))
	for i := range tills {
		resp = append(resp, dto.NewTillResponse(&tills[i]))
	}
	c.JSON(http.StatusOK, resp)
}
