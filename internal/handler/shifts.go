package handler

import (
	"net/http"
	"strconv"

	"tillshift/internal/apierror"
	"tillshift/internal/dto"
	"tillshift/internal/middleware"
	"tillshift/internal/model"
	"tillshift/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ShiftsHandler struct{ svc service.ShiftService }

func NewShiftsHandler(svc service.ShiftService) *ShiftsHandler { return &ShiftsHandler{svc: svc} }

// Start godoc
// @Summary Opens a shift on a till for the authenticated operator
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.StartShiftRequest true "Opening declaration"
// @Success 201 {object} dto.ShiftResponse
// @Failure 409 {object} apierror.ConflictError
// @Failure 422 {object} apierror.ValidationError
// @Failure 503 {object} apierror.UnavailableError
// @Router /v1/shifts [post]
func (h *ShiftsHandler) Start(c *gin.Context) {
	var req dto.StartShiftRequest
	fields, ok := bindJSON(c, &req)
	if !ok {
		return
	}
	// Values that fail their format rule stay zero; the service reports
	// them as required and the binding error takes precedence.
	in := service.StartInput{
		OperatorID:   middleware.OperatorID(c),
		FloatingCash: decimal.Zero,
		Notes:        req.Notes,
	}
	if id, err := uuid.Parse(req.OutletID); err == nil {
		in.OutletID = id
	}
	if id, err := uuid.Parse(req.TillID); err == nil {
		in.TillID = id
	}
	if date, err := model.ParseDate(req.OperatingDate); err == nil {
		in.OperatingDate = date
	} else if _, seen := fields["operating_date"]; !seen {
		fields["operating_date"] = "datetime"
	}
	if req.OpeningCash != nil {
		in.OpeningCash = *req.OpeningCash
	}
	if req.FloatingCash != nil {
		in.FloatingCash = *req.FloatingCash
	}
	if in.OutletID != uuid.Nil && !middleware.CanAccessOutlet(c, in.OutletID) {
		forbidOutlet(c)
		return
	}

	if len(fields) > 0 {
		more, err := h.svc.ValidateStart(c.Request.Context(), in)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(mergeFields(fields, more)))
		return
	}

	shift, err := h.svc.Start(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewShiftResponse(shift))
}

// Close godoc
// @Summary Closes an open shift and reconciles the counted cash
// @Tags shifts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Param body body dto.CloseShiftRequest true "Closing count"
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.ConflictError
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/shifts/{id}/close [post]
func (h *ShiftsHandler) Close(c *gin.Context) {
	var req dto.CloseShiftRequest
	fields, ok := bindJSON(c, &req)
	if !ok {
		return
	}
	in := service.CloseInput{NetCashMovement: req.NetCashMovement, Notes: req.Notes}
	if req.ClosingCash != nil {
		in.ClosingCash = *req.ClosingCash
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fields["id"] = "uuid"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(mergeFields(fields, service.ValidateClose(in))))
		return
	}
	if !h.authorizeShift(c, id) {
		return
	}

	shift, err := h.svc.Close(c.Request.Context(), id, in)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewShiftResponse(shift))
}

// Get godoc
// @Summary Shift by id
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Shift ID"
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/{id} [get]
func (h *ShiftsHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	shift, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !middleware.CanAccessOutlet(c, shift.OutletID) {
		forbidOutlet(c)
		return
	}
	c.JSON(http.StatusOK, dto.NewShiftResponse(shift))
}

// Active godoc
// @Summary Open shift of an outlet, optionally narrowed to one till
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param outlet_id query string true "Outlet ID"
// @Param till_id query string false "Till ID"
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/active [get]
func (h *ShiftsHandler) Active(c *gin.Context) {
	fields := make(map[string]string)
	outletID := queryUUID(c, "outlet_id", fields)
	tillID := queryUUID(c, "till_id", fields)
	if outletID == nil && fields["outlet_id"] == "" {
		fields["outlet_id"] = "required"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}
	if !middleware.CanAccessOutlet(c, *outletID) {
		forbidOutlet(c)
		return
	}

	shift, err := h.svc.GetActive(c.Request.Context(), *outletID, tillID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewShiftResponse(shift))
}

// Mine godoc
// @Summary Open shift of the authenticated operator
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ShiftResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/shifts/mine [get]
func (h *ShiftsHandler) Mine(c *gin.Context) {
	shift, err := h.svc.ActiveForOperator(c.Request.Context(), middleware.OperatorID(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewShiftResponse(shift))
}

// Exists godoc
// @Summary Pre-flight check for a shift on (outlet, till, date)
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param outlet_id query string true "Outlet ID"
// @Param till_id query string true "Till ID"
// @Param operating_date query string true "YYYY-MM-DD"
// @Success 200 {object} dto.ShiftExistsResponse
// @Router /v1/shifts/exists [get]
func (h *ShiftsHandler) Exists(c *gin.Context) {
	fields := make(map[string]string)
	outletID := queryUUID(c, "outlet_id", fields)
	tillID := queryUUID(c, "till_id", fields)
	date := queryDate(c, "operating_date", fields)
	requireQuery(fields, "outlet_id", outletID != nil)
	requireQuery(fields, "till_id", tillID != nil)
	requireQuery(fields, "operating_date", date != nil)
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}
	if !middleware.CanAccessOutlet(c, *outletID) {
		forbidOutlet(c)
		return
	}

	exists, err := h.svc.CheckExists(c.Request.Context(), *outletID, *tillID, *date)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ShiftExistsResponse{Exists: exists})
}

// Open godoc
// @Summary Every open shift, optionally for one outlet
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param outlet_id query string false "Outlet ID"
// @Success 200 {object} dto.ShiftListResponse
// @Router /v1/shifts/open [get]
func (h *ShiftsHandler) Open(c *gin.Context) {
	fields := make(map[string]string)
	outletID := queryUUID(c, "outlet_id", fields)
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}
	if outletID == nil {
		// pinned tokens only ever see their own outlet
		outletID = pinnedOutlet(c)
	}
	if outletID != nil && !middleware.CanAccessOutlet(c, *outletID) {
		forbidOutlet(c)
		return
	}

	shifts, err := h.svc.ListOpen(c.Request.Context(), outletID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewShiftListResponse(shifts))
}

// History godoc
// @Summary Paged shift history of an outlet, newest operating date first
// @Tags shifts
// @Produce json
// @Security BearerAuth
// @Param outlet_id query string true "Outlet ID"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Param status query string false "OPEN or CLOSED"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} dto.ShiftListResponse
// @Router /v1/shifts/history [get]
func (h *ShiftsHandler) History(c *gin.Context) {
	fields := make(map[string]string)
	outletID := queryUUID(c, "outlet_id", fields)
	requireQuery(fields, "outlet_id", outletID != nil)
	from := queryDate(c, "from", fields)
	to := queryDate(c, "to", fields)
	page := queryInt(c, "page", 1, fields)
	limit := queryInt(c, "limit", 20, fields)
	if limit > 100 {
		fields["limit"] = "max"
	}
	var status *model.ShiftStatus
	switch raw := model.ShiftStatus(c.Query("status")); raw {
	case "":
	case model.ShiftOpen, model.ShiftClosed:
		status = &raw
	default:
		fields["status"] = "oneof"
	}
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return
	}
	if !middleware.CanAccessOutlet(c, *outletID) {
		forbidOutlet(c)
		return
	}

	shifts, total, err := h.svc.ListHistory(c.Request.Context(), service.HistoryQuery{
		OutletID: *outletID,
		From:     from,
		To:       to,
		Status:   status,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := dto.NewShiftListResponse(shifts)
	resp.Page = page
	resp.Limit = limit
	resp.Total = total
	c.JSON(http.StatusOK, resp)
}

// authorizeShift loads the shift to check the caller's outlet. Writes the
// response and returns false when the request must stop.
func (h *ShiftsHandler) authorizeShift(c *gin.Context, id uuid.UUID) bool {
	if pinnedOutlet(c) == nil {
		return true
	}
	shift, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return false
	}
	if !middleware.CanAccessOutlet(c, shift.OutletID) {
		forbidOutlet(c)
		return false
	}
	return true
}

func pinnedOutlet(c *gin.Context) *uuid.UUID {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.OutletID == nil {
		return nil
	}
	id, err := uuid.Parse(*claims.OutletID)
	if err != nil {
		return nil
	}
	return &id
}

func requireQuery(fields map[string]string, name string, present bool) {
	if !present && fields[name] == "" {
		fields[name] = "required"
	}
}

func queryDate(c *gin.Context, name string, fields map[string]string) *datatypes.Date {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		fields[name] = "datetime"
		return nil
	}
	return &d
}

func queryInt(c *gin.Context, name string, def int, fields map[string]string) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		fields[name] = "min"
		return def
	}
	return n
}
