package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tillshift/internal/dto"
	"tillshift/internal/middleware"
	"tillshift/internal/model"
	"tillshift/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// ── Stub ShiftService ────────────────────────────────────────────────────────

type stubShiftService struct {
	start    func(service.StartInput) (*model.Shift, error)
	validate func(service.StartInput) (map[string]string, error)
	close    func(uuid.UUID, service.CloseInput) (*model.Shift, error)
	get      func(uuid.UUID) (*model.Shift, error)
	history  func(service.HistoryQuery) ([]model.Shift, int64, error)
	exists   bool
}

func (s *stubShiftService) Start(_ context.Context, in service.StartInput) (*model.Shift, error) {
	return s.start(in)
}

func (s *stubShiftService) ValidateStart(_ context.Context, in service.StartInput) (map[string]string, error) {
	if s.validate == nil {
		return nil, nil
	}
	return s.validate(in)
}

func (s *stubShiftService) Close(_ context.Context, id uuid.UUID, in service.CloseInput) (*model.Shift, error) {
	return s.close(id, in)
}

func (s *stubShiftService) Get(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	return s.get(id)
}

func (s *stubShiftService) GetActive(context.Context, uuid.UUID, *uuid.UUID) (*model.Shift, error) {
	return nil, &service.Error{Kind: service.KindNotFound, Message: "no active shift"}
}

func (s *stubShiftService) CheckExists(context.Context, uuid.UUID, uuid.UUID, datatypes.Date) (bool, error) {
	return s.exists, nil
}

func (s *stubShiftService) ListOpen(context.Context, *uuid.UUID) ([]model.Shift, error) {
	return nil, nil
}

func (s *stubShiftService) ListHistory(_ context.Context, q service.HistoryQuery) ([]model.Shift, int64, error) {
	return s.history(q)
}

func (s *stubShiftService) ActiveForOperator(context.Context, uuid.UUID) (*model.Shift, error) {
	return nil, &service.Error{Kind: service.KindNotFound, Message: "no active shift"}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

var testOperator = uuid.New()

func testRouter(svc service.ShiftService, pinnedOutlet *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			UserID:   testOperator.String(),
			Role:     model.RoleCashier,
			OutletID: pinnedOutlet,
		})
	})
	h := NewShiftsHandler(svc)
	r.POST("/v1/shifts", h.Start)
	r.GET("/v1/shifts/active", h.Active)
	r.GET("/v1/shifts/mine", h.Mine)
	r.GET("/v1/shifts/exists", h.Exists)
	r.GET("/v1/shifts/open", h.Open)
	r.GET("/v1/shifts/history", h.History)
	r.GET("/v1/shifts/:id", h.Get)
	r.POST("/v1/shifts/:id/close", h.Close)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleShift(outlet uuid.UUID) *model.Shift {
	return &model.Shift{
		ID:            uuid.New(),
		OutletID:      outlet,
		TillID:        uuid.New(),
		OperatorID:    testOperator,
		OperatingDate: model.DateOf(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		OpeningCash:   decimal.RequireFromString("100"),
		Status:        model.ShiftOpen,
		StartedAt:     time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
	}
}

// ── Start ────────────────────────────────────────────────────────────────────

func TestStart_Created(t *testing.T) {
	outlet := uuid.New()
	var got service.StartInput
	svc := &stubShiftService{start: func(in service.StartInput) (*model.Shift, error) {
		got = in
		s := sampleShift(in.OutletID)
		s.TillID = in.TillID
		return s, nil
	}}
	till := uuid.New()

	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id":      outlet.String(),
		"till_id":        till.String(),
		"operating_date": "2026-03-14",
		"opening_cash":   "100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, testOperator, got.OperatorID)
	assert.True(t, got.FloatingCash.IsZero())
	assert.Equal(t, "2026-03-14", model.FormatDate(got.OperatingDate))

	var resp dto.ShiftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "100.00", resp.OpeningCash)
	assert.Equal(t, "OPEN", resp.Status)
	assert.Equal(t, "2026-03-14", resp.OperatingDate)
}

func TestStart_ValidationListsEveryField(t *testing.T) {
	svc := &stubShiftService{validate: func(in service.StartInput) (map[string]string, error) {
		// format failures arrive as zero values
		assert.Equal(t, uuid.Nil, in.OutletID)
		return map[string]string{"outlet_id": "required", "floating_cash": "min"}, nil
	}}
	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id":      "nope",
		"operating_date": "14/03/2026",
		"floating_cash":  "-1",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{
		"outlet_id":      "uuid",
		"till_id":        "required",
		"operating_date": "datetime",
		"opening_cash":   "required",
		"floating_cash":  "min",
	}, resp.Fields)
}

func TestStart_ValidateStoreDown_503(t *testing.T) {
	svc := &stubShiftService{validate: func(service.StartInput) (map[string]string, error) {
		return nil, &service.Error{Kind: service.KindPersistence, Message: "could not load till"}
	}}
	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id": uuid.NewString(), "till_id": uuid.NewString(), "operating_date": "2026-03-14",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStart_Conflict_NamesExistingShift(t *testing.T) {
	existing := uuid.New()
	svc := &stubShiftService{start: func(service.StartInput) (*model.Shift, error) {
		return nil, &service.Error{Kind: service.KindConflict, Message: "till already has an open shift", ShiftID: &existing}
	}}
	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id": uuid.NewString(), "till_id": uuid.NewString(),
		"operating_date": "2026-03-14", "opening_cash": "0",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), existing.String())
}

func TestStart_OutcomeUnknown_504(t *testing.T) {
	svc := &stubShiftService{start: func(service.StartInput) (*model.Shift, error) {
		return nil, &service.Error{Kind: service.KindPersistence, Message: "could not open shift", OutcomeUnknown: true, Err: context.DeadlineExceeded}
	}}
	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id": uuid.NewString(), "till_id": uuid.NewString(),
		"operating_date": "2026-03-14", "opening_cash": "10",
	})
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.JSONEq(t, `{"detail":"could not open shift","outcome_unknown":true}`, w.Body.String())
}

func TestStart_PinnedOperatorOtherOutlet_403(t *testing.T) {
	pinned := uuid.NewString()
	svc := &stubShiftService{}
	w := doJSON(testRouter(svc, &pinned), http.MethodPost, "/v1/shifts", map[string]any{
		"outlet_id": uuid.NewString(), "till_id": uuid.NewString(),
		"operating_date": "2026-03-14", "opening_cash": "10",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ── Close ────────────────────────────────────────────────────────────────────

func TestClose_OK(t *testing.T) {
	outlet := uuid.New()
	shift := sampleShift(outlet)
	svc := &stubShiftService{
		get: func(uuid.UUID) (*model.Shift, error) { return shift, nil },
		close: func(id uuid.UUID, in service.CloseInput) (*model.Shift, error) {
			assert.Equal(t, shift.ID, id)
			assert.True(t, in.ClosingCash.Equal(decimal.RequireFromString("150")))
			require.NotNil(t, in.NetCashMovement)
			closed := *shift
			closed.Status = model.ShiftClosed
			v := decimal.RequireFromString("10")
			closed.Variance = &v
			return &closed, nil
		},
	}
	pinned := outlet.String()
	w := doJSON(testRouter(svc, &pinned), http.MethodPost, "/v1/shifts/"+shift.ID.String()+"/close",
		map[string]any{"closing_cash": "150", "net_cash_movement": "40"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.ShiftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "CLOSED", resp.Status)
	require.NotNil(t, resp.Variance)
	assert.Equal(t, "10.00", *resp.Variance)
}

func TestClose_MissingClosingCash_422(t *testing.T) {
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodPost, "/v1/shifts/"+uuid.NewString()+"/close", map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "closing_cash")
}

func TestClose_NotFound_404(t *testing.T) {
	svc := &stubShiftService{close: func(uuid.UUID, service.CloseInput) (*model.Shift, error) {
		return nil, &service.Error{Kind: service.KindNotFound, Message: "shift not found"}
	}}
	w := doJSON(testRouter(svc, nil), http.MethodPost, "/v1/shifts/"+uuid.NewString()+"/close", map[string]any{"closing_cash": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClose_BadID_422(t *testing.T) {
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodPost, "/v1/shifts/abc/close",
		map[string]any{"closing_cash": "-1", "net_cash_movement": "0.001"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{
		"id":                "uuid",
		"closing_cash":      "min",
		"net_cash_movement": "precision",
	}, resp.Fields)
}

// ── Reads ────────────────────────────────────────────────────────────────────

func TestActive_RequiresOutlet(t *testing.T) {
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodGet, "/v1/shifts/active", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"outlet_id":"required"`)

	w = doJSON(testRouter(&stubShiftService{}, nil), http.MethodGet, "/v1/shifts/active?outlet_id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMine_NotFound(t *testing.T) {
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodGet, "/v1/shifts/mine", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExists(t *testing.T) {
	svc := &stubShiftService{exists: true}
	path := "/v1/shifts/exists?outlet_id=" + uuid.NewString() + "&till_id=" + uuid.NewString() + "&operating_date=2026-03-14"
	w := doJSON(testRouter(svc, nil), http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":true}`, w.Body.String())

	w = doJSON(testRouter(svc, nil), http.MethodGet, "/v1/shifts/exists?outlet_id="+uuid.NewString(), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"till_id":"required"`)
	assert.Contains(t, w.Body.String(), `"operating_date":"required"`)
}

func TestGet_PinnedOtherOutlet_403(t *testing.T) {
	shift := sampleShift(uuid.New())
	svc := &stubShiftService{get: func(uuid.UUID) (*model.Shift, error) { return shift, nil }}
	pinned := uuid.NewString()
	w := doJSON(testRouter(svc, &pinned), http.MethodGet, "/v1/shifts/"+shift.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOpen_Empty(t *testing.T) {
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodGet, "/v1/shifts/open", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"total":0}`, w.Body.String())
}

func TestHistory(t *testing.T) {
	outlet := uuid.New()
	var got service.HistoryQuery
	svc := &stubShiftService{history: func(q service.HistoryQuery) ([]model.Shift, int64, error) {
		got = q
		return []model.Shift{*sampleShift(outlet)}, 41, nil
	}}
	path := "/v1/shifts/history?outlet_id=" + outlet.String() + "&from=2026-03-01&to=2026-03-14&status=CLOSED&page=3&limit=20"
	w := doJSON(testRouter(svc, nil), http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, outlet, got.OutletID)
	require.NotNil(t, got.Status)
	assert.Equal(t, model.ShiftClosed, *got.Status)
	assert.Equal(t, 3, got.Page)

	var resp dto.ShiftListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(41), resp.Total)
	assert.Equal(t, 3, resp.Page)
	assert.Len(t, resp.Data, 1)
}

func TestHistory_BadQuery_422(t *testing.T) {
	path := "/v1/shifts/history?outlet_id=" + uuid.NewString() + "&status=PAUSED&limit=500&page=0"
	w := doJSON(testRouter(&stubShiftService{}, nil), http.MethodGet, path, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"status": "oneof", "limit": "max", "page": "min"}, resp.Fields)
}
