package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const maxNotesLen = 500

// CashMovementSource is the sales/expense subsystem: one signed net cash
// figure per shift (cash sales minus payouts, refunds and expenses).
type CashMovementSource interface {
	NetCashMovement(ctx context.Context, shiftID uuid.UUID) (decimal.Decimal, error)
}

// ActiveShiftCache remembers which shift an operator is running. Advisory
// only: every hit is re-read from the store.
type ActiveShiftCache interface {
	Get(ctx context.Context, operatorID uuid.UUID) (uuid.UUID, bool, error)
	Set(ctx context.Context, operatorID, shiftID uuid.UUID) error
	Invalidate(ctx context.Context, operatorID uuid.UUID) error
}

// ReportDispatcher queues post-close work.
type ReportDispatcher interface {
	EnqueueShiftReport(ctx context.Context, shiftID uuid.UUID) error
}

type StartInput struct {
	OutletID      uuid.UUID
	TillID        uuid.UUID
	OperatorID    uuid.UUID
	OperatingDate datatypes.Date
	OpeningCash   decimal.Decimal
	FloatingCash  decimal.Decimal
	Notes         *string
}

type CloseInput struct {
	ClosingCash decimal.Decimal
	// NetCashMovement overrides the sales subsystem figure when set.
	NetCashMovement *decimal.Decimal
	Notes           *string
}

type HistoryQuery struct {
	OutletID uuid.UUID
	From     *datatypes.Date
	To       *datatypes.Date
	Status   *model.ShiftStatus
	Page     int
	Limit    int
}

// ShiftService is the shift lifecycle manager:
//
//	[no shift] --Start--> OPEN --Close--> CLOSED
type ShiftService interface {
	Start(ctx context.Context, in StartInput) (*model.Shift, error)
	// ValidateStart reports every field problem Start would reject, till
	// preconditions included, without writing anything.
	ValidateStart(ctx context.Context, in StartInput) (map[string]string, error)
	Close(ctx context.Context, shiftID uuid.UUID, in CloseInput) (*model.Shift, error)
	Get(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error)
	GetActive(ctx context.Context, outletID uuid.UUID, tillID *uuid.UUID) (*model.Shift, error)
	// CheckExists is a pre-flight hint for clients. Start decides on its own.
	CheckExists(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (bool, error)
	ListOpen(ctx context.Context, outletID *uuid.UUID) ([]model.Shift, error)
	ListHistory(ctx context.Context, q HistoryQuery) ([]model.Shift, int64, error)
	ActiveForOperator(ctx context.Context, operatorID uuid.UUID) (*model.Shift, error)
}

type ShiftServiceOptions struct {
	Cache        ActiveShiftCache
	CashSource   CashMovementSource
	Dispatcher   ReportDispatcher
	Location     *time.Location
	StoreTimeout time.Duration
	Thresholds   VarianceThresholds
	Now          func() time.Time
}

type shiftService struct {
	shifts     repository.ShiftRepository
	tills      repository.TillRepository
	cache      ActiveShiftCache
	cash       CashMovementSource
	dispatcher ReportDispatcher
	loc        *time.Location
	timeout    time.Duration
	thresholds VarianceThresholds
	now        func() time.Time
}

func NewShiftService(shifts repository.ShiftRepository, tills repository.TillRepository, opts ShiftServiceOptions) ShiftService {
	s := &shiftService{
		shifts:     shifts,
		tills:      tills,
		cache:      opts.Cache,
		cash:       opts.CashSource,
		dispatcher: opts.Dispatcher,
		loc:        opts.Location,
		timeout:    opts.StoreTimeout,
		thresholds: opts.Thresholds,
		now:        opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.thresholds.CriticalPct.IsZero() && s.thresholds.WarnPct.IsZero() {
		s.thresholds = DefaultThresholds()
	}
	return s
}

// ── Start ─────────────────────────────────────────────────────────────────────

func (s *shiftService) Start(ctx context.Context, in StartInput) (*model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.checkStart(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, validationError(fields)
	}

	shift := &model.Shift{
		OutletID:      in.OutletID,
		TillID:        in.TillID,
		OperatorID:    in.OperatorID,
		OperatingDate: model.DateOf(time.Time(in.OperatingDate)),
		OpeningCash:   in.OpeningCash,
		FloatingCash:  in.FloatingCash,
		Notes:         trimmed(in.Notes),
		Status:        model.ShiftOpen,
		StartedAt:     s.now().UTC(),
	}

	// The unique indexes decide; there is no read-before-write here.
	if err := s.shifts.Insert(ctx, shift); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.startConflict(ctx, shift)
		}
		werr := writeError(ctx, "could not open shift", err)
		if werr.OutcomeUnknown {
			s.invalidateCache(in.OperatorID)
		}
		return nil, werr
	}

	log.Info().
		Str("shift_id", shift.ID.String()).
		Str("outlet_id", shift.OutletID.String()).
		Str("till_id", shift.TillID.String()).
		Str("operating_date", model.FormatDate(shift.OperatingDate)).
		Msg("shift opened")

	if s.cache != nil {
		if err := s.cache.Set(ctx, shift.OperatorID, shift.ID); err != nil {
			log.Warn().Err(err).Str("shift_id", shift.ID.String()).Msg("active shift cache: set failed")
		}
	}
	return shift, nil
}

func (s *shiftService) ValidateStart(ctx context.Context, in StartInput) (map[string]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.checkStart(ctx, in)
}

// checkStart collects every field problem with in, till preconditions
// included. The error is non-nil only when the till could not be read.
func (s *shiftService) checkStart(ctx context.Context, in StartInput) (map[string]string, error) {
	fields := s.validateStart(in)
	if in.OutletID == uuid.Nil || in.TillID == uuid.Nil {
		return fields, nil
	}
	till, err := s.tills.FindByID(ctx, in.TillID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		fields["till_id"] = "not_found"
	case err != nil:
		return nil, persistenceError("could not load till", err)
	case till.OutletID != in.OutletID:
		fields["till_id"] = "not_in_outlet"
	case !till.Active:
		fields["till_id"] = "inactive"
	}
	return fields, nil
}

func (s *shiftService) validateStart(in StartInput) map[string]string {
	fields := make(map[string]string)
	if in.OutletID == uuid.Nil {
		fields["outlet_id"] = "required"
	}
	if in.TillID == uuid.Nil {
		fields["till_id"] = "required"
	}
	if in.OperatorID == uuid.Nil {
		fields["operator_id"] = "required"
	}
	if time.Time(in.OperatingDate).IsZero() {
		fields["operating_date"] = "required"
	} else if time.Time(model.DateOf(time.Time(in.OperatingDate))).After(s.today()) {
		fields["operating_date"] = "future"
	}
	checkAmount(fields, "opening_cash", in.OpeningCash)
	checkAmount(fields, "floating_cash", in.FloatingCash)
	checkNotes(fields, in.Notes)
	return fields
}

// checkNotes counts characters, not bytes.
func checkNotes(fields map[string]string, notes *string) {
	if notes != nil && utf8.RuneCountInString(*notes) > maxNotesLen {
		fields["notes"] = "max"
	}
}

func checkAmount(fields map[string]string, name string, d decimal.Decimal) {
	switch {
	case d.IsNegative():
		fields[name] = "min"
	case tooPrecise(d):
		fields[name] = "precision"
	}
}

// startConflict names the shift that won. The blocker may have closed in the
// meantime; the conflict stands either way.
func (s *shiftService) startConflict(ctx context.Context, attempted *model.Shift) error {
	existing, err := s.shifts.FindBlocking(ctx, attempted.OutletID, attempted.TillID, attempted.OperatingDate)
	if err != nil {
		log.Warn().
			Str("outlet_id", attempted.OutletID.String()).
			Str("till_id", attempted.TillID.String()).
			Msg("shift start conflict; blocking shift not found")
		return conflictError("till already has a shift for this date or an open shift", nil)
	}

	msg := "till already has an open shift"
	if model.FormatDate(existing.OperatingDate) == model.FormatDate(attempted.OperatingDate) {
		msg = fmt.Sprintf("a shift already exists for this till on %s", model.FormatDate(existing.OperatingDate))
	}
	log.Warn().
		Str("existing_shift_id", existing.ID.String()).
		Str("till_id", attempted.TillID.String()).
		Msg("shift start conflict")
	id := existing.ID
	return conflictError(msg, &id)
}

// ── Close ─────────────────────────────────────────────────────────────────────

func (s *shiftService) Close(ctx context.Context, shiftID uuid.UUID, in CloseInput) (*model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if fields := ValidateClose(in); len(fields) > 0 {
		return nil, validationError(fields)
	}

	shift, err := s.shifts.FindByID(ctx, shiftID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFoundError("shift not found")
	}
	if err != nil {
		return nil, persistenceError("could not load shift", err)
	}
	if !shift.IsOpen() {
		return nil, conflictError("shift is already closed", &shift.ID)
	}

	net, err := s.netCashMovement(ctx, shift.ID, in.NetCashMovement)
	if err != nil {
		return nil, err
	}

	rec := Reconcile(shift.OpeningCash, shift.FloatingCash, net, in.ClosingCash, s.thresholds)
	endedAt := s.now().UTC()
	closing := in.ClosingCash
	class := rec.Class

	closed := *shift
	closed.Status = model.ShiftClosed
	closed.EndedAt = &endedAt
	closed.ClosingCash = &closing
	closed.NetCashMovement = &net
	closed.ExpectedCash = &rec.Expected
	closed.Variance = &rec.Variance
	closed.VariancePct = &rec.VariancePct
	closed.VarianceClass = &class
	closed.Notes = appendNotes(shift.Notes, in.Notes)

	if err := s.shifts.Close(ctx, &closed); err != nil {
		if errors.Is(err, repository.ErrNotOpen) {
			// lost the race to another closer
			return nil, conflictError("shift is already closed", &shift.ID)
		}
		werr := writeError(ctx, "could not close shift", err)
		if werr.OutcomeUnknown {
			s.invalidateCache(shift.OperatorID)
		}
		return nil, werr
	}

	log.Info().
		Str("shift_id", closed.ID.String()).
		Str("till_id", closed.TillID.String()).
		Str("variance", rec.Variance.StringFixed(2)).
		Str("variance_class", rec.Class).
		Msg("shift closed")

	s.invalidateCache(shift.OperatorID)
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueShiftReport(ctx, closed.ID); err != nil {
			log.Error().Err(err).Str("shift_id", closed.ID.String()).Msg("could not enqueue shift report")
		}
	}
	return &closed, nil
}

// ValidateClose reports every field problem with a close request. It needs
// no store access.
func ValidateClose(in CloseInput) map[string]string {
	fields := make(map[string]string)
	checkAmount(fields, "closing_cash", in.ClosingCash)
	if in.NetCashMovement != nil && tooPrecise(*in.NetCashMovement) {
		fields["net_cash_movement"] = "precision"
	}
	checkNotes(fields, in.Notes)
	return fields
}

func (s *shiftService) netCashMovement(ctx context.Context, shiftID uuid.UUID, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}
	if s.cash == nil {
		return decimal.Zero, validationError(map[string]string{"net_cash_movement": "required"})
	}
	net, err := s.cash.NetCashMovement(ctx, shiftID)
	if err != nil {
		return decimal.Zero, persistenceError("sales subsystem unavailable", err)
	}
	if tooPrecise(net) {
		return decimal.Zero, persistenceError("sales subsystem returned an invalid amount", fmt.Errorf("net cash movement %s", net))
	}
	return net, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *shiftService) Get(ctx context.Context, shiftID uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shift, err := s.shifts.FindByID(ctx, shiftID)
	if err != nil {
		return nil, readError(err, "shift not found")
	}
	return shift, nil
}

func (s *shiftService) GetActive(ctx context.Context, outletID uuid.UUID, tillID *uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shift, err := s.shifts.FindOpen(ctx, outletID, tillID)
	if err != nil {
		return nil, readError(err, "no active shift")
	}
	return shift, nil
}

func (s *shiftService) CheckExists(ctx context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.shifts.Exists(ctx, outletID, tillID, model.DateOf(time.Time(date)))
	if err != nil {
		return false, persistenceError("could not check shift", err)
	}
	return ok, nil
}

func (s *shiftService) ListOpen(ctx context.Context, outletID *uuid.UUID) ([]model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shifts, err := s.shifts.ListOpen(ctx, outletID)
	if err != nil {
		return nil, persistenceError("could not list open shifts", err)
	}
	return shifts, nil
}

func (s *shiftService) ListHistory(ctx context.Context, q HistoryQuery) ([]model.Shift, int64, error) {
	fields := make(map[string]string)
	if q.OutletID == uuid.Nil {
		fields["outlet_id"] = "required"
	}
	if q.From != nil && q.To != nil && time.Time(*q.From).After(time.Time(*q.To)) {
		fields["from"] = "after_to"
	}
	if len(fields) > 0 {
		return nil, 0, validationError(fields)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	shifts, total, err := s.shifts.ListHistory(ctx, repository.ShiftFilter{
		OutletID: q.OutletID,
		From:     q.From,
		To:       q.To,
		Status:   q.Status,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, 0, persistenceError("could not list shift history", err)
	}
	return shifts, total, nil
}

// ActiveForOperator serves the operator's "my shift" view. A cached id is
// only a pointer; the shift itself always comes from the store.
func (s *shiftService) ActiveForOperator(ctx context.Context, operatorID uuid.UUID) (*model.Shift, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if s.cache != nil {
		if shiftID, ok, err := s.cache.Get(ctx, operatorID); err != nil {
			log.Warn().Err(err).Msg("active shift cache: get failed")
		} else if ok {
			shift, err := s.shifts.FindByID(ctx, shiftID)
			if err == nil && shift.IsOpen() && shift.OperatorID == operatorID {
				return shift, nil
			}
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, persistenceError("could not load shift", err)
			}
			s.invalidateCache(operatorID)
		}
	}

	shift, err := s.shifts.FindOpenByOperator(ctx, operatorID)
	if err != nil {
		return nil, readError(err, "no active shift")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, operatorID, shift.ID); err != nil {
			log.Warn().Err(err).Msg("active shift cache: set failed")
		}
	}
	return shift, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *shiftService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// today is the current business date at UTC midnight.
func (s *shiftService) today() time.Time {
	return time.Time(model.DateOf(s.now().In(s.loc)))
}

// invalidateCache runs on its own context: the request context may already
// be the reason the outcome is unknown.
func (s *shiftService) invalidateCache(operatorID uuid.UUID) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, operatorID); err != nil {
		log.Warn().Err(err).Str("operator_id", operatorID.String()).Msg("active shift cache: invalidate failed")
	}
}

func readError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError(notFoundMsg)
	}
	return persistenceError("store read failed", err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func appendNotes(existing, closing *string) *string {
	c := trimmed(closing)
	switch {
	case c == nil:
		return existing
	case existing == nil:
		return c
	}
	joined := *existing + "\n[close] " + *c
	return &joined
}
