package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ── In-memory ShiftRepository ────────────────────────────────────────────────
// Enforces the same two unique keys as the schema, atomically under one lock.

type memShiftRepo struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]model.Shift

	// insertHook, when set, runs before Insert touches the map.
	insertHook func(ctx context.Context) error
	closeHook  func(ctx context.Context) error
	readErr    error
}

func newMemShiftRepo() *memShiftRepo {
	return &memShiftRepo{shifts: make(map[uuid.UUID]model.Shift)}
}

func sameDate(a, b datatypes.Date) bool {
	return model.FormatDate(a) == model.FormatDate(b)
}

func (r *memShiftRepo) Insert(ctx context.Context, s *model.Shift) error {
	if r.insertHook != nil {
		if err := r.insertHook(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.shifts {
		if e.OutletID != s.OutletID || e.TillID != s.TillID {
			continue
		}
		if sameDate(e.OperatingDate, s.OperatingDate) || (e.IsOpen() && s.IsOpen()) {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.shifts[s.ID] = *s
	return nil
}

func (r *memShiftRepo) Close(ctx context.Context, s *model.Shift) error {
	if r.closeHook != nil {
		if err := r.closeHook(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.shifts[s.ID]
	if !ok || !e.IsOpen() {
		return repository.ErrNotOpen
	}
	r.shifts[s.ID] = *s
	return nil
}

func (r *memShiftRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	s, ok := r.shifts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *memShiftRepo) FindBlocking(_ context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var open *model.Shift
	for _, e := range r.shifts {
		e := e
		if e.OutletID != outletID || e.TillID != tillID {
			continue
		}
		if sameDate(e.OperatingDate, date) {
			return &e, nil
		}
		if e.IsOpen() {
			open = &e
		}
	}
	if open == nil {
		return nil, repository.ErrNotFound
	}
	return open, nil
}

func (r *memShiftRepo) FindOpen(_ context.Context, outletID uuid.UUID, tillID *uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	for _, e := range r.shifts {
		e := e
		if e.IsOpen() && e.OutletID == outletID && (tillID == nil || e.TillID == *tillID) {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memShiftRepo) FindOpenByOperator(_ context.Context, operatorID uuid.UUID) (*model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.shifts {
		e := e
		if e.IsOpen() && e.OperatorID == operatorID {
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memShiftRepo) Exists(_ context.Context, outletID, tillID uuid.UUID, date datatypes.Date) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return false, r.readErr
	}
	for _, e := range r.shifts {
		if e.OutletID == outletID && e.TillID == tillID && sameDate(e.OperatingDate, date) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memShiftRepo) ListOpen(_ context.Context, outletID *uuid.UUID) ([]model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Shift
	for _, e := range r.shifts {
		if e.IsOpen() && (outletID == nil || e.OutletID == *outletID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memShiftRepo) ListHistory(_ context.Context, f repository.ShiftFilter) ([]model.Shift, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Shift
	for _, e := range r.shifts {
		if e.OutletID != f.OutletID {
			continue
		}
		day := time.Time(e.OperatingDate)
		if f.From != nil && day.Before(time.Time(*f.From)) {
			continue
		}
		if f.To != nil && day.After(time.Time(*f.To)) {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return time.Time(out[i].OperatingDate).After(time.Time(out[j].OperatingDate))
	})
	return out, int64(len(out)), nil
}

func (r *memShiftRepo) ListStaleOpen(_ context.Context, before datatypes.Date) ([]model.Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Shift
	for _, e := range r.shifts {
		if e.IsOpen() && time.Time(e.OperatingDate).Before(time.Time(before)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memShiftRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shifts)
}

// ── In-memory TillRepository ─────────────────────────────────────────────────

type memTillRepo struct {
	tills   map[uuid.UUID]model.Till
	readErr error
}

func newMemTillRepo(tills ...model.Till) *memTillRepo {
	r := &memTillRepo{tills: make(map[uuid.UUID]model.Till)}
	for _, t := range tills {
		r.tills[t.ID] = t
	}
	return r
}

func (r *memTillRepo) Create(_ context.Context, t *model.Till) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	r.tills[t.ID] = *t
	return nil
}

func (r *memTillRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Till, error) {
	if r.readErr != nil {
		return nil, r.readErr
	}
	t, ok := r.tills[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *memTillRepo) ListByOutletWithUsage(_ context.Context, outletID uuid.UUID) ([]model.TillStatus, error) {
	var out []model.TillStatus
	for _, t := range r.tills {
		if t.OutletID == outletID {
			out = append(out, model.TillStatus{Till: t})
		}
	}
	return out, nil
}

// ── Collaborator stubs ───────────────────────────────────────────────────────

type memCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]uuid.UUID
	invalidated int
}

func newMemCache() *memCache { return &memCache{entries: make(map[uuid.UUID]uuid.UUID)} }

func (c *memCache) Get(_ context.Context, operatorID uuid.UUID) (uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.entries[operatorID]
	return id, ok, nil
}

func (c *memCache) Set(_ context.Context, operatorID, shiftID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[operatorID] = shiftID
	return nil
}

func (c *memCache) Invalidate(_ context.Context, operatorID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, operatorID)
	c.invalidated++
	return nil
}

type stubCashSource struct {
	net decimal.Decimal
	err error
}

func (s stubCashSource) NetCashMovement(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return s.net, s.err
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (d *recordingDispatcher) EnqueueShiftReport(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return nil
}

// blockUntilDone simulates a store write that outlives the deadline.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

var errStoreDown = errors.New("connection refused")
