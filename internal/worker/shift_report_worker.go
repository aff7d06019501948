package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tillshift/internal/infra"
	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ShiftReportWorker renders the close reconciliation PDF for a shift and
// mails it to the configured recipient.
type ShiftReportWorker struct {
	shifts      repository.ShiftRepository
	tills       repository.TillRepository
	operators   repository.OperatorRepository
	mailer      Mailer
	recipient   string
	storagePath string
}

type ShiftReportWorkerConfig struct {
	Shifts      repository.ShiftRepository
	Tills       repository.TillRepository
	Operators   repository.OperatorRepository
	Mailer      Mailer
	Recipient   string
	StoragePath string
}

func NewShiftReportWorker(cfg ShiftReportWorkerConfig) *ShiftReportWorker {
	return &ShiftReportWorker{
		shifts:      cfg.Shifts,
		tills:       cfg.Tills,
		operators:   cfg.Operators,
		mailer:      cfg.Mailer,
		recipient:   cfg.Recipient,
		storagePath: cfg.StoragePath,
	}
}

func (w *ShiftReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload ShiftReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("shift_report_worker: invalid payload")
		return nil
	}
	id, err := uuid.Parse(payload.ShiftID)
	if err != nil {
		log.Error().Str("shift_id", payload.ShiftID).Msg("shift_report_worker: invalid shift id")
		return nil
	}

	shift, err := w.shifts.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("shift_id", payload.ShiftID).Msg("shift_report_worker: shift vanished, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("shift_report_worker: load shift: %w", err)
	}
	if shift.Status != model.ShiftClosed {
		log.Warn().Str("shift_id", payload.ShiftID).Msg("shift_report_worker: shift not closed, skipping")
		return nil
	}

	path, err := infra.GenerateShiftReportPDF(shift, w.header(ctx, shift), w.storagePath)
	if err != nil {
		return fmt.Errorf("shift_report_worker: render: %w", err)
	}
	log.Info().Str("shift_id", payload.ShiftID).Str("path", path).Msg("shift_report_worker: report generated")

	if w.recipient == "" || w.mailer == nil || !w.mailer.Enabled() {
		return nil
	}
	subject := fmt.Sprintf("Shift closed: %s (%s)", model.FormatDate(shift.OperatingDate), valueOrEmpty(shift.VarianceClass))
	body := fmt.Sprintf("Shift %s closed with variance %s.\nThe reconciliation report is attached.",
		shift.ID, shift.Variance.StringFixed(2))
	if err := w.mailer.Send(w.recipient, subject, body, path); err != nil {
		return fmt.Errorf("shift_report_worker: mail: %w", err)
	}
	return nil
}

// header resolves display names. Lookup failures fall back to ids in the PDF.
func (w *ShiftReportWorker) header(ctx context.Context, shift *model.Shift) infra.ShiftReportHeader {
	var hdr infra.ShiftReportHeader
	if w.tills != nil {
		if t, err := w.tills.FindByID(ctx, shift.TillID); err == nil {
			hdr.TillName = t.Name
		}
	}
	if w.operators != nil {
		if o, err := w.operators.FindByID(ctx, shift.OperatorID); err == nil {
			hdr.OperatorName = o.Name
		}
	}
	return hdr
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
