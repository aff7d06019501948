package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Mailer is the SMTP side used by workers (infra.Mailer).
type Mailer interface {
	Enabled() bool
	Send(to, subject, body, attachmentPath string) error
}

// EmailJobPayload is the job body for QueueEmail.
type EmailJobPayload struct {
	ToEmail        string `json:"to_email"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	AttachmentPath string `json:"attachment_path,omitempty"`
}

type EmailWorker struct {
	mailer Mailer
}

func NewEmailWorker(mailer Mailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one email. Bad payloads are dropped, SMTP failures retried.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return nil
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email, skipping")
		return nil
	}
	if !w.mailer.Enabled() {
		log.Warn().Str("subject", payload.Subject).Msg("email_worker: SMTP disabled, skipping")
		return nil
	}
	if err := w.mailer.Send(payload.ToEmail, payload.Subject, payload.Body, payload.AttachmentPath); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", payload.ToEmail, err)
	}
	log.Info().Str("to", payload.ToEmail).Str("subject", payload.Subject).Msg("email_worker: sent")
	return nil
}
