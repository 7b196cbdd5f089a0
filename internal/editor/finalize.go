package editor

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/clinic"
	"github.com/clinicdesk/consult/internal/domain/consultation"
	"github.com/clinicdesk/consult/internal/domain/prescription"
)

// ErrNoItems is returned when finalize is attempted with no medicine rows
var ErrNoItems = errors.New("at least one medicine is required")

// Finalize performs the one-way transition from editable draft to locked
// record and returns the document URL for the print/download view.
//
// The steps run strictly in order, each gated on the previous:
//
//  1. validate locally that at least one item exists (no network on failure)
//  2. persist the structured items; an already-finalized rejection is benign
//  3. embed the snapshot text in the finalize submission
//  4. submit the finalize form, locking the record server-side
//
// There is no rollback: a failure leaves whatever the last successful step
// produced, since the item save and the lock are independent server
// operations.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	if s.metrics != nil {
		s.metrics.FinalizeAttempts.Inc()
	}

	ctx, span := s.tracer.Start(ctx, "finalize",
		trace.WithAttributes(attribute.String("appointment_id", s.config.AppointmentID)))
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	if s.draft.Locked() {
		s.mu.Unlock()
		return "", consultation.ErrLocked
	}
	items := s.draft.Items()
	s.mu.Unlock()

	if len(items) == 0 {
		return "", ErrNoItems
	}

	if err := s.client.SavePrescription(ctx, s.config.AppointmentID, items); err != nil {
		if !errors.Is(err, clinic.ErrAlreadyFinalized) {
			return "", fmt.Errorf("save prescription: %w", err)
		}
		s.logger.Info("prescription already saved server-side, continuing",
			zap.String("appointment_id", s.config.AppointmentID))
	}

	snapshot := prescription.SnapshotText(items)

	form := url.Values{}
	form.Set("finalPrescription", snapshot)
	form.Set("appointment_id", s.config.AppointmentID)
	if err := s.client.Finalize(ctx, s.config.AppointmentID, form); err != nil {
		return "", fmt.Errorf("finalize submission: %w", err)
	}

	s.mu.Lock()
	s.draft.Lock()
	s.mu.Unlock()
	s.saver.Stop()

	if s.metrics != nil {
		s.metrics.FinalizeCompleted.Inc()
	}
	s.logger.Info("consultation finalized",
		zap.String("appointment_id", s.config.AppointmentID),
		zap.Int("items", len(items)))

	return s.client.DocumentURL(s.config.AppointmentID), nil
}
