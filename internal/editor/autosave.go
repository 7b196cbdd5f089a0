package editor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/domain/consultation"
)

// autosaveFired runs on the debouncer goroutine after the quiet window.
// It assembles the sparse payload and sends it fire-and-forget: no retry,
// no cancellation of superseded sends, and failures are swallowed so a
// transient save problem never interrupts the consultation.
func (s *Session) autosaveFired() {
	s.mu.Lock()
	closed := s.closed
	locked := s.draft.Locked()
	s.mu.Unlock()

	if closed {
		return
	}
	if locked {
		s.skip("locked")
		return
	}
	if !s.client.AutosaveConfigured() {
		s.skip("no_endpoint")
		return
	}

	payload := s.buildPayload()
	if len(payload) == 0 {
		s.skip("empty")
		return
	}

	s.notify(StatusSaving, time.Now())

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, span := s.tracer.Start(context.Background(), "autosave",
			trace.WithAttributes(
				attribute.String("appointment_id", s.config.AppointmentID),
				attribute.Int("fields", len(payload)),
			))
		defer span.End()

		if err := s.client.Autosave(ctx, payload); err != nil {
			// No user-facing error for a failed partial save.
			if s.metrics != nil {
				s.metrics.AutosaveFailures.Inc()
			}
			s.logger.Debug("autosave failed",
				zap.String("appointment_id", s.config.AppointmentID),
				zap.Error(err))
			s.notify(StatusIdle, time.Now())
			return
		}

		if s.metrics != nil {
			s.metrics.AutosavesSent.Inc()
		}
		s.notify(StatusSaved, time.Now())
	}()
}

// buildPayload assembles the sparse partial update: only fields whose
// trimmed value is non-empty appear, drawn from the tag field joins, the
// auxiliary free-text fields, the vitals, and the prescription snapshot
// when a provider is attached.
func (s *Session) buildPayload() map[string]string {
	s.mu.Lock()
	payload := make(map[string]string)
	for _, field := range consultation.TagFields {
		if v, ok := trimmedNonEmpty(s.draft.TagJoin(field)); ok {
			payload[string(field)] = v
		}
	}
	for name, value := range s.draft.FreeTexts() {
		if v, ok := trimmedNonEmpty(value); ok {
			payload[name] = v
		}
	}
	for name, value := range s.draft.Vitals() {
		if v, ok := trimmedNonEmpty(value); ok {
			payload[name] = v
		}
	}
	provider := s.snapshot
	s.mu.Unlock()

	// The provider may be the session itself; call it outside the lock.
	if provider != nil {
		if v, ok := trimmedNonEmpty(provider.SnapshotText()); ok {
			payload["prescription"] = v
		}
	}
	return payload
}

func (s *Session) skip(reason string) {
	if s.metrics != nil {
		s.metrics.AutosavesSkipped.WithLabelValues(reason).Inc()
	}
	s.logger.Debug("autosave skipped",
		zap.String("appointment_id", s.config.AppointmentID),
		zap.String("reason", reason))
}

// Flush sends any unsaved state immediately, bypassing the debounce
// window. The terminal client calls this on exit; the browser original had
// no equivalent and simply lost the delta.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	locked := s.draft.Locked()
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if locked || !s.client.AutosaveConfigured() {
		return nil
	}

	payload := s.buildPayload()
	if len(payload) == 0 {
		return nil
	}

	if err := s.client.Autosave(ctx, payload); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.AutosavesSent.Inc()
	}
	s.notify(StatusSaved, time.Now())
	return nil
}
