package editor

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/clinicdesk/consult/internal/domain/consultation"
	"github.com/clinicdesk/consult/internal/domain/prescription"
)

func TestFinalizeWithNoItemsMakesNoNetworkCall(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	// Only the seeded blank row exists, so the persisted view is empty.
	if _, err := s.Finalize(context.Background()); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	if f.saveCount() != 0 || f.finalizeCount() != 0 {
		t.Errorf("validation failure reached the network: saves=%d finalizes=%d",
			f.saveCount(), f.finalizeCount())
	}
}

func TestFinalizeHappyPath(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Paracetamol 650mg", Dose: "1-0-1", Days: "5", Notes: "After food"})

	docURL, err := s.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !strings.HasSuffix(docURL, "/prescription/appt-1") {
		t.Errorf("unexpected document URL %q", docURL)
	}
	if f.saveCount() != 1 {
		t.Errorf("expected 1 item save, got %d", f.saveCount())
	}
	if f.finalizeCount() != 1 {
		t.Errorf("expected 1 finalize, got %d", f.finalizeCount())
	}
	if !s.Locked() {
		t.Error("session not locked after finalize")
	}

	// Subsequent edits and a second finalize must be rejected locally.
	if err := s.UpdateRow(0, prescription.Item{Medicine: "Dolo"}); !errors.Is(err, consultation.ErrLocked) {
		t.Errorf("expected ErrLocked on edit, got %v", err)
	}
	if _, err := s.Finalize(context.Background()); !errors.Is(err, consultation.ErrLocked) {
		t.Errorf("expected ErrLocked on refinalize, got %v", err)
	}
}

func TestFinalizeTreatsAlreadySavedAsBenign(t *testing.T) {
	f := newFakeClinic()
	f.saveStatus = http.StatusForbidden
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})

	docURL, err := s.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize after 403 save: %v", err)
	}
	if docURL == "" {
		t.Error("expected document URL")
	}
	if f.finalizeCount() != 1 {
		t.Errorf("expected finalize to proceed past 403, got %d calls", f.finalizeCount())
	}
	if !s.Locked() {
		t.Error("session not locked")
	}
}

func TestFinalizeAbortsOnSaveFailure(t *testing.T) {
	f := newFakeClinic()
	f.saveStatus = http.StatusInternalServerError
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})

	if _, err := s.Finalize(context.Background()); err == nil {
		t.Fatal("expected error from failed item save")
	}
	if f.finalizeCount() != 0 {
		t.Errorf("finalize submitted despite save failure, got %d calls", f.finalizeCount())
	}
	if s.Locked() {
		t.Error("session locked despite aborted finalize")
	}
}

func TestFinalizeSubmitsSnapshotForm(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Paracetamol 650mg", Dose: "1-0-1", Days: "5", Notes: "After food"})
	s.AddRow()
	s.UpdateRow(1, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})

	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	form := f.lastFinalizeForm()
	want := "Paracetamol 650mg | 1-0-1 | 5 days | After food\nDolo 650 | 1-1-1 | 3 days"
	if got := form.Get("finalPrescription"); got != want {
		t.Errorf("finalPrescription = %q, want %q", got, want)
	}
	if got := form.Get("appointment_id"); got != "appt-1" {
		t.Errorf("appointment_id = %q", got)
	}
}

func TestFinalizeStopsAutosave(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})
	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	before := f.autosaveCount()
	settle(s)
	if after := f.autosaveCount(); after != before {
		t.Errorf("autosave fired after finalize: %d -> %d", before, after)
	}
}
