package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/clinicdesk/consult/internal/domain/prescription"
)

func TestDictationAccumulatesTranscript(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	d, err := s.StartDictation("doctor_notes")
	if err != nil {
		t.Fatalf("start dictation: %v", err)
	}

	d.AppendFinal("Patient reports fever")
	d.SetInterim("for three")
	if got := d.Text(); got != "Patient reports fever for three" {
		t.Errorf("transcript %q", got)
	}

	// A finalized segment supersedes the interim tail.
	d.AppendFinal("for three days")
	if got := d.Text(); got != "Patient reports fever for three days" {
		t.Errorf("transcript %q", got)
	}
}

func TestDictationCloseCommitsText(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	d, err := s.StartDictation("doctor_notes")
	if err != nil {
		t.Fatalf("start dictation: %v", err)
	}
	d.AppendFinal("Advise rest and fluids")
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := s.draft.FreeTexts()["doctor_notes"]; got != "Advise rest and fluids" {
		t.Errorf("committed text %q", got)
	}

	// Commit arms the autosave channel.
	settle(s)
	if f.autosaveCount() != 1 {
		t.Errorf("expected 1 autosave after commit, got %d", f.autosaveCount())
	}
	if got := f.lastAutosave()["doctor_notes"]; got != "Advise rest and fluids" {
		t.Errorf("autosaved text %q", got)
	}
}

func TestDictationEmptyCloseCommitsNothing(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	d, err := s.StartDictation("doctor_notes")
	if err != nil {
		t.Fatalf("start dictation: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	settle(s)
	if f.autosaveCount() != 0 {
		t.Errorf("empty dictation triggered autosave: %d", f.autosaveCount())
	}
}

func TestDictationClosedTwice(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	d, _ := s.StartDictation("doctor_notes")
	d.Close()
	if err := d.Close(); !errors.Is(err, ErrDictationClosed) {
		t.Errorf("expected ErrDictationClosed, got %v", err)
	}
	if err := d.AppendFinal("late"); !errors.Is(err, ErrDictationClosed) {
		t.Errorf("expected ErrDictationClosed on append, got %v", err)
	}
}

func TestDictationRejectedWhenLocked(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})
	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := s.StartDictation("doctor_notes"); err == nil {
		t.Error("dictation allowed on locked consultation")
	}
}
