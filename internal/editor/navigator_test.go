package editor

import (
	"context"
	"testing"

	"github.com/clinicdesk/consult/internal/domain/prescription"
)

func TestNavigatorTraversal(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	n := s.NewNavigator()
	n.RegisterField("symptoms")
	n.RegisterField("diagnosis")
	n.RegisterField("medicine-0")

	if got := n.Active(); got != "symptoms" {
		t.Fatalf("initial focus %q, want symptoms", got)
	}

	n.Handle(KeyEnter)
	if got := n.Active(); got != "diagnosis" {
		t.Errorf("after Enter focus %q, want diagnosis", got)
	}
	n.Handle(KeyArrowDown)
	n.Handle(KeyArrowDown) // stops at last field
	if got := n.Active(); got != "medicine-0" {
		t.Errorf("after ArrowDown focus %q, want medicine-0", got)
	}
	n.Handle(KeyArrowUp)
	if got := n.Active(); got != "diagnosis" {
		t.Errorf("after ArrowUp focus %q, want diagnosis", got)
	}

	if !n.Focus("symptoms") {
		t.Error("focus by id failed")
	}
	n.Handle(KeyArrowUp) // stops at first field
	if got := n.Active(); got != "symptoms" {
		t.Errorf("focus %q, want symptoms", got)
	}
	if n.Focus("unknown") {
		t.Error("focus on unknown id reported success")
	}
}

func TestNavigatorCtrlEnterAddsRow(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	n := s.NewNavigator()
	before := len(s.Rows())
	n.Handle(KeyCtrlEnter)
	if after := len(s.Rows()); after != before+1 {
		t.Errorf("rows %d -> %d, want one added", before, after)
	}
}

func TestNavigatorEscapeDismissesPicker(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	n := s.NewNavigator()
	dismissed := false
	n.SetEscapeHandler(func() { dismissed = true })
	n.Handle(KeyEscape)
	if !dismissed {
		t.Error("escape handler not invoked")
	}
}

func TestNavigatorIgnoresKeysWhenLocked(t *testing.T) {
	f := newFakeClinic()
	s := newTestSession(t, f)

	s.UpdateRow(0, prescription.Item{Medicine: "Dolo 650", Dose: "1-1-1", Days: "3"})
	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	n := s.NewNavigator()
	n.RegisterField("symptoms")
	n.RegisterField("diagnosis")

	rows := len(s.Rows())
	n.Handle(KeyEnter)
	n.Handle(KeyCtrlEnter)
	if got := n.Active(); got != "symptoms" {
		t.Errorf("focus moved on locked consultation: %q", got)
	}
	if after := len(s.Rows()); after != rows {
		t.Errorf("row added on locked consultation: %d -> %d", rows, after)
	}
}
