package services

import (
	"context"
	"testing"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

func TestLedgerFailureNeverFailsTheOperation(t *testing.T) {
	events := &failingEvents{}
	f := newFixture(t, func(o *Options) { o.Events = events })
	ctx := context.Background()

	g := f.group(t, testAccessCode, true)
	f.patient(t, g.ID, "Ana")
	s := f.student(t, "s@example.com")
	if _, err := f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID); err != nil {
		t.Fatalf("EnrollStudent with broken ledger: %v", err)
	}
	if events.calls == 0 {
		t.Fatalf("ledger was never called")
	}
	if n := f.count(t, &models.Interaction{}, ""); n != 1 {
		t.Fatalf("expected 1 interaction, got %d", n)
	}
	_, err := f.svc.Ledger.PreviousPrompts(ctx, g.ID)
	if err == nil {
		t.Fatalf("reads should still report failures")
	}
}

func TestLedgerRecordsActor(t *testing.T) {
	f := newFixture(t)
	in := f.instructor(t, "i@example.com")
	ctx := WithActor(context.Background(), in.ID)
	g, err := f.svc.Groups.CreateGroup(ctx, GroupInput{Name: "Peds"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := f.svc.Catalog.CreatePatient(ctx, g.ID, PatientInput{Name: "Tim"}); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	rows, err := f.svc.Ledger.Events(context.Background(), repository.EventFilter{PrincipalID: in.ID})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	types := map[string]bool{}
	for _, r := range rows {
		types[r.EventType] = true
		if r.GroupID == nil || *r.GroupID != g.ID {
			t.Fatalf("event without group: %+v", r)
		}
	}
	if !types[EventGroupCreated] || !types[EventPatientCreated] {
		t.Fatalf("events = %v", types)
	}
}

func TestLedgerRecordOmitsEmptyIDs(t *testing.T) {
	f := newFixture(t)
	f.svc.Ledger.Record(Event{Type: "custom", Detail: "x", Attributes: map[string]interface{}{"k": 1}})
	var e models.EngagementEvent
	if err := f.db.First(&e, "event_type = ?", "custom").Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if e.PrincipalID != nil || e.GroupID != nil || e.Detail == nil || *e.Detail != "x" {
		t.Fatalf("event = %+v", e)
	}
	if string(e.Attributes) != `{"k":1}` {
		t.Fatalf("attributes = %s", e.Attributes)
	}
}
