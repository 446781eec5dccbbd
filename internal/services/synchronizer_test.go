package services

import (
	"context"
	"testing"
	"time"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func TestReconcileRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	f.patient(t, g.ID, "Ana")
	s := f.student(t, "s1@example.com")
	if _, err := f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID); err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}
	if err := f.svc.Sync.Verify(ctx, g.ID); err != nil {
		t.Fatalf("Verify on clean group: %v", err)
	}

	// Bypass the catalog so the new patient gets no interactions, and plant an
	// interaction that points at nothing.
	stray := &models.Patient{GroupID: g.ID, Name: "Stray", Ordinal: 2}
	if err := f.store.InsertPatient(ctx, stray); err != nil {
		t.Fatalf("InsertPatient: %v", err)
	}
	orphan := models.NewInteraction("gone-patient", "gone-enrolment", time.Now())
	if err := f.db.Create(&orphan).Error; err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	wantCode(t, f.svc.Sync.Verify(ctx, ""), ErrorInvariantViolation)

	rep, err := f.svc.Sync.Reconcile(ctx, "")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if rep.Missing != 1 || rep.Orphaned != 1 || rep.Inserted != 1 || rep.Removed != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if err := f.svc.Sync.Verify(ctx, ""); err != nil {
		t.Fatalf("Verify after repair: %v", err)
	}
	if n := f.count(t, &models.EngagementEvent{}, "event_type = ?", EventInteractionsRepaired); n != 1 {
		t.Fatalf("expected repair to be logged, got %d events", n)
	}

	rep, err = f.svc.Sync.Reconcile(ctx, g.ID)
	if err != nil || !rep.Clean() {
		t.Fatalf("second pass = %+v, %v", rep, err)
	}
}

func TestStartReconcilerRepairsOnSchedule(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, testAccessCode, true)
	s := f.student(t, "s1@example.com")
	if _, err := f.svc.Roster.EnrollStudent(context.Background(), testAccessCode, s.ID); err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}
	stray := &models.Patient{GroupID: g.ID, Name: "Stray", Ordinal: 1}
	if err := f.store.InsertPatient(context.Background(), stray); err != nil {
		t.Fatalf("InsertPatient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := StartReconciler(ctx, f.svc.Sync, "@every 1s"); err != nil {
		t.Fatalf("StartReconciler: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for f.svc.Sync.Verify(context.Background(), g.ID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("drift was not repaired")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestStartReconcilerRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	if err := StartReconciler(context.Background(), f.svc.Sync, "every now and then"); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestStartReconcilerStopsWithContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := StartReconciler(ctx, f.svc.Sync, "@every 1h"); err != nil {
		t.Fatalf("StartReconciler: %v", err)
	}
	cancel()
	for _, off := range []string{"", ReconcileOff} {
		if err := StartReconciler(context.Background(), f.svc.Sync, off); err != nil {
			t.Fatalf("StartReconciler(%q): %v", off, err)
		}
	}
}
