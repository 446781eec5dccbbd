package services

import (
	"context"
	"testing"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func TestNextScore(t *testing.T) {
	cases := []struct {
		current int
		verdict bool
		want    int
	}{
		{models.ScoreNotMastered, true, models.ScoreMastered},
		{models.ScoreNotMastered, false, models.ScoreNotMastered},
		{models.ScoreMastered, true, models.ScoreMastered},
		{models.ScoreMastered, false, models.ScoreMastered},
	}
	for _, tc := range cases {
		if got := NextScore(tc.current, tc.verdict); got != tc.want {
			t.Errorf("NextScore(%d, %v) = %d, want %d", tc.current, tc.verdict, got, tc.want)
		}
	}
}

func setupScored(t *testing.T) (*fixture, string, string, string, string) {
	t.Helper()
	f := newFixture(t)
	g := f.group(t, testAccessCode, true)
	patientID := f.patient(t, g.ID, "Ana")
	s := f.student(t, "s1@example.com")
	enrolmentID, err := f.svc.Roster.EnrollStudent(context.Background(), testAccessCode, s.ID)
	if err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}
	rows := f.interactions(t, enrolmentID)
	return f, g.ID, patientID, s.ID, rows[0].ID
}

func TestApplyVerdictMasteryIsSticky(t *testing.T) {
	f, _, _, _, interactionID := setupScored(t)
	ctx := context.Background()

	steps := []struct {
		verdict bool
		want    int
	}{
		{false, models.ScoreNotMastered},
		{true, models.ScoreMastered},
		{false, models.ScoreMastered},
		{false, models.ScoreMastered},
		{true, models.ScoreMastered},
	}
	for i, st := range steps {
		upd, err := f.svc.Scoring.ApplyVerdict(ctx, interactionID, st.verdict)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if upd.Score != st.want {
			t.Fatalf("step %d: score %d, want %d", i, upd.Score, st.want)
		}
	}
	var it models.Interaction
	f.db.First(&it, "id = ?", interactionID)
	if it.Score != models.ScoreMastered {
		t.Fatalf("stored score = %d", it.Score)
	}
	// Only the 0 -> 100 transition is a change worth pushing.
	if n := f.notifier.count(); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestApplyVerdictForResolvesByKey(t *testing.T) {
	f, groupID, patientID, principalID, interactionID := setupScored(t)
	ctx := context.Background()

	upd, err := f.svc.Scoring.ApplyVerdictFor(ctx, principalID, patientID, groupID, true)
	if err != nil {
		t.Fatalf("ApplyVerdictFor: %v", err)
	}
	if upd.InteractionID != interactionID || upd.PrincipalID != principalID || upd.GroupID != groupID {
		t.Fatalf("update = %+v", upd)
	}
	_, err = f.svc.Scoring.ApplyVerdictFor(ctx, "someone-else", patientID, groupID, true)
	wantCode(t, err, ErrorNotFound)
	_, err = f.svc.Scoring.ApplyVerdict(ctx, "missing", true)
	wantCode(t, err, ErrorNotFound)
}

func TestToggleCompletedAndStatus(t *testing.T) {
	f, groupID, _, _, interactionID := setupScored(t)
	ctx := context.Background()

	done, err := f.svc.Scoring.ToggleCompleted(ctx, interactionID)
	if err != nil || !done {
		t.Fatalf("ToggleCompleted = %v, %v", done, err)
	}
	rows, err := f.svc.Scoring.CompletionStatus(ctx, groupID)
	if err != nil {
		t.Fatalf("CompletionStatus: %v", err)
	}
	if len(rows) != 1 || !rows[0].Completed || rows[0].PatientName != "Ana" || rows[0].Email != "s1@example.com" {
		t.Fatalf("status = %+v", rows)
	}
	done, err = f.svc.Scoring.ToggleCompleted(ctx, interactionID)
	if err != nil || done {
		t.Fatalf("second ToggleCompleted = %v, %v", done, err)
	}
	if n := f.notifier.count(); n != 2 {
		t.Fatalf("expected 2 notifications, got %d", n)
	}
}
