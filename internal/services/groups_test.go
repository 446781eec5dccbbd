package services

import (
	"context"
	"testing"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func TestCreateGroupGeneratesCode(t *testing.T) {
	f := newFixture(t)
	g, err := f.svc.Groups.CreateGroup(context.Background(), GroupInput{Name: "Neuro"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if len(g.AccessCode) != 19 || g.StudentSelfEnroll {
		t.Fatalf("unexpected group %+v", g)
	}
}

func TestCreateGroupRetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.group(t, testAccessCode, true)

	codes := []string{testAccessCode, testAccessCode, "WXYZ-WXYZ-WXYZ-0009"}
	f.svc.Groups.generateCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	g, err := f.svc.Groups.CreateGroup(ctx, GroupInput{Name: "Second"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if g.AccessCode != "WXYZ-WXYZ-WXYZ-0009" {
		t.Fatalf("access code = %s", g.AccessCode)
	}

	_, err = f.svc.Groups.CreateGroup(ctx, GroupInput{Name: "Third", AccessCode: "abcd efgh 1234 5678"})
	wantCode(t, err, ErrorConflict)
	_, err = f.svc.Groups.CreateGroup(ctx, GroupInput{Name: "Fourth", AccessCode: "short"})
	wantCode(t, err, ErrorInvalid)
	_, err = f.svc.Groups.CreateGroup(ctx, GroupInput{Name: ""})
	wantCode(t, err, ErrorInvalid)
}

func TestRegenerateAccessCodeRetiresOldCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	s := f.student(t, "s1@example.com")

	code, err := f.svc.Groups.RegenerateAccessCode(ctx, g.ID)
	if err != nil {
		t.Fatalf("RegenerateAccessCode: %v", err)
	}
	if code == testAccessCode {
		t.Fatalf("code did not change")
	}
	_, err = f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID)
	wantCode(t, err, ErrorNotFound)
	if _, err := f.svc.Roster.EnrollStudent(ctx, code, s.ID); err != nil {
		t.Fatalf("enrol with new code: %v", err)
	}
	_, err = f.svc.Groups.RegenerateAccessCode(ctx, "missing")
	wantCode(t, err, ErrorNotFound)
}

func TestUpdateSystemPromptKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)

	for _, p := range []string{"v1", "v2", "v2", "v3"} {
		if err := f.svc.Groups.UpdateSystemPrompt(ctx, g.ID, p); err != nil {
			t.Fatalf("UpdateSystemPrompt(%s): %v", p, err)
		}
	}
	history, err := f.svc.Ledger.PreviousPrompts(ctx, g.ID)
	if err != nil {
		t.Fatalf("PreviousPrompts: %v", err)
	}
	want := []string{"v2", "v1", ""}
	if len(history) != len(want) {
		t.Fatalf("history = %+v", history)
	}
	for i, h := range history {
		if h.Prompt != want[i] {
			t.Fatalf("history[%d] = %q, want %q", i, h.Prompt, want[i])
		}
	}
	got, _ := f.svc.Groups.GetGroup(ctx, g.ID)
	if got.SystemPrompt != "v3" {
		t.Fatalf("prompt = %q", got.SystemPrompt)
	}
}

func TestDeleteGroupRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	keep := f.group(t, "AAAA-BBBB-CCCC-0002", true)
	a := f.patient(t, g.ID, "Ana")
	f.patient(t, g.ID, "Ben")
	f.patient(t, keep.ID, "Kept")
	s := f.student(t, "s1@example.com")
	in := f.instructor(t, "i1@example.com")
	f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID)
	f.svc.Roster.EnrollStudent(ctx, "AAAA-BBBB-CCCC-0002", s.ID)
	f.svc.Roster.EnrollInstructor(ctx, g.ID, in.ID)
	sess, err := f.svc.Conversations.OpenSession(ctx, InteractionRef{PrincipalID: s.ID, GroupID: g.ID, PatientID: a}, "chat")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.svc.Conversations.PostMessage(ctx, sess.ID, models.SenderStudent, "hello")
	f.svc.Conversations.PostMessage(ctx, sess.ID, models.SenderAI, "hi")

	if err := f.svc.Groups.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	checks := []struct {
		name  string
		model interface{}
		query string
		args  []interface{}
	}{
		{"groups", &models.Group{}, "id = ?", []interface{}{g.ID}},
		{"enrolments", &models.Enrolment{}, "group_id = ?", []interface{}{g.ID}},
		{"patients", &models.Patient{}, "group_id = ?", []interface{}{g.ID}},
		{"sessions", &models.Session{}, "", nil},
		{"messages", &models.Message{}, "", nil},
	}
	for _, c := range checks {
		if n := f.count(t, c.model, c.query, c.args...); n != 0 {
			t.Errorf("%d %s left after delete", n, c.name)
		}
	}
	// Only the other group's single interaction survives.
	if n := f.count(t, &models.Interaction{}, ""); n != 1 {
		t.Fatalf("expected 1 interaction left, got %d", n)
	}
	if err := f.svc.Sync.Verify(ctx, ""); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	wantCode(t, f.svc.Groups.DeleteGroup(ctx, g.ID), ErrorNotFound)
}
