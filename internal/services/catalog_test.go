package services

import (
	"context"
	"testing"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func TestCreatePatientNameCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	other := f.group(t, "AAAA-BBBB-CCCC-0002", true)
	s := f.student(t, "s1@example.com")
	f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID)
	f.patient(t, g.ID, "Mrs Smith")

	cases := []string{"Mrs Smith", "mrs smith", "  MRS SMITH "}
	for _, name := range cases {
		_, err := f.svc.Catalog.CreatePatient(ctx, g.ID, PatientInput{Name: name})
		wantCode(t, err, ErrorConflict)
	}
	if n := f.count(t, &models.Patient{}, "group_id = ?", g.ID); n != 1 {
		t.Fatalf("expected 1 patient, got %d", n)
	}
	if n := f.count(t, &models.Interaction{}, ""); n != 1 {
		t.Fatalf("expected 1 interaction, got %d", n)
	}
	// Same name in another group is fine.
	if _, err := f.svc.Catalog.CreatePatient(ctx, other.ID, PatientInput{Name: "Mrs Smith"}); err != nil {
		t.Fatalf("CreatePatient in other group: %v", err)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)

	cases := []struct {
		name string
		in   PatientInput
		code ErrorCode
	}{
		{"blank name", PatientInput{Name: "   "}, ErrorInvalid},
		{"negative age", PatientInput{Name: "Ana", Age: -1}, ErrorInvalid},
		{"absurd age", PatientInput{Name: "Ana", Age: 400}, ErrorInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Catalog.CreatePatient(ctx, g.ID, tc.in)
			wantCode(t, err, tc.code)
		})
	}
	_, err := f.svc.Catalog.CreatePatient(ctx, "no-such-group", PatientInput{Name: "Ana"})
	wantCode(t, err, ErrorNotFound)
}

func TestCreatePatientAppendsOrdinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	a := f.patient(t, g.ID, "Ana")
	b := f.patient(t, g.ID, "Ben")
	c := f.patient(t, g.ID, "Cara")

	list, err := f.svc.Catalog.ListPatients(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	want := []string{a, b, c}
	for i, p := range list {
		if p.ID != want[i] || p.Ordinal != i+1 {
			t.Fatalf("position %d: got %s/%d want %s/%d", i, p.ID, p.Ordinal, want[i], i+1)
		}
	}
}

func TestEditPatientRenameConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	a := f.patient(t, g.ID, "Ana")
	f.patient(t, g.ID, "Ben")

	err := f.svc.Catalog.EditPatient(ctx, a, PatientInput{Name: "BEN"})
	wantCode(t, err, ErrorConflict)

	// Changing only the case of its own name is allowed.
	if err := f.svc.Catalog.EditPatient(ctx, a, PatientInput{Name: "ANA", Age: 61, Prompt: "chest pain"}); err != nil {
		t.Fatalf("EditPatient: %v", err)
	}
	p, err := f.svc.Catalog.GetPatient(ctx, a)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if p.Name != "ANA" || p.Age != 61 || p.Prompt != "chest pain" {
		t.Fatalf("patient not updated: %+v", p)
	}
	wantCode(t, f.svc.Catalog.EditPatient(ctx, "missing", PatientInput{Name: "X"}), ErrorNotFound)
}

func TestReorderPatients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	a := f.patient(t, g.ID, "Ana")
	b := f.patient(t, g.ID, "Ben")
	c := f.patient(t, g.ID, "Cara")

	invalid := [][]string{
		{a, b},
		{a, b, b},
		{a, b, "stranger"},
		{a, b, c, a},
	}
	for _, order := range invalid {
		wantCode(t, f.svc.Catalog.ReorderPatients(ctx, g.ID, order), ErrorInvalid)
	}

	if err := f.svc.Catalog.ReorderPatients(ctx, g.ID, []string{c, a, b}); err != nil {
		t.Fatalf("ReorderPatients: %v", err)
	}
	list, _ := f.svc.Catalog.ListPatients(ctx, g.ID)
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	if got[0] != c || got[1] != a || got[2] != b {
		t.Fatalf("order = %v", got)
	}
}

func TestDeletePatientCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	a := f.patient(t, g.ID, "Ana")
	b := f.patient(t, g.ID, "Ben")
	s := f.student(t, "s1@example.com")
	f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID)
	sess, err := f.svc.Conversations.OpenSession(ctx, InteractionRef{PrincipalID: s.ID, GroupID: g.ID, PatientID: a}, "")
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	f.svc.Conversations.PostMessage(ctx, sess.ID, models.SenderStudent, "hi")

	if err := f.svc.Catalog.DeletePatient(ctx, a); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if n := f.count(t, &models.Interaction{}, "patient_id = ?", a); n != 0 {
		t.Fatalf("interactions of deleted patient remain")
	}
	if n := f.count(t, &models.Interaction{}, "patient_id = ?", b); n != 1 {
		t.Fatalf("interaction of other patient removed")
	}
	if n := f.count(t, &models.Session{}, ""); n != 0 {
		t.Fatalf("sessions remain")
	}
	if n := f.count(t, &models.Message{}, ""); n != 0 {
		t.Fatalf("messages remain")
	}
	wantCode(t, f.svc.Catalog.DeletePatient(ctx, a), ErrorNotFound)
}

func TestToggleAutomatedScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	a := f.patient(t, g.ID, "Ana")

	on, err := f.svc.Scoring.ToggleAutomatedScoring(ctx, a)
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	on, err = f.svc.Catalog.ToggleAutomatedScoring(ctx, a)
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v", on, err)
	}
}
