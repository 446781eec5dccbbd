package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func TestPatientNameIndexRejectsCaseVariant(t *testing.T) {
	f := newFixture(t)
	g := f.group(t, testAccessCode, true)
	f.patient(t, g.ID, "Ana")

	err := f.store.InsertPatient(context.Background(), &models.Patient{GroupID: g.ID, Name: "ANA", Ordinal: 2})
	if err == nil {
		t.Fatal("index accepted a case-variant duplicate")
	}
	wantCode(t, classify(err, "patient"), ErrorConflict)
}

// A writer that slips in between the name check and the insert loses on the index.
func TestCreatePatientLosesRaceOnIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	s := f.student(t, "s1@example.com")
	if _, err := f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID); err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}

	var raced atomic.Bool
	f.beforeInsert(t, "patients", func(db *gorm.DB) {
		if !raced.CompareAndSwap(false, true) {
			return
		}
		err := db.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO patients (id, group_id, name, ordinal) VALUES (?, ?, ?, ?)",
				uuid.NewString(), g.ID, "ANA", 1).Error
		if err != nil {
			db.AddError(err)
		}
	})

	_, err := f.svc.Catalog.CreatePatient(ctx, g.ID, PatientInput{Name: "Ana"})
	wantCode(t, err, ErrorConflict)
	if !raced.Load() {
		t.Fatal("concurrent insert never ran")
	}
	// Both rows shared the failed transaction.
	if n := f.count(t, &models.Patient{}, "group_id = ?", g.ID); n != 0 {
		t.Fatalf("expected no patients, got %d", n)
	}
	if n := f.count(t, &models.Interaction{}, ""); n != 0 {
		t.Fatalf("expected no interactions, got %d", n)
	}
}

func TestConcurrentCreatePatientSameName(t *testing.T) {
	f := newPooledFixture(t)
	ctx := context.Background()
	g := f.group(t, testAccessCode, true)
	s := f.student(t, "s1@example.com")
	if _, err := f.svc.Roster.EnrollStudent(ctx, testAccessCode, s.ID); err != nil {
		t.Fatalf("EnrollStudent: %v", err)
	}

	names := []string{"Ana", "ANA", "ana", " Ana ", "aNa", "AnA", "Ana", "anA"}
	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	errs := make(chan error, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := f.svc.Catalog.CreatePatient(ctx, g.ID, PatientInput{Name: name})
			switch {
			case err == nil:
				created.Add(1)
			case IsCode(err, ErrorConflict):
				conflicts.Add(1)
			default:
				errs <- err
			}
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("CreatePatient: %v", err)
	}
	if created.Load() != 1 || conflicts.Load() != int32(len(names)-1) {
		t.Fatalf("created=%d conflicts=%d", created.Load(), conflicts.Load())
	}
	if n := f.count(t, &models.Patient{}, "group_id = ?", g.ID); n != 1 {
		t.Fatalf("expected 1 patient, got %d", n)
	}
	if n := f.count(t, &models.Interaction{}, ""); n != 1 {
		t.Fatalf("expected 1 interaction, got %d", n)
	}
}

func TestFailedFanOutRollsBackParent(t *testing.T) {
	errFanOut := errors.New("interaction insert refused")

	tests := []struct {
		name  string
		write func(t *testing.T, f *fixture, g *models.Group) error
		check func(t *testing.T, f *fixture, g *models.Group)
	}{
		{
			name: "enrol student",
			write: func(t *testing.T, f *fixture, g *models.Group) error {
				s := f.student(t, "late@example.com")
				_, err := f.svc.Roster.EnrollStudent(context.Background(), testAccessCode, s.ID)
				return err
			},
			check: func(t *testing.T, f *fixture, g *models.Group) {
				if n := f.count(t, &models.Enrolment{}, "group_id = ? AND kind = ?", g.ID, models.EnrolStudent); n != 1 {
					t.Fatalf("expected only the original enrolment, got %d", n)
				}
			},
		},
		{
			name: "enrol instructor",
			write: func(t *testing.T, f *fixture, g *models.Group) error {
				i := f.instructor(t, "i@example.com")
				_, err := f.svc.Roster.EnrollInstructor(context.Background(), g.ID, i.ID)
				return err
			},
			check: func(t *testing.T, f *fixture, g *models.Group) {
				if n := f.count(t, &models.Enrolment{}, "group_id = ? AND kind = ?", g.ID, models.EnrolInstructor); n != 0 {
					t.Fatalf("instructor enrolment survived, got %d", n)
				}
			},
		},
		{
			name: "create patient",
			write: func(t *testing.T, f *fixture, g *models.Group) error {
				_, err := f.svc.Catalog.CreatePatient(context.Background(), g.ID, PatientInput{Name: "Ben"})
				return err
			},
			check: func(t *testing.T, f *fixture, g *models.Group) {
				if n := f.count(t, &models.Patient{}, "group_id = ?", g.ID); n != 1 {
					t.Fatalf("expected only the original patient, got %d", n)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			g := f.group(t, testAccessCode, true)
			f.patient(t, g.ID, "Ana")
			first := f.student(t, "first@example.com")
			if _, err := f.svc.Roster.EnrollStudent(context.Background(), testAccessCode, first.ID); err != nil {
				t.Fatalf("EnrollStudent: %v", err)
			}

			var refuse atomic.Bool
			f.beforeInsert(t, "student_interactions", func(db *gorm.DB) {
				if refuse.Load() {
					db.AddError(errFanOut)
				}
			})
			refuse.Store(true)

			err := tt.write(t, f, g)
			if !errors.Is(err, errFanOut) {
				t.Fatalf("expected fan-out failure, got %v", err)
			}
			tt.check(t, f, g)
			if n := f.count(t, &models.Interaction{}, ""); n != 1 {
				t.Fatalf("expected the original interaction only, got %d", n)
			}
			refuse.Store(false)
			if err := f.svc.Sync.Verify(context.Background(), g.ID); err != nil {
				t.Fatalf("Verify after rollback: %v", err)
			}
		})
	}
}
