package services

import (
	"context"
	"strings"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

type Catalog struct {
	runner
	sync   *Synchronizer
	ledger *Ledger
}

type PatientInput struct {
	Name             string `validate:"required,max=120"`
	Age              int    `validate:"gte=0,lte=150"`
	Gender           string `validate:"max=32"`
	Prompt           string `validate:"max=20000"`
	AutomatedScoring bool
}

func (in *PatientInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Gender = strings.TrimSpace(in.Gender)
}

const patientNameTaken = "a patient with this name already exists in the group"

// CreatePatient adds a patient at the end of the group's order and gives every
// enrolment of the group an interaction with it.
func (c *Catalog) CreatePatient(ctx context.Context, groupID string, in PatientInput) (string, error) {
	in.normalize()
	if err := validateInput(in); err != nil {
		return "", err
	}
	var patient *models.Patient
	err := c.inTx(ctx, "patient", func(ctx context.Context, tx *repository.Store) error {
		if _, err := tx.FindGroupForUpdate(ctx, groupID); err != nil {
			return classify(err, "group")
		}
		taken, err := tx.PatientNameTaken(ctx, groupID, in.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return NewConflictError(patientNameTaken)
		}
		ordinal, err := tx.NextPatientOrdinal(ctx, groupID)
		if err != nil {
			return err
		}
		patient = &models.Patient{
			GroupID:          groupID,
			Name:             in.Name,
			Ordinal:          ordinal,
			Age:              in.Age,
			Gender:           in.Gender,
			Prompt:           in.Prompt,
			AutomatedScoring: in.AutomatedScoring,
		}
		if err := tx.InsertPatient(ctx, patient); err != nil {
			if IsCode(classify(err, "patient"), ErrorConflict) {
				return NewConflictError(patientNameTaken)
			}
			return err
		}
		_, err = c.sync.FanOutPatient(ctx, tx, patient)
		return err
	})
	if err != nil {
		return "", err
	}
	c.ledger.recordAs(ctx, Event{Type: EventPatientCreated, GroupID: groupID, PatientID: patient.ID, Detail: patient.Name})
	return patient.ID, nil
}

// EditPatient replaces the descriptive fields. Automated scoring has its own toggle.
func (c *Catalog) EditPatient(ctx context.Context, patientID string, in PatientInput) error {
	in.normalize()
	if err := validateInput(in); err != nil {
		return err
	}
	var groupID string
	err := c.inTx(ctx, "patient", func(ctx context.Context, tx *repository.Store) error {
		p, err := tx.FindPatientForUpdate(ctx, patientID)
		if err != nil {
			return err
		}
		groupID = p.GroupID
		taken, err := tx.PatientNameTaken(ctx, p.GroupID, in.Name, p.ID)
		if err != nil {
			return err
		}
		if taken {
			return NewConflictError(patientNameTaken)
		}
		err = tx.UpdatePatient(ctx, p.ID, map[string]interface{}{
			"name":       in.Name,
			"age":        in.Age,
			"gender":     in.Gender,
			"prompt":     in.Prompt,
			"updated_at": c.now(),
		})
		if IsCode(classify(err, "patient"), ErrorConflict) {
			return NewConflictError(patientNameTaken)
		}
		return err
	})
	if err != nil {
		return err
	}
	c.ledger.recordAs(ctx, Event{Type: EventPatientEdited, GroupID: groupID, PatientID: patientID})
	return nil
}

// ReorderPatients sets ordinals 1..N following orderedIDs, which must name every
// patient of the group exactly once.
func (c *Catalog) ReorderPatients(ctx context.Context, groupID string, orderedIDs []string) error {
	err := c.inTx(ctx, "group", func(ctx context.Context, tx *repository.Store) error {
		if _, err := tx.FindGroupForUpdate(ctx, groupID); err != nil {
			return err
		}
		existing, err := tx.PatientIDs(ctx, groupID)
		if err != nil {
			return err
		}
		if !isPermutation(existing, orderedIDs) {
			return NewInvalidError("order must list every patient of the group exactly once")
		}
		for i, id := range orderedIDs {
			if err := tx.UpdatePatient(ctx, id, map[string]interface{}{"ordinal": i + 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.ledger.recordAs(ctx, Event{Type: EventPatientsReordered, GroupID: groupID})
	return nil
}

func isPermutation(existing, ordered []string) bool {
	if len(existing) != len(ordered) {
		return false
	}
	want := make(map[string]bool, len(existing))
	for _, id := range existing {
		want[id] = true
	}
	for _, id := range ordered {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}

// DeletePatient removes the patient and everything hanging off its interactions.
func (c *Catalog) DeletePatient(ctx context.Context, patientID string) error {
	var p *models.Patient
	err := c.inTx(ctx, "patient", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if p, err = tx.FindPatientForUpdate(ctx, patientID); err != nil {
			return err
		}
		if _, err := c.sync.PrunePatients(ctx, tx, []string{p.ID}); err != nil {
			return err
		}
		_, err = tx.DeletePatients(ctx, []string{p.ID})
		return err
	})
	if err != nil {
		return err
	}
	c.ledger.recordAs(ctx, Event{Type: EventPatientDeleted, GroupID: p.GroupID, PatientID: p.ID, Detail: p.Name})
	return nil
}

// ToggleAutomatedScoring flips whether the judge scores this patient and returns the new value.
func (c *Catalog) ToggleAutomatedScoring(ctx context.Context, patientID string) (bool, error) {
	var p *models.Patient
	err := c.inTx(ctx, "patient", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if p, err = tx.FindPatientForUpdate(ctx, patientID); err != nil {
			return err
		}
		p.AutomatedScoring = !p.AutomatedScoring
		return tx.UpdatePatient(ctx, p.ID, map[string]interface{}{
			"automated_scoring": p.AutomatedScoring,
			"updated_at":        c.now(),
		})
	})
	if err != nil {
		return false, err
	}
	c.ledger.recordAs(ctx, Event{Type: EventAutomatedScoringToggled, GroupID: p.GroupID, PatientID: p.ID,
		Attributes: map[string]interface{}{"automated_scoring": p.AutomatedScoring}})
	return p.AutomatedScoring, nil
}

func (c *Catalog) ListPatients(ctx context.Context, groupID string) ([]models.Patient, error) {
	var rows []models.Patient
	err := c.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		rows, err = st.ListPatients(ctx, groupID)
		return err
	})
	return rows, err
}

func (c *Catalog) GetPatient(ctx context.Context, patientID string) (*models.Patient, error) {
	var p *models.Patient
	err := c.read(ctx, "patient", func(ctx context.Context, st *repository.Store) error {
		var err error
		p, err = st.FindPatient(ctx, patientID)
		return err
	})
	return p, err
}
