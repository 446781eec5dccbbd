package services

import (
	"context"
	"fmt"
	"log"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

// Synchronizer keeps one interaction per (enrolment, patient) of the same group.
// Fan-out and prune run inside the caller's transaction; Reconcile is the repair pass.
type Synchronizer struct {
	runner
	ledger *Ledger
}

// FanOutEnrolment creates the missing interactions of e against every patient of its group.
func (s *Synchronizer) FanOutEnrolment(ctx context.Context, tx *repository.Store, e *models.Enrolment) (int64, error) {
	patientIDs, err := tx.PatientIDs(ctx, e.GroupID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	rows := make([]models.Interaction, 0, len(patientIDs))
	for _, pid := range patientIDs {
		rows = append(rows, models.NewInteraction(pid, e.ID, now))
	}
	return tx.InsertInteractionsIgnore(ctx, rows)
}

// FanOutPatient creates the missing interactions of p against every enrolment of its group.
func (s *Synchronizer) FanOutPatient(ctx context.Context, tx *repository.Store, p *models.Patient) (int64, error) {
	enrolments, err := tx.ListEnrolments(ctx, repository.EnrolmentFilter{GroupID: p.GroupID})
	if err != nil {
		return 0, err
	}
	now := s.now()
	rows := make([]models.Interaction, 0, len(enrolments))
	for _, e := range enrolments {
		rows = append(rows, models.NewInteraction(p.ID, e.ID, now))
	}
	return tx.InsertInteractionsIgnore(ctx, rows)
}

// PruneEnrolments drops the interactions, sessions and messages of enrolments about to go.
func (s *Synchronizer) PruneEnrolments(ctx context.Context, tx *repository.Store, enrolmentIDs []string) (int64, error) {
	return tx.DeleteInteractionsFor(ctx, "enrolment_id", enrolmentIDs)
}

// PrunePatients drops the interactions, sessions and messages of patients about to go.
func (s *Synchronizer) PrunePatients(ctx context.Context, tx *repository.Store, patientIDs []string) (int64, error) {
	return tx.DeleteInteractionsFor(ctx, "patient_id", patientIDs)
}

// Report summarises one repair pass.
type Report struct {
	GroupID  string `json:"group_id,omitempty"`
	Missing  int    `json:"missing"`
	Orphaned int    `json:"orphaned"`
	Inserted int64  `json:"inserted"`
	Removed  int64  `json:"removed"`
}

func (r Report) Clean() bool { return r.Missing == 0 && r.Orphaned == 0 }

func (r Report) String() string {
	scope := r.GroupID
	if scope == "" {
		scope = "all groups"
	}
	return fmt.Sprintf("%s: %d missing, %d orphaned interactions", scope, r.Missing, r.Orphaned)
}

// Verify checks the cross-product without repairing. An empty groupID checks every group.
func (s *Synchronizer) Verify(ctx context.Context, groupID string) error {
	var rep Report
	err := s.read(ctx, "interactions", func(ctx context.Context, st *repository.Store) error {
		var err error
		rep, err = s.scan(ctx, st, groupID)
		return err
	})
	if err != nil {
		return err
	}
	if !rep.Clean() {
		return NewInvariantViolation(rep.String())
	}
	return nil
}

func (s *Synchronizer) scan(ctx context.Context, st *repository.Store, groupID string) (Report, error) {
	rep := Report{GroupID: groupID}
	missing, err := st.MissingPairs(ctx, groupID)
	if err != nil {
		return rep, err
	}
	orphans, err := st.OrphanInteractionIDs(ctx, groupID)
	if err != nil {
		return rep, err
	}
	rep.Missing = len(missing)
	rep.Orphaned = len(orphans)
	return rep, nil
}

// Reconcile inserts missing interactions and removes orphaned ones. Anything it has
// to fix is logged as an invariant violation.
func (s *Synchronizer) Reconcile(ctx context.Context, groupID string) (Report, error) {
	rep := Report{GroupID: groupID}
	err := s.inTx(ctx, "interactions", func(ctx context.Context, tx *repository.Store) error {
		missing, err := tx.MissingPairs(ctx, groupID)
		if err != nil {
			return err
		}
		orphans, err := tx.OrphanInteractionIDs(ctx, groupID)
		if err != nil {
			return err
		}
		rep.Missing = len(missing)
		rep.Orphaned = len(orphans)

		now := s.now()
		rows := make([]models.Interaction, 0, len(missing))
		for _, p := range missing {
			rows = append(rows, models.NewInteraction(p.PatientID, p.EnrolmentID, now))
		}
		if rep.Inserted, err = tx.InsertInteractionsIgnore(ctx, rows); err != nil {
			return err
		}
		rep.Removed, err = tx.DeleteInteractions(ctx, orphans)
		return err
	})
	if err != nil {
		return rep, err
	}
	if !rep.Clean() {
		log.Printf("synchronizer: %s: %s, repaired (+%d/-%d)", ErrorInvariantViolation, rep, rep.Inserted, rep.Removed)
		s.ledger.Record(Event{
			Type:    EventInteractionsRepaired,
			GroupID: groupID,
			Attributes: map[string]interface{}{
				"missing":  rep.Missing,
				"orphaned": rep.Orphaned,
				"inserted": rep.Inserted,
				"removed":  rep.Removed,
			},
		})
	}
	return rep, nil
}
