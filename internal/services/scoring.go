package services

import (
	"context"
	"time"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

// InteractionUpdate is pushed to the realtime feed after a score or completion change.
type InteractionUpdate struct {
	InteractionID string    `json:"interaction_id"`
	PrincipalID   string    `json:"principal_id"`
	GroupID       string    `json:"group_id"`
	PatientID     string    `json:"patient_id"`
	Score         int       `json:"score"`
	Completed     bool      `json:"completed"`
	ChangedAt     time.Time `json:"changed_at"`
}

type Notifier interface {
	InteractionChanged(u InteractionUpdate)
}

type nopNotifier struct{}

func (nopNotifier) InteractionChanged(InteractionUpdate) {}

type Scoring struct {
	runner
	catalog  *Catalog
	ledger   *Ledger
	notifier Notifier
}

// NextScore applies a judge verdict. Mastery is sticky: a failing verdict never
// takes a mastered interaction back to zero.
func NextScore(current int, verdict bool) int {
	if verdict {
		return models.ScoreMastered
	}
	if current == models.ScoreMastered {
		return current
	}
	return models.ScoreNotMastered
}

// ApplyVerdict scores one interaction.
func (s *Scoring) ApplyVerdict(ctx context.Context, interactionID string, verdict bool) (*InteractionUpdate, error) {
	var (
		upd     *InteractionUpdate
		changed bool
	)
	err := s.inTx(ctx, "interaction", func(ctx context.Context, tx *repository.Store) error {
		it, err := tx.FindInteraction(ctx, interactionID, true)
		if err != nil {
			return err
		}
		next := NextScore(it.Score, verdict)
		if next != it.Score {
			changed = true
			if err := tx.UpdateInteraction(ctx, it.ID, map[string]interface{}{"score": next}); err != nil {
				return err
			}
			it.Score = next
		}
		upd, err = s.describe(ctx, tx, it)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.ledger.recordAs(ctx, Event{
		Type:        EventVerdictApplied,
		PrincipalID: upd.PrincipalID,
		GroupID:     upd.GroupID,
		PatientID:   upd.PatientID,
		Attributes:  map[string]interface{}{"verdict": verdict, "score": upd.Score, "changed": changed},
	})
	if changed {
		s.notifier.InteractionChanged(*upd)
	}
	return upd, nil
}

// ApplyVerdictFor scores the interaction of principalID with patientID in groupID.
func (s *Scoring) ApplyVerdictFor(ctx context.Context, principalID, patientID, groupID string, verdict bool) (*InteractionUpdate, error) {
	var id string
	err := s.read(ctx, "interaction", func(ctx context.Context, st *repository.Store) error {
		var err error
		id, err = st.FindInteractionID(ctx, repository.InteractionKey{
			PrincipalID: principalID,
			PatientID:   patientID,
			GroupID:     groupID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.ApplyVerdict(ctx, id, verdict)
}

// ToggleCompleted flips the completion flag and returns the new value.
func (s *Scoring) ToggleCompleted(ctx context.Context, interactionID string) (bool, error) {
	var upd *InteractionUpdate
	err := s.inTx(ctx, "interaction", func(ctx context.Context, tx *repository.Store) error {
		it, err := tx.FindInteraction(ctx, interactionID, true)
		if err != nil {
			return err
		}
		it.Completed = !it.Completed
		if err := tx.UpdateInteraction(ctx, it.ID, map[string]interface{}{"completed": it.Completed}); err != nil {
			return err
		}
		upd, err = s.describe(ctx, tx, it)
		return err
	})
	if err != nil {
		return false, err
	}
	s.ledger.recordAs(ctx, Event{
		Type:        EventCompletionToggled,
		PrincipalID: upd.PrincipalID,
		GroupID:     upd.GroupID,
		PatientID:   upd.PatientID,
		Attributes:  map[string]interface{}{"completed": upd.Completed},
	})
	s.notifier.InteractionChanged(*upd)
	return upd.Completed, nil
}

func (s *Scoring) ToggleAutomatedScoring(ctx context.Context, patientID string) (bool, error) {
	return s.catalog.ToggleAutomatedScoring(ctx, patientID)
}

// CompletionStatus lists every student interaction of the group for the dashboard.
func (s *Scoring) CompletionStatus(ctx context.Context, groupID string) ([]repository.CompletionRow, error) {
	var rows []repository.CompletionRow
	err := s.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		rows, err = st.CompletionRows(ctx, groupID, models.EnrolStudent)
		return err
	})
	return rows, err
}

func (s *Scoring) describe(ctx context.Context, tx *repository.Store, it *models.Interaction) (*InteractionUpdate, error) {
	e, err := tx.FindEnrolmentByID(ctx, it.EnrolmentID)
	if err != nil {
		return nil, err
	}
	return &InteractionUpdate{
		InteractionID: it.ID,
		PrincipalID:   e.PrincipalID,
		GroupID:       e.GroupID,
		PatientID:     it.PatientID,
		Score:         it.Score,
		Completed:     it.Completed,
		ChangedAt:     s.now(),
	}, nil
}

// Lookup returns the current state of an interaction with its owner and group.
func (s *Scoring) Lookup(ctx context.Context, interactionID string) (*InteractionUpdate, error) {
	var upd *InteractionUpdate
	err := s.read(ctx, "interaction", func(ctx context.Context, st *repository.Store) error {
		it, err := st.FindInteraction(ctx, interactionID, false)
		if err != nil {
			return err
		}
		upd, err = s.describe(ctx, st, it)
		return err
	})
	return upd, err
}
