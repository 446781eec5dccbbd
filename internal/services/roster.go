package services

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
	"github.com/zaqqye/simlab_backend/internal/utils"
)

type Roster struct {
	runner
	sync   *Synchronizer
	ledger *Ledger
}

// EnrolRequest selects a group by AccessCode for students and by GroupID for instructors.
type EnrolRequest struct {
	Kind        models.EnrolKind
	AccessCode  string
	GroupID     string
	PrincipalID string
}

// conflictStrategy writes an enrolment and reports whether a new row was created.
type conflictStrategy func(ctx context.Context, tx *repository.Store, e *models.Enrolment) (bool, error)

// Students keep whatever enrolment they already had; instructors overwrite it.
var conflictStrategies = map[models.EnrolKind]conflictStrategy{
	models.EnrolStudent: func(ctx context.Context, tx *repository.Store, e *models.Enrolment) (bool, error) {
		return tx.InsertEnrolmentIgnore(ctx, e)
	},
	models.EnrolInstructor: func(ctx context.Context, tx *repository.Store, e *models.Enrolment) (bool, error) {
		return true, tx.UpsertEnrolmentReplace(ctx, e)
	},
}

// EnrollStudent joins principalID to the group behind accessCode. Unknown codes and
// groups closed to self-enrolment are both reported as not found.
func (r *Roster) EnrollStudent(ctx context.Context, accessCode, principalID string) (string, error) {
	return r.Enroll(ctx, EnrolRequest{Kind: models.EnrolStudent, AccessCode: accessCode, PrincipalID: principalID})
}

// EnrollInstructor makes principalID an instructor of groupID, converting any
// existing enrolment in place.
func (r *Roster) EnrollInstructor(ctx context.Context, groupID, principalID string) (string, error) {
	return r.Enroll(ctx, EnrolRequest{Kind: models.EnrolInstructor, GroupID: groupID, PrincipalID: principalID})
}

// Enroll returns the id of the principal's enrolment in the group, new or existing.
func (r *Roster) Enroll(ctx context.Context, req EnrolRequest) (string, error) {
	write, ok := conflictStrategies[req.Kind]
	if !ok {
		return "", NewInvalidError("unknown enrolment kind")
	}
	if req.PrincipalID == "" {
		return "", NewInvalidError("principal is required")
	}

	var (
		enrolment *models.Enrolment
		created   bool
	)
	err := r.inTx(ctx, "enrolment", func(ctx context.Context, tx *repository.Store) error {
		group, err := r.resolveGroup(ctx, tx, req)
		if err != nil {
			return err
		}
		if _, err := tx.FindPrincipal(ctx, req.PrincipalID); err != nil {
			return classify(err, "principal")
		}
		e := &models.Enrolment{
			GroupID:     group.ID,
			PrincipalID: req.PrincipalID,
			Kind:        req.Kind,
			EnrolledAt:  r.now(),
		}
		if created, err = write(ctx, tx, e); err != nil {
			return err
		}
		// The stored row may predate this call; read back its id.
		if enrolment, err = tx.FindEnrolment(ctx, group.ID, req.PrincipalID); err != nil {
			return err
		}
		_, err = r.sync.FanOutEnrolment(ctx, tx, enrolment)
		return err
	})
	if err != nil {
		return "", err
	}
	if created {
		eventType := EventGroupJoined
		if req.Kind == models.EnrolInstructor {
			eventType = EventInstructorEnrolled
		}
		r.ledger.recordAs(ctx, Event{
			Type:        eventType,
			PrincipalID: req.PrincipalID,
			GroupID:     enrolment.GroupID,
			EnrolmentID: enrolment.ID,
		})
	}
	return enrolment.ID, nil
}

// resolveGroup finds and locks the target group so concurrent patient writes
// in the same group queue behind this enrolment.
func (r *Roster) resolveGroup(ctx context.Context, tx *repository.Store, req EnrolRequest) (*models.Group, error) {
	groupID := req.GroupID
	if req.Kind == models.EnrolStudent {
		code := utils.NormalizeAccessCode(req.AccessCode)
		if code == "" {
			return nil, NewNotFoundError("group not found")
		}
		g, err := tx.FindOpenGroupByAccessCode(ctx, code)
		if err != nil {
			return nil, classify(err, "group")
		}
		groupID = g.ID
	}
	if groupID == "" {
		return nil, NewInvalidError("group is required")
	}
	g, err := tx.FindGroupForUpdate(ctx, groupID)
	if err != nil {
		return nil, classify(err, "group")
	}
	return g, nil
}

// RemoveEnrolment deletes the principal's enrolment of the given kind together with
// its interactions, sessions and messages.
func (r *Roster) RemoveEnrolment(ctx context.Context, groupID, principalID string, kind models.EnrolKind) error {
	if !kind.Valid() {
		return NewInvalidError("unknown enrolment kind")
	}
	var removed []string
	err := r.inTx(ctx, "enrolment", func(ctx context.Context, tx *repository.Store) error {
		var err error
		removed, err = r.removeWhere(ctx, tx, repository.EnrolmentFilter{GroupID: groupID, PrincipalID: principalID, Kind: kind})
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return NewNotFoundError("enrolment not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range removed {
		r.ledger.recordAs(ctx, Event{Type: EventEnrolmentRemoved, GroupID: groupID, EnrolmentID: id,
			Attributes: map[string]interface{}{"principal_id": principalID, "kind": string(kind)}})
	}
	return nil
}

// RemoveAllInstructorEnrolmentsForPrincipal drops every instructor enrolment of the principal.
func (r *Roster) RemoveAllInstructorEnrolmentsForPrincipal(ctx context.Context, principalID string) (int, error) {
	return r.removeInstructors(ctx, repository.EnrolmentFilter{PrincipalID: principalID, Kind: models.EnrolInstructor})
}

// RemoveAllInstructorEnrolmentsForGroup drops every instructor enrolment of the group.
func (r *Roster) RemoveAllInstructorEnrolmentsForGroup(ctx context.Context, groupID string) (int, error) {
	return r.removeInstructors(ctx, repository.EnrolmentFilter{GroupID: groupID, Kind: models.EnrolInstructor})
}

func (r *Roster) removeInstructors(ctx context.Context, f repository.EnrolmentFilter) (int, error) {
	var removed []string
	err := r.inTx(ctx, "enrolment", func(ctx context.Context, tx *repository.Store) error {
		var err error
		removed, err = r.removeWhere(ctx, tx, f)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(removed) > 0 {
		r.ledger.recordAs(ctx, Event{Type: EventEnrolmentRemoved, GroupID: f.GroupID,
			Attributes: map[string]interface{}{"principal_id": f.PrincipalID, "kind": string(f.Kind), "count": len(removed)}})
	}
	return len(removed), nil
}

// removeWhere is the one deletion path for enrolments. Callers own the transaction.
func (r *Roster) removeWhere(ctx context.Context, tx *repository.Store, f repository.EnrolmentFilter) ([]string, error) {
	rows, err := tx.ListEnrolments(ctx, f)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.ID)
	}
	if _, err := r.sync.PruneEnrolments(ctx, tx, ids); err != nil {
		return nil, err
	}
	if _, err := tx.DeleteEnrolments(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListEnrolments lists the group's roster, optionally of one kind.
func (r *Roster) ListEnrolments(ctx context.Context, groupID string, kind models.EnrolKind) ([]repository.RosterRow, error) {
	if kind != "" && !kind.Valid() {
		return nil, NewInvalidError("unknown enrolment kind")
	}
	var rows []repository.RosterRow
	err := r.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		rows, err = st.ListRoster(ctx, groupID, kind)
		return err
	})
	return rows, err
}

// GroupsFor lists the groups the principal is enrolled in as kind (any kind when empty).
func (r *Roster) GroupsFor(ctx context.Context, principalID string, kind models.EnrolKind) ([]models.Group, error) {
	var groups []models.Group
	err := r.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		rows, err := st.ListEnrolments(ctx, repository.EnrolmentFilter{PrincipalID: principalID, Kind: kind})
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(rows))
		for _, e := range rows {
			ids = append(ids, e.GroupID)
		}
		groups, err = st.ListGroupsByID(ctx, ids)
		return err
	})
	return groups, err
}

// Membership returns the principal's enrolment in the group, or not found.
func (r *Roster) Membership(ctx context.Context, groupID, principalID string) (*models.Enrolment, error) {
	var e *models.Enrolment
	err := r.read(ctx, "enrolment", func(ctx context.Context, st *repository.Store) error {
		var err error
		e, err = st.FindEnrolment(ctx, groupID, principalID)
		return err
	})
	return e, err
}
