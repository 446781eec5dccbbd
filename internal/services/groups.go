package services

import (
	"context"
	"strings"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
	"github.com/zaqqye/simlab_backend/internal/utils"
)

const accessCodeAttempts = 5

var defaultCodeGenerator = utils.GenerateAccessCode

type Groups struct {
	runner
	sync         *Synchronizer
	ledger       *Ledger
	generateCode func() (string, error)
}

type GroupInput struct {
	Name              string `validate:"required,max=200"`
	Description       string `validate:"max=4000"`
	AccessCode        string // generated when empty
	StudentSelfEnroll bool
	SystemPrompt      string `validate:"max=20000"`
}

// CreateGroup stores a new group. A generated access code that collides with an
// existing one is regenerated; a caller-supplied one is reported as a conflict.
func (g *Groups) CreateGroup(ctx context.Context, in GroupInput) (*models.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	fixed := ""
	if strings.TrimSpace(in.AccessCode) != "" {
		if fixed = utils.NormalizeAccessCode(in.AccessCode); fixed == "" {
			return nil, NewInvalidError("access code must be 16 letters or digits")
		}
	}

	var group *models.Group
	err := g.withFreshCode(fixed, func(code string) error {
		group = &models.Group{
			Name:              in.Name,
			Description:       in.Description,
			AccessCode:        code,
			StudentSelfEnroll: in.StudentSelfEnroll,
			SystemPrompt:      in.SystemPrompt,
		}
		return g.inTx(ctx, "access code", func(ctx context.Context, tx *repository.Store) error {
			return tx.CreateGroup(ctx, group)
		})
	})
	if err != nil {
		return nil, err
	}
	g.ledger.recordAs(ctx, Event{Type: EventGroupCreated, GroupID: group.ID, Detail: group.Name})
	return group, nil
}

// withFreshCode calls write with fixed, or with generated codes until one does not collide.
func (g *Groups) withFreshCode(fixed string, write func(code string) error) error {
	if fixed != "" {
		return write(fixed)
	}
	var err error
	for i := 0; i < accessCodeAttempts; i++ {
		code, genErr := g.generateCode()
		if genErr != nil {
			return genErr
		}
		if err = write(code); !IsCode(err, ErrorConflict) {
			return err
		}
	}
	return NewUnavailableError("could not allocate a unique access code", err)
}

func (g *Groups) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group *models.Group
	err := g.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		var err error
		group, err = st.FindGroup(ctx, groupID)
		return err
	})
	return group, err
}

func (g *Groups) ListGroups(ctx context.Context) ([]models.Group, error) {
	var rows []models.Group
	err := g.read(ctx, "group", func(ctx context.Context, st *repository.Store) error {
		var err error
		rows, err = st.ListGroups(ctx)
		return err
	})
	return rows, err
}

// SetStudentAccess opens or closes self-enrolment. Existing enrolments are untouched.
func (g *Groups) SetStudentAccess(ctx context.Context, groupID string, open bool) error {
	err := g.inTx(ctx, "group", func(ctx context.Context, tx *repository.Store) error {
		ok, err := tx.UpdateGroup(ctx, groupID, map[string]interface{}{"student_self_enroll": open})
		if err != nil {
			return err
		}
		if !ok {
			return NewNotFoundError("group not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.ledger.recordAs(ctx, Event{Type: EventStudentAccessChanged, GroupID: groupID,
		Attributes: map[string]interface{}{"student_self_enroll": open}})
	return nil
}

// RegenerateAccessCode gives the group a new code and returns it. The old code stops working.
func (g *Groups) RegenerateAccessCode(ctx context.Context, groupID string) (string, error) {
	var code string
	err := g.withFreshCode("", func(c string) error {
		code = c
		return g.inTx(ctx, "access code", func(ctx context.Context, tx *repository.Store) error {
			ok, err := tx.UpdateGroup(ctx, groupID, map[string]interface{}{"access_code": c})
			if err != nil {
				return err
			}
			if !ok {
				return NewNotFoundError("group not found")
			}
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	g.ledger.recordAs(ctx, Event{Type: EventAccessCodeRegenerated, GroupID: groupID})
	return code, nil
}

// UpdateSystemPrompt replaces the group prompt. The replaced prompt is kept in the ledger.
func (g *Groups) UpdateSystemPrompt(ctx context.Context, groupID, prompt string) error {
	if len(prompt) > 20000 {
		return NewInvalidError("system prompt too long")
	}
	var previous string
	changed := false
	err := g.inTx(ctx, "group", func(ctx context.Context, tx *repository.Store) error {
		group, err := tx.FindGroupForUpdate(ctx, groupID)
		if err != nil {
			return err
		}
		if group.SystemPrompt == prompt {
			return nil
		}
		previous, changed = group.SystemPrompt, true
		_, err = tx.UpdateGroup(ctx, groupID, map[string]interface{}{"system_prompt": prompt})
		return err
	})
	if err != nil || !changed {
		return err
	}
	g.ledger.recordAs(ctx, Event{Type: EventSystemPromptChanged, GroupID: groupID, Detail: previous})
	return nil
}

// DeleteGroup removes the group with its enrolments, patients, interactions,
// sessions and messages.
func (g *Groups) DeleteGroup(ctx context.Context, groupID string) error {
	var group *models.Group
	err := g.inTx(ctx, "group", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if group, err = tx.FindGroupForUpdate(ctx, groupID); err != nil {
			return err
		}
		enrolments, err := tx.ListEnrolments(ctx, repository.EnrolmentFilter{GroupID: groupID})
		if err != nil {
			return err
		}
		enrolmentIDs := make([]string, 0, len(enrolments))
		for _, e := range enrolments {
			enrolmentIDs = append(enrolmentIDs, e.ID)
		}
		patientIDs, err := tx.PatientIDs(ctx, groupID)
		if err != nil {
			return err
		}
		if _, err := g.sync.PruneEnrolments(ctx, tx, enrolmentIDs); err != nil {
			return err
		}
		if _, err := g.sync.PrunePatients(ctx, tx, patientIDs); err != nil {
			return err
		}
		if _, err := tx.DeleteEnrolments(ctx, enrolmentIDs); err != nil {
			return err
		}
		if _, err := tx.DeletePatients(ctx, patientIDs); err != nil {
			return err
		}
		_, err = tx.DeleteGroup(ctx, groupID)
		return err
	})
	if err != nil {
		return err
	}
	g.ledger.recordAs(ctx, Event{Type: EventGroupDeleted, GroupID: groupID, Detail: group.Name})
	return nil
}
