package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/datatypes"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

const (
	EventGroupCreated            = "group_created"
	EventGroupDeleted            = "group_deleted"
	EventStudentAccessChanged    = "student_access_changed"
	EventAccessCodeRegenerated   = "access_code_regenerated"
	EventSystemPromptChanged     = "system_prompt_changed"
	EventGroupJoined             = "group_joined"
	EventInstructorEnrolled      = "instructor_enrolled"
	EventEnrolmentRemoved        = "enrolment_removed"
	EventPatientCreated          = "patient_created"
	EventPatientEdited           = "patient_edited"
	EventPatientsReordered       = "patients_reordered"
	EventPatientDeleted          = "patient_deleted"
	EventPatientAccessed         = "patient_accessed"
	EventAutomatedScoringToggled = "automated_scoring_toggled"
	EventVerdictApplied          = "verdict_applied"
	EventCompletionToggled       = "completion_toggled"
	EventSessionOpened           = "session_opened"
	EventSessionDeleted          = "session_deleted"
	EventMessagePosted           = "message_posted"
	EventRolePromoted            = "role_promoted"
	EventRoleDemoted             = "role_demoted"
	EventInteractionsRepaired    = "interactions_repaired"
)

// EventStore is the ledger's persistence.
type EventStore interface {
	InsertEvent(ctx context.Context, e *models.EngagementEvent) error
	ListEvents(ctx context.Context, f repository.EventFilter) ([]models.EngagementEvent, error)
}

// Event is one ledger entry before it is stored. Empty ids are stored as NULL.
type Event struct {
	Type        string
	PrincipalID string
	GroupID     string
	PatientID   string
	EnrolmentID string
	Detail      string
	Attributes  map[string]interface{}
}

// Ledger appends engagement events. Writes are best effort: they run after the
// operation they describe has committed and never fail it.
type Ledger struct {
	store   EventStore
	timeout time.Duration
	now     func() time.Time
}

func (l *Ledger) Record(e Event) {
	if l == nil || l.store == nil {
		return
	}
	row := &models.EngagementEvent{
		PrincipalID: optional(e.PrincipalID),
		GroupID:     optional(e.GroupID),
		PatientID:   optional(e.PatientID),
		EnrolmentID: optional(e.EnrolmentID),
		EventType:   e.Type,
		Timestamp:   l.now(),
		Detail:      optional(e.Detail),
	}
	if len(e.Attributes) > 0 {
		b, err := json.Marshal(e.Attributes)
		if err != nil {
			log.Printf("ledger: encode attributes for %s: %v", e.Type, err)
		} else {
			row.Attributes = datatypes.JSON(b)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.store.InsertEvent(ctx, row); err != nil {
		log.Printf("ledger: dropped %s event (group=%s principal=%s): %v", e.Type, e.GroupID, e.PrincipalID, err)
	}
}

// recordAs fills the principal from ctx when the event does not name one.
func (l *Ledger) recordAs(ctx context.Context, e Event) {
	if e.PrincipalID == "" {
		e.PrincipalID = actorFrom(ctx)
	}
	l.Record(e)
}

// PromptChange is a system prompt that was replaced.
type PromptChange struct {
	Prompt    string    `json:"prompt"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// PreviousPrompts lists replaced system prompts of a group, newest first.
func (l *Ledger) PreviousPrompts(ctx context.Context, groupID string) ([]PromptChange, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	rows, err := l.store.ListEvents(ctx, repository.EventFilter{GroupID: groupID, EventType: EventSystemPromptChanged})
	if err != nil {
		return nil, classify(err, "events")
	}
	out := make([]PromptChange, 0, len(rows))
	for _, r := range rows {
		pc := PromptChange{ChangedAt: r.Timestamp}
		if r.Detail != nil {
			pc.Prompt = *r.Detail
		}
		if r.PrincipalID != nil {
			pc.ChangedBy = *r.PrincipalID
		}
		out = append(out, pc)
	}
	return out, nil
}

// Events lists ledger rows for analytics consumers.
func (l *Ledger) Events(ctx context.Context, f repository.EventFilter) ([]models.EngagementEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	rows, err := l.store.ListEvents(ctx, f)
	return rows, classify(err, "events")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
