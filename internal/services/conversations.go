package services

import (
	"context"
	"strings"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

// Conversations manages a student's sessions and messages with one patient.
type Conversations struct {
	runner
	ledger *Ledger
}

// InteractionRef addresses a student's interaction the way the student views it.
type InteractionRef struct {
	PrincipalID string
	GroupID     string
	PatientID   string
}

func (r InteractionRef) key() repository.InteractionKey {
	return repository.InteractionKey{PrincipalID: r.PrincipalID, GroupID: r.GroupID, PatientID: r.PatientID}
}

// PatientView is what a student sees when opening a patient.
type PatientView struct {
	Interaction models.Interaction `json:"interaction"`
	Sessions    []models.Session   `json:"sessions"`
}

// AccessPatient touches the interaction and returns it with its sessions.
func (c *Conversations) AccessPatient(ctx context.Context, ref InteractionRef) (*PatientView, error) {
	view := &PatientView{}
	err := c.inTx(ctx, "interaction", func(ctx context.Context, tx *repository.Store) error {
		id, err := tx.FindInteractionID(ctx, ref.key())
		if err != nil {
			return err
		}
		if err := tx.TouchInteraction(ctx, id, c.now()); err != nil {
			return err
		}
		it, err := tx.FindInteraction(ctx, id, false)
		if err != nil {
			return err
		}
		view.Interaction = *it
		view.Sessions, err = tx.ListSessions(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.ledger.recordAs(ctx, Event{Type: EventPatientAccessed, PrincipalID: ref.PrincipalID,
		GroupID: ref.GroupID, PatientID: ref.PatientID, EnrolmentID: view.Interaction.EnrolmentID})
	return view, nil
}

func (c *Conversations) OpenSession(ctx context.Context, ref InteractionRef, name string) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New chat"
	}
	var sess *models.Session
	err := c.inTx(ctx, "interaction", func(ctx context.Context, tx *repository.Store) error {
		id, err := tx.FindInteractionID(ctx, ref.key())
		if err != nil {
			return err
		}
		now := c.now()
		sess = &models.Session{InteractionID: id, Name: name, LastAccessed: now}
		if err := tx.CreateSession(ctx, sess); err != nil {
			return err
		}
		return tx.TouchInteraction(ctx, id, now)
	})
	if err != nil {
		return nil, err
	}
	c.ledger.recordAs(ctx, Event{Type: EventSessionOpened, PrincipalID: ref.PrincipalID,
		GroupID: ref.GroupID, PatientID: ref.PatientID})
	return sess, nil
}

// OwnsSession reports not found unless sessionID belongs to the principal.
func (c *Conversations) OwnsSession(ctx context.Context, principalID, sessionID string) error {
	return c.read(ctx, "session", func(ctx context.Context, st *repository.Store) error {
		return c.checkOwner(ctx, st, principalID, sessionID)
	})
}

func (c *Conversations) checkOwner(ctx context.Context, st *repository.Store, principalID, sessionID string) error {
	sess, err := st.FindSession(ctx, sessionID)
	if err != nil {
		return err
	}
	it, err := st.FindInteraction(ctx, sess.InteractionID, false)
	if err != nil {
		return err
	}
	e, err := st.FindEnrolmentByID(ctx, it.EnrolmentID)
	if err != nil {
		return err
	}
	if e.PrincipalID != principalID {
		return NewNotFoundError("session not found")
	}
	return nil
}

func (c *Conversations) RenameSession(ctx context.Context, sessionID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return NewInvalidError("session name must be 1-200 characters")
	}
	return c.updateSession(ctx, sessionID, map[string]interface{}{"name": name})
}

func (c *Conversations) UpdateNotes(ctx context.Context, sessionID, notes string) error {
	return c.updateSession(ctx, sessionID, map[string]interface{}{"notes": notes})
}

func (c *Conversations) updateSession(ctx context.Context, sessionID string, fields map[string]interface{}) error {
	return c.inTx(ctx, "session", func(ctx context.Context, tx *repository.Store) error {
		if _, err := tx.FindSession(ctx, sessionID); err != nil {
			return err
		}
		fields["last_accessed"] = c.now()
		return tx.UpdateSession(ctx, sessionID, fields)
	})
}

// DeleteSession removes the session and its messages and touches the interaction.
func (c *Conversations) DeleteSession(ctx context.Context, sessionID string) error {
	var sess *models.Session
	err := c.inTx(ctx, "session", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if sess, err = tx.FindSession(ctx, sessionID); err != nil {
			return err
		}
		if _, err := tx.DeleteSession(ctx, sessionID); err != nil {
			return err
		}
		return tx.TouchInteraction(ctx, sess.InteractionID, c.now())
	})
	if err != nil {
		return err
	}
	c.ledger.recordAs(ctx, Event{Type: EventSessionDeleted, Detail: sess.Name})
	return nil
}

type messageInput struct {
	Sender  string `validate:"required,oneof=student ai"`
	Content string `validate:"required"`
}

// PostMessage appends to the session transcript.
func (c *Conversations) PostMessage(ctx context.Context, sessionID, sender, content string) (*models.Message, error) {
	if err := validateInput(messageInput{Sender: sender, Content: content}); err != nil {
		return nil, err
	}
	var msg *models.Message
	err := c.inTx(ctx, "session", func(ctx context.Context, tx *repository.Store) error {
		if _, err := tx.FindSession(ctx, sessionID); err != nil {
			return err
		}
		now := c.now()
		msg = &models.Message{SessionID: sessionID, Sender: sender, Content: content, SentAt: now}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, sessionID, map[string]interface{}{"last_accessed": now})
	})
	if err != nil {
		return nil, err
	}
	if sender == models.SenderStudent {
		c.ledger.recordAs(ctx, Event{Type: EventMessagePosted})
	}
	return msg, nil
}

// UndoLastMessage deletes the newest message of the session and returns it.
func (c *Conversations) UndoLastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	var msg *models.Message
	err := c.inTx(ctx, "message", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if msg, err = tx.LastMessage(ctx, sessionID); err != nil {
			return err
		}
		return tx.DeleteMessage(ctx, msg.ID)
	})
	return msg, err
}

func (c *Conversations) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var rows []models.Message
	err := c.read(ctx, "session", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		rows, err = st.ListMessages(ctx, sessionID)
		return err
	})
	return rows, err
}

// SessionTranscript is one session with its messages, oldest first.
type SessionTranscript struct {
	Session  models.Session
	Messages []models.Message
}

// PatientTranscript is everything a student wrote to one patient.
type PatientTranscript struct {
	Patient     models.Patient
	Interaction models.Interaction
	Sessions    []SessionTranscript
}

// Transcript returns a student's conversations in a group, grouped by patient
// in catalog order. Patients the student never opened a session with are
// included with no sessions.
func (c *Conversations) Transcript(ctx context.Context, groupID, principalID string) ([]PatientTranscript, error) {
	var out []PatientTranscript
	err := c.read(ctx, "enrolment", func(ctx context.Context, st *repository.Store) error {
		if _, err := st.FindEnrolment(ctx, groupID, principalID); err != nil {
			return err
		}
		interactions, err := st.StudentInteractions(ctx, groupID, principalID)
		if err != nil {
			return err
		}
		out = make([]PatientTranscript, 0, len(interactions))
		for _, it := range interactions {
			p, err := st.FindPatient(ctx, it.PatientID)
			if err != nil {
				return err
			}
			sessions, err := st.ListSessions(ctx, it.ID)
			if err != nil {
				return err
			}
			pt := PatientTranscript{Patient: *p, Interaction: it, Sessions: make([]SessionTranscript, 0, len(sessions))}
			for _, sess := range sessions {
				msgs, err := st.ListMessages(ctx, sess.ID)
				if err != nil {
					return err
				}
				pt.Sessions = append(pt.Sessions, SessionTranscript{Session: sess, Messages: msgs})
			}
			out = append(out, pt)
		}
		return nil
	})
	return out, err
}
