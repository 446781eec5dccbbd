package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/zaqqye/simlab_backend/internal/models"
)

const interactionBatchSize = 500

// InsertInteractionsIgnore writes rows in multi-row statements, skipping pairs that
// already exist. Returns the number of rows actually inserted.
func (s *Store) InsertInteractionsIgnore(ctx context.Context, rows []models.Interaction) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "patient_id"}, {Name: "enrolment_id"}},
		DoNothing: true,
	}).CreateInBatches(&rows, interactionBatchSize)
	return res.RowsAffected, res.Error
}

func (s *Store) FindInteraction(ctx context.Context, id string, lock bool) (*models.Interaction, error) {
	q := s.conn(ctx)
	if lock {
		q = s.forUpdate(q)
	}
	var it models.Interaction
	if err := q.Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// InteractionKey is how callers outside the core address an interaction.
type InteractionKey struct {
	PrincipalID string
	PatientID   string
	GroupID     string
}

func (s *Store) FindInteractionID(ctx context.Context, key InteractionKey) (string, error) {
	var it models.Interaction
	err := s.conn(ctx).Model(&models.Interaction{}).
		Select("student_interactions.id").
		Joins("JOIN enrolments e ON e.id = student_interactions.enrolment_id").
		Where("e.principal_id = ? AND e.group_id = ? AND student_interactions.patient_id = ?",
			key.PrincipalID, key.GroupID, key.PatientID).
		First(&it).Error
	if err != nil {
		return "", err
	}
	return it.ID, nil
}

func (s *Store) UpdateInteraction(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.conn(ctx).Model(&models.Interaction{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) TouchInteraction(ctx context.Context, id string, at time.Time) error {
	return s.UpdateInteraction(ctx, id, map[string]interface{}{"last_accessed": at})
}

// DeleteInteractionsFor removes interactions whose column ("enrolment_id" or
// "patient_id") is in ids, together with their sessions and messages.
func (s *Store) DeleteInteractionsFor(ctx context.Context, column string, ids []string) (int64, error) {
	if column != "enrolment_id" && column != "patient_id" {
		return 0, fmt.Errorf("delete interactions: unsupported column %q", column)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	var interactionIDs []string
	if err := s.conn(ctx).Model(&models.Interaction{}).
		Where(column+" IN ?", ids).
		Pluck("id", &interactionIDs).Error; err != nil {
		return 0, err
	}
	return s.DeleteInteractions(ctx, interactionIDs)
}

// DeleteInteractions removes the given interactions, their sessions and their messages.
func (s *Store) DeleteInteractions(ctx context.Context, interactionIDs []string) (int64, error) {
	if len(interactionIDs) == 0 {
		return 0, nil
	}
	var sessionIDs []string
	if err := s.conn(ctx).Model(&models.Session{}).
		Where("interaction_id IN ?", interactionIDs).
		Pluck("id", &sessionIDs).Error; err != nil {
		return 0, err
	}
	if len(sessionIDs) > 0 {
		if err := s.conn(ctx).Where("session_id IN ?", sessionIDs).Delete(&models.Message{}).Error; err != nil {
			return 0, err
		}
		if err := s.conn(ctx).Where("id IN ?", sessionIDs).Delete(&models.Session{}).Error; err != nil {
			return 0, err
		}
	}
	res := s.conn(ctx).Where("id IN ?", interactionIDs).Delete(&models.Interaction{})
	return res.RowsAffected, res.Error
}

func (s *Store) CountInteractions(ctx context.Context, groupID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Interaction{}).
		Joins("JOIN enrolments e ON e.id = student_interactions.enrolment_id").
		Where("e.group_id = ?", groupID).
		Count(&n).Error
	return n, err
}

// Pair is an (enrolment, patient) combination that should have an interaction.
type Pair struct {
	EnrolmentID string
	PatientID   string
	GroupID     string
}

// MissingPairs lists same-group enrolment × patient combinations with no interaction.
// An empty groupID scans every group.
func (s *Store) MissingPairs(ctx context.Context, groupID string) ([]Pair, error) {
	sql := `SELECT e.id AS enrolment_id, p.id AS patient_id, e.group_id AS group_id
		FROM enrolments e
		JOIN patients p ON p.group_id = e.group_id
		LEFT JOIN student_interactions i ON i.enrolment_id = e.id AND i.patient_id = p.id
		WHERE i.id IS NULL`
	args := []interface{}{}
	if groupID != "" {
		sql += ` AND e.group_id = ?`
		args = append(args, groupID)
	}
	var pairs []Pair
	if err := s.conn(ctx).Raw(sql, args...).Scan(&pairs).Error; err != nil {
		return nil, err
	}
	return pairs, nil
}

// OrphanInteractionIDs lists interactions whose enrolment or patient is gone, or
// whose enrolment and patient belong to different groups.
func (s *Store) OrphanInteractionIDs(ctx context.Context, groupID string) ([]string, error) {
	sql := `SELECT i.id
		FROM student_interactions i
		LEFT JOIN enrolments e ON e.id = i.enrolment_id
		LEFT JOIN patients p ON p.id = i.patient_id
		WHERE (e.id IS NULL OR p.id IS NULL OR p.group_id <> e.group_id)`
	args := []interface{}{}
	if groupID != "" {
		sql += ` AND (e.group_id = ? OR p.group_id = ?)`
		args = append(args, groupID, groupID)
	}
	var ids []string
	if err := s.conn(ctx).Raw(sql, args...).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CompletionRow is one interaction as the instructor dashboard shows it.
type CompletionRow struct {
	InteractionID string
	PrincipalID   string
	Email         string
	PatientID     string
	PatientName   string
	Score         int
	Completed     bool
	LastAccessed  time.Time
}

func (s *Store) CompletionRows(ctx context.Context, groupID string, kind models.EnrolKind) ([]CompletionRow, error) {
	q := s.conn(ctx).Table("student_interactions AS i").
		Select("i.id AS interaction_id, pr.id AS principal_id, pr.email, p.id AS patient_id, p.name AS patient_name, i.score, i.completed, i.last_accessed").
		Joins("JOIN enrolments e ON e.id = i.enrolment_id").
		Joins("JOIN principals pr ON pr.id = e.principal_id").
		Joins("JOIN patients p ON p.id = i.patient_id").
		Where("e.group_id = ?", groupID).
		Order("pr.email ASC").Order("p.ordinal ASC")
	if kind != "" {
		q = q.Where("e.kind = ?", kind)
	}
	var rows []CompletionRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
