package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/simlab_backend/internal/models"
)

var groupPrincipalColumns = []clause.Column{{Name: "group_id"}, {Name: "principal_id"}}

// InsertEnrolmentIgnore inserts e unless (group, principal) is already enrolled.
// It reports whether a new row was written.
func (s *Store) InsertEnrolmentIgnore(ctx context.Context, e *models.Enrolment) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   groupPrincipalColumns,
		DoNothing: true,
	}).Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertEnrolmentReplace writes e, overwriting kind and timestamp of an existing
// (group, principal) row. The existing row keeps its id.
func (s *Store) UpsertEnrolmentReplace(ctx context.Context, e *models.Enrolment) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   groupPrincipalColumns,
		DoUpdates: clause.AssignmentColumns([]string{"kind", "enrolled_at"}),
	}).Create(e).Error
}

func (s *Store) FindEnrolment(ctx context.Context, groupID, principalID string) (*models.Enrolment, error) {
	var e models.Enrolment
	if err := s.conn(ctx).
		Where("group_id = ? AND principal_id = ?", groupID, principalID).
		First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// EnrolmentFilter selects enrolments; empty fields are ignored.
type EnrolmentFilter struct {
	GroupID     string
	PrincipalID string
	Kind        models.EnrolKind
}

func (s *Store) enrolmentQuery(ctx context.Context, f EnrolmentFilter) *gorm.DB {
	q := s.conn(ctx).Model(&models.Enrolment{})
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.PrincipalID != "" {
		q = q.Where("principal_id = ?", f.PrincipalID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	return q
}

func (s *Store) ListEnrolments(ctx context.Context, f EnrolmentFilter) ([]models.Enrolment, error) {
	var rows []models.Enrolment
	if err := s.enrolmentQuery(ctx, f).Order("enrolled_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) DeleteEnrolments(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where("id IN ?", ids).Delete(&models.Enrolment{})
	return res.RowsAffected, res.Error
}

// RosterRow is an enrolment joined with its principal.
type RosterRow struct {
	EnrolmentID string
	PrincipalID string
	Email       string
	FirstName   string
	LastName    string
	Kind        models.EnrolKind
	EnrolledAt  time.Time
}

func (s *Store) ListRoster(ctx context.Context, groupID string, kind models.EnrolKind) ([]RosterRow, error) {
	q := s.conn(ctx).Table("enrolments AS e").
		Select("e.id AS enrolment_id, p.id AS principal_id, p.email, p.first_name, p.last_name, e.kind, e.enrolled_at").
		Joins("JOIN principals p ON p.id = e.principal_id").
		Where("e.group_id = ?", groupID).
		Order("p.email ASC")
	if kind != "" {
		q = q.Where("e.kind = ?", kind)
	}
	var rows []RosterRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) FindEnrolmentByID(ctx context.Context, id string) (*models.Enrolment, error) {
	var e models.Enrolment
	if err := s.conn(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}
