package repository

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func (s *Store) InsertEvent(ctx context.Context, e *models.EngagementEvent) error {
	return s.conn(ctx).Create(e).Error
}

type EventFilter struct {
	PrincipalID string
	GroupID     string
	EventType   string
	Limit       int
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]models.EngagementEvent, error) {
	q := s.conn(ctx).Model(&models.EngagementEvent{})
	if f.PrincipalID != "" {
		q = q.Where("principal_id = ?", f.PrincipalID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var rows []models.EngagementEvent
	if err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
