package repository

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	return s.conn(ctx).Create(sess).Error
}

func (s *Store) FindSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	if err := s.conn(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context, interactionID string) ([]models.Session, error) {
	var rows []models.Session
	if err := s.conn(ctx).Where("interaction_id = ?", interactionID).
		Order("last_accessed DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.conn(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) DeleteSession(ctx context.Context, id string) (int64, error) {
	if err := s.conn(ctx).Where("session_id = ?", id).Delete(&models.Message{}).Error; err != nil {
		return 0, err
	}
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (s *Store) InsertMessage(ctx context.Context, m *models.Message) error {
	return s.conn(ctx).Create(m).Error
}

func (s *Store) LastMessage(ctx context.Context, sessionID string) (*models.Message, error) {
	var m models.Message
	if err := s.conn(ctx).Where("session_id = ?", sessionID).
		Order("sent_at DESC").First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return s.conn(ctx).Where("id = ?", id).Delete(&models.Message{}).Error
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var rows []models.Message
	if err := s.conn(ctx).Where("session_id = ?", sessionID).
		Order("sent_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
