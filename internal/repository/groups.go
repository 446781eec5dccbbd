package repository

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func (s *Store) CreateGroup(ctx context.Context, g *models.Group) error {
	return s.conn(ctx).Create(g).Error
}

func (s *Store) FindGroup(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := s.conn(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// FindOpenGroupByAccessCode only matches groups that currently accept self-enrolment.
func (s *Store) FindOpenGroupByAccessCode(ctx context.Context, code string) (*models.Group, error) {
	var g models.Group
	if err := s.conn(ctx).
		Where("access_code = ? AND student_self_enroll = ?", code, true).
		First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var rows []models.Group
	if err := s.conn(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListGroupsByID(ctx context.Context, ids []string) ([]models.Group, error) {
	var rows []models.Group
	if len(ids) == 0 {
		return rows, nil
	}
	if err := s.conn(ctx).Where("id IN ?", ids).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateGroup applies fields and reports whether the group existed.
func (s *Store) UpdateGroup(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	res := s.conn(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) FindGroupForUpdate(ctx context.Context, id string) (*models.Group, error) {
	var g models.Group
	if err := s.forUpdate(s.conn(ctx)).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) (int64, error) {
	res := s.conn(ctx).Where("id = ?", id).Delete(&models.Group{})
	return res.RowsAffected, res.Error
}
