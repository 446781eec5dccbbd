package repository

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func (s *Store) InsertPatient(ctx context.Context, p *models.Patient) error {
	return s.conn(ctx).Create(p).Error
}

func (s *Store) FindPatient(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := s.conn(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindPatientForUpdate(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := s.forUpdate(s.conn(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// PatientNameTaken compares names case-insensitively; excludeID skips the patient being renamed.
func (s *Store) PatientNameTaken(ctx context.Context, groupID, name, excludeID string) (bool, error) {
	q := s.conn(ctx).Model(&models.Patient{}).
		Where("group_id = ? AND lower(name) = lower(?)", groupID, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) NextPatientOrdinal(ctx context.Context, groupID string) (int, error) {
	var max int
	if err := s.conn(ctx).Model(&models.Patient{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(MAX(ordinal), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (s *Store) UpdatePatient(ctx context.Context, id string, fields map[string]interface{}) error {
	return s.conn(ctx).Model(&models.Patient{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) ListPatients(ctx context.Context, groupID string) ([]models.Patient, error) {
	var rows []models.Patient
	if err := s.conn(ctx).Where("group_id = ?", groupID).
		Order("ordinal ASC").Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) PatientIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	if err := s.conn(ctx).Model(&models.Patient{}).Where("group_id = ?", groupID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) DeletePatients(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.conn(ctx).Where("id IN ?", ids).Delete(&models.Patient{})
	return res.RowsAffected, res.Error
}
