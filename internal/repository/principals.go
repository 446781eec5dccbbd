package repository

import (
	"context"
	"time"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func (s *Store) FindPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	var p models.Principal
	if err := s.conn(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p models.Principal
	if err := s.conn(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, p *models.Principal) error {
	return s.conn(ctx).Create(p).Error
}

func (s *Store) UpdatePrincipalProfile(ctx context.Context, p *models.Principal, seenAt time.Time) error {
	return s.conn(ctx).Model(&models.Principal{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"username":       p.Username,
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"preferred_name": p.PreferredName,
		"last_seen_at":   seenAt,
	}).Error
}

func (s *Store) UpdatePrincipalRoles(ctx context.Context, id string, roles models.RoleSet) error {
	return s.conn(ctx).Model(&models.Principal{}).Where("id = ?", id).Update("roles", roles).Error
}

func (s *Store) ListPrincipalsByRole(ctx context.Context, role string) ([]models.Principal, error) {
	q := s.conn(ctx).Order("email ASC")
	if s.isPostgres() {
		q = q.Where("? = ANY(roles)", role)
	} else {
		q = q.Where("roles LIKE ?", "%"+role+"%")
	}
	var rows []models.Principal
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, p := range rows {
		if p.Roles.Has(role) {
			out = append(out, p)
		}
	}
	return out, nil
}
