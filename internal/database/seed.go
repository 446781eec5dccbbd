package database

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/zaqqye/simlab_backend/internal/config"
	"github.com/zaqqye/simlab_backend/internal/models"
)

// SeedAdmin makes sure the bootstrap admin principal exists and carries the admin role.
func SeedAdmin(db *gorm.DB, cfg *config.Config) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" {
		return nil
	}
	var p models.Principal
	err := db.Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.Principal{
			Email:     email,
			FirstName: cfg.AdminFullName,
			Roles:     models.RoleSet{models.RoleAdmin},
			CreatedAt: time.Now().UTC(),
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
		log.Println("Seeded initial admin:", email)
		return nil
	}
	if err != nil {
		return err
	}
	if p.Roles.Has(models.RoleAdmin) {
		return nil
	}
	p.Roles = append(p.Roles, models.RoleAdmin)
	if err := db.Model(&p).Update("roles", p.Roles).Error; err != nil {
		return err
	}
	log.Println("Granted admin role to:", email)
	return nil
}
