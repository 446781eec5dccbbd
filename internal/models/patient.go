package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient is an AI roleplay persona inside a group.
// Names are unique per group, case-insensitively (see database.Migrate).
type Patient struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	GroupID          string `gorm:"type:uuid;index"`
	Name             string
	Ordinal          int
	Age              int
	Gender           string
	Prompt           string `gorm:"type:text"`
	AutomatedScoring bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Patient) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
