package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is a simulation group. Students join with AccessCode while StudentSelfEnroll is on.
type Group struct {
	ID                string `gorm:"type:uuid;primaryKey"`
	Name              string
	Description       string `gorm:"type:text"`
	AccessCode        string `gorm:"size:19;uniqueIndex"`
	StudentSelfEnroll bool
	SystemPrompt      string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Group) TableName() string { return "simulation_groups" }

func (g *Group) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
