package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EngagementEvent is an append-only audit row. The id columns are plain values,
// not foreign keys, so events survive deletion of what they mention.
type EngagementEvent struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	PrincipalID *string `gorm:"type:uuid;index"`
	GroupID     *string `gorm:"type:uuid;index"`
	PatientID   *string `gorm:"type:uuid"`
	EnrolmentID *string `gorm:"type:uuid"`
	EventType   string  `gorm:"size:64;index"`
	Timestamp   time.Time
	Detail      *string `gorm:"type:text"`
	Attributes  datatypes.JSON
}

func (EngagementEvent) TableName() string { return "user_engagement_log" }

func (e *EngagementEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
