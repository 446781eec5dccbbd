package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ScoreNotMastered = 0
	ScoreMastered    = 100
)

// Interaction is the derived row for one enrolment × patient pair of the same group.
type Interaction struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	PatientID    string `gorm:"type:uuid;uniqueIndex:uniq_patient_enrolment,priority:1"`
	EnrolmentID  string `gorm:"type:uuid;uniqueIndex:uniq_patient_enrolment,priority:2;index"`
	Score        int
	Completed    bool
	LastAccessed time.Time
}

func (Interaction) TableName() string { return "student_interactions" }

func (i *Interaction) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// NewInteraction returns the initial state for a fresh pair.
func NewInteraction(patientID, enrolmentID string, now time.Time) Interaction {
	return Interaction{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		EnrolmentID:  enrolmentID,
		Score:        ScoreNotMastered,
		Completed:    false,
		LastAccessed: now,
	}
}
