package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrolKind string

const (
	EnrolStudent    EnrolKind = "student"
	EnrolInstructor EnrolKind = "instructor"
)

func (k EnrolKind) Valid() bool {
	return k == EnrolStudent || k == EnrolInstructor
}

// Enrolment links a principal to a group. At most one row per (group, principal).
type Enrolment struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	GroupID     string    `gorm:"type:uuid;uniqueIndex:uniq_group_principal,priority:1"`
	PrincipalID string    `gorm:"type:uuid;uniqueIndex:uniq_group_principal,priority:2;index"`
	Kind        EnrolKind `gorm:"size:16;index"`
	EnrolledAt  time.Time
}

func (e *Enrolment) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
