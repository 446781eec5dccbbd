package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SenderStudent = "student"
	SenderAI      = "ai"
)

type Session struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	InteractionID string `gorm:"type:uuid;index"`
	Name          string
	Notes         string `gorm:"type:text"`
	LastAccessed  time.Time
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Message struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	SessionID string    `gorm:"type:uuid;index"`
	Sender    string    `gorm:"size:16"`
	Content   string    `gorm:"type:text"`
	SentAt    time.Time `gorm:"index"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
