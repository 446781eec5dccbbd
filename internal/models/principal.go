package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
	RoleTechAdmin  = "techadmin"
)

// RoleSet is the multi-valued role column. Postgres stores it as text[];
// other dialects fall back to the array literal in a text column.
type RoleSet []string

func (r RoleSet) Has(role string) bool {
	for _, v := range r {
		if v == role {
			return true
		}
	}
	return false
}

// Replace swaps from for to, appending to when from is absent. Duplicates are dropped.
func (r RoleSet) Replace(from, to string) RoleSet {
	out := make(RoleSet, 0, len(r)+1)
	for _, v := range r {
		if v == from || v == to {
			continue
		}
		out = append(out, v)
	}
	return append(out, to)
}

func (r RoleSet) Value() (driver.Value, error) {
	return pq.StringArray(r).Value()
}

func (r *RoleSet) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*r = RoleSet(arr)
	return nil
}

// GormDataType keeps gorm from reading the slice as a relation.
func (RoleSet) GormDataType() string { return "text[]" }

func (RoleSet) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

type Principal struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Email         string `gorm:"uniqueIndex"`
	Username      string
	FirstName     string
	LastName      string
	PreferredName string
	Roles         RoleSet
	CreatedAt     time.Time
	LastSeenAt    *time.Time
}

func (p *Principal) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DisplayName prefers the preferred name, then first/last, then the email.
func (p Principal) DisplayName() string {
	if p.PreferredName != "" {
		return p.PreferredName
	}
	if p.FirstName != "" || p.LastName != "" {
		if p.LastName == "" {
			return p.FirstName
		}
		if p.FirstName == "" {
			return p.LastName
		}
		return p.FirstName + " " + p.LastName
	}
	return p.Email
}
