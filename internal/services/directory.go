package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

// Directory owns principals and their role sets. Identity itself is verified upstream.
type Directory struct {
	runner
	roster *Roster
	ledger *Ledger
}

type Profile struct {
	Username      string `validate:"max=120"`
	FirstName     string `validate:"max=120"`
	LastName      string `validate:"max=120"`
	PreferredName string `validate:"max=120"`
}

type signInInput struct {
	Email string `validate:"required,email"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn records a verified login. Unknown emails become students; known ones get
// their profile refreshed.
func (d *Directory) SignIn(ctx context.Context, email string, profile Profile) (*models.Principal, error) {
	email = normalizeEmail(email)
	if err := validateInput(signInInput{Email: email}); err != nil {
		return nil, err
	}
	if err := validateInput(profile); err != nil {
		return nil, err
	}
	var p *models.Principal
	err := d.inTx(ctx, "principal", func(ctx context.Context, tx *repository.Store) error {
		now := d.now()
		existing, err := tx.FindPrincipalByEmail(ctx, email)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = &models.Principal{
				Email:         email,
				Username:      profile.Username,
				FirstName:     profile.FirstName,
				LastName:      profile.LastName,
				PreferredName: profile.PreferredName,
				Roles:         models.RoleSet{models.RoleStudent},
				CreatedAt:     now,
				LastSeenAt:    &now,
			}
			return tx.CreatePrincipal(ctx, p)
		case err != nil:
			return err
		}
		p = existing
		p.Username, p.FirstName, p.LastName, p.PreferredName = profile.Username, profile.FirstName, profile.LastName, profile.PreferredName
		p.LastSeenAt = &now
		return tx.UpdatePrincipalProfile(ctx, p, now)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Directory) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	var p *models.Principal
	err := d.read(ctx, "principal", func(ctx context.Context, st *repository.Store) error {
		var err error
		p, err = st.FindPrincipal(ctx, id)
		return err
	})
	return p, err
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p *models.Principal
	err := d.read(ctx, "principal", func(ctx context.Context, st *repository.Store) error {
		var err error
		p, err = st.FindPrincipalByEmail(ctx, normalizeEmail(email))
		return err
	})
	return p, err
}

// Promote makes the principal an instructor. Instructors and admins are left as
// they are; an unknown email is created as an instructor.
func (d *Directory) Promote(ctx context.Context, email string) (*models.Principal, error) {
	email = normalizeEmail(email)
	if err := validateInput(signInInput{Email: email}); err != nil {
		return nil, err
	}
	var (
		p       *models.Principal
		changed bool
	)
	err := d.inTx(ctx, "principal", func(ctx context.Context, tx *repository.Store) error {
		existing, err := tx.FindPrincipalByEmail(ctx, email)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			p = &models.Principal{Email: email, Roles: models.RoleSet{models.RoleInstructor}, CreatedAt: d.now()}
			changed = true
			return tx.CreatePrincipal(ctx, p)
		case err != nil:
			return err
		}
		p = existing
		if p.Roles.Has(models.RoleInstructor) || p.Roles.Has(models.RoleAdmin) {
			return nil
		}
		p.Roles = p.Roles.Replace(models.RoleStudent, models.RoleInstructor)
		changed = true
		return tx.UpdatePrincipalRoles(ctx, p.ID, p.Roles)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		d.ledger.recordAs(ctx, Event{Type: EventRolePromoted, Attributes: map[string]interface{}{"principal_id": p.ID}})
	}
	return p, nil
}

// Demote turns an instructor back into a student and drops all of their
// instructor enrolments with the interactions hanging off them.
func (d *Directory) Demote(ctx context.Context, email string) (*models.Principal, error) {
	email = normalizeEmail(email)
	var (
		p       *models.Principal
		removed []string
	)
	err := d.inTx(ctx, "principal", func(ctx context.Context, tx *repository.Store) error {
		var err error
		if p, err = tx.FindPrincipalByEmail(ctx, email); err != nil {
			return err
		}
		if !p.Roles.Has(models.RoleInstructor) {
			return NewInvalidError("principal is not an instructor")
		}
		p.Roles = p.Roles.Replace(models.RoleInstructor, models.RoleStudent)
		if err := tx.UpdatePrincipalRoles(ctx, p.ID, p.Roles); err != nil {
			return err
		}
		removed, err = d.roster.removeWhere(ctx, tx, repository.EnrolmentFilter{PrincipalID: p.ID, Kind: models.EnrolInstructor})
		return err
	})
	if err != nil {
		return nil, err
	}
	d.ledger.recordAs(ctx, Event{Type: EventRoleDemoted,
		Attributes: map[string]interface{}{"principal_id": p.ID, "enrolments_removed": len(removed)}})
	return p, nil
}

func (d *Directory) ListByRole(ctx context.Context, role string) ([]models.Principal, error) {
	switch role {
	case models.RoleStudent, models.RoleInstructor, models.RoleAdmin, models.RoleTechAdmin:
	default:
		return nil, NewInvalidError("unknown role")
	}
	var rows []models.Principal
	err := d.read(ctx, "principal", func(ctx context.Context, st *repository.Store) error {
		var err error
		rows, err = st.ListPrincipalsByRole(ctx, role)
		return err
	})
	return rows, err
}
