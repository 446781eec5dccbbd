// Package services holds the enrollment and interaction-consistency engine. Every
// exported operation bounds itself with the configured timeout, runs its writes in
// one transaction and reports failures as *ServiceError.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zaqqye/simlab_backend/internal/repository"
)

const defaultOpTimeout = 5 * time.Second

var validate = validator.New()

// validateInput runs struct tags and turns failures into an invalid error naming the fields.
func validateInput(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewInvalidError(err.Error())
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return NewInvalidError("invalid " + strings.Join(fields, ", "))
}

type actorKey struct{}

// WithActor tags ctx with the principal performing the operation, for the ledger.
func WithActor(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, actorKey{}, principalID)
}

func actorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

// runner is embedded by every service.
type runner struct {
	store   *repository.Store
	timeout time.Duration
	now     func() time.Time
}

func (r runner) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}

// inTx runs fn inside one transaction under the operation timeout.
func (r runner) inTx(ctx context.Context, what string, fn func(ctx context.Context, tx *repository.Store) error) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	err := r.store.Transaction(ctx, func(tx *repository.Store) error {
		return fn(ctx, tx)
	})
	return classify(err, what)
}

// read runs a non-transactional read under the operation timeout.
func (r runner) read(ctx context.Context, what string, fn func(ctx context.Context, s *repository.Store) error) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return classify(fn(ctx, r.store), what)
}

type Options struct {
	OpTimeout time.Duration
	Notifier  Notifier
	Events    EventStore // defaults to the main store
	Now       func() time.Time
}

// Services wires every component against one store.
type Services struct {
	Directory     *Directory
	Groups        *Groups
	Roster        *Roster
	Catalog       *Catalog
	Sync          *Synchronizer
	Scoring       *Scoring
	Ledger        *Ledger
	Conversations *Conversations
}

func New(store *repository.Store, opts Options) *Services {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	var events EventStore = store
	if opts.Events != nil {
		events = opts.Events
	}
	base := runner{store: store, timeout: opts.OpTimeout, now: opts.Now}

	ledger := &Ledger{store: events, timeout: opts.OpTimeout, now: opts.Now}
	sync := &Synchronizer{runner: base, ledger: ledger}
	roster := &Roster{runner: base, sync: sync, ledger: ledger}
	catalog := &Catalog{runner: base, sync: sync, ledger: ledger}
	return &Services{
		Directory:     &Directory{runner: base, roster: roster, ledger: ledger},
		Groups:        &Groups{runner: base, sync: sync, ledger: ledger, generateCode: defaultCodeGenerator},
		Roster:        roster,
		Catalog:       catalog,
		Sync:          sync,
		Scoring:       &Scoring{runner: base, catalog: catalog, ledger: ledger, notifier: opts.Notifier},
		Ledger:        ledger,
		Conversations: &Conversations{runner: base, ledger: ledger},
	}
}
