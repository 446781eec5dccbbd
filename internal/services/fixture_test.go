package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zaqqye/simlab_backend/internal/database"
	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/repository"
)

const testAccessCode = "ABCD-EFGH-1234-5678"

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []InteractionUpdate
}

func (n *recordingNotifier) InteractionChanged(u InteractionUpdate) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.updates)
}

type failingEvents struct{ calls int }

func (f *failingEvents) InsertEvent(ctx context.Context, e *models.EngagementEvent) error {
	f.calls++
	return errors.New("ledger offline")
}

func (f *failingEvents) ListEvents(ctx context.Context, _ repository.EventFilter) ([]models.EngagementEvent, error) {
	return nil, errors.New("ledger offline")
}

type fixture struct {
	db       *gorm.DB
	store    *repository.Store
	svc      *Services
	notifier *recordingNotifier
}

var dbSeq struct {
	sync.Mutex
	n int
}

// newFixture runs against a private in-memory database on a single connection.
func newFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	dbSeq.Lock()
	dbSeq.n++
	dsn := fmt.Sprintf("file:services_%d?mode=memory&cache=shared", dbSeq.n)
	dbSeq.Unlock()
	return openFixture(t, dsn, 1, tweak...)
}

// newPooledFixture runs against a WAL database file with a connection pool, so
// concurrent callers really contend. Transactions begin IMMEDIATE and wait on
// the busy timeout the way postgres waits on the group row lock.
func newPooledFixture(t *testing.T, tweak ...func(*Options)) *fixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "services.db") + "?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	return openFixture(t, dsn, 8, tweak...)
}

func openFixture(t *testing.T, dsn string, conns int, tweak ...func(*Options)) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := repository.New(db)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	clock := &tickClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	opts := Options{OpTimeout: 10 * time.Second, Notifier: notifier, Now: clock.Now}
	for _, fn := range tweak {
		fn(&opts)
	}
	return &fixture{db: db, store: store, svc: New(store, opts), notifier: notifier}
}

// beforeInsert runs fn ahead of every INSERT into table. fn may add an error to
// db to make the insert fail.
func (f *fixture) beforeInsert(t *testing.T, table string, fn func(db *gorm.DB)) {
	t.Helper()
	name := "test:before_insert_" + table
	err := f.db.Callback().Create().Before("gorm:create").Register(name, func(db *gorm.DB) {
		if db.Statement.Table == table {
			fn(db)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) student(t *testing.T, email string) *models.Principal {
	t.Helper()
	p, err := f.svc.Directory.SignIn(context.Background(), email, Profile{FirstName: "Test"})
	if err != nil {
		t.Fatalf("SignIn(%s): %v", email, err)
	}
	return p
}

func (f *fixture) instructor(t *testing.T, email string) *models.Principal {
	t.Helper()
	p, err := f.svc.Directory.Promote(context.Background(), email)
	if err != nil {
		t.Fatalf("Promote(%s): %v", email, err)
	}
	return p
}

func (f *fixture) group(t *testing.T, code string, open bool) *models.Group {
	t.Helper()
	g, err := f.svc.Groups.CreateGroup(context.Background(), GroupInput{
		Name:              "Cardiology " + code,
		AccessCode:        code,
		StudentSelfEnroll: open,
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return g
}

func (f *fixture) patient(t *testing.T, groupID, name string) string {
	t.Helper()
	id, err := f.svc.Catalog.CreatePatient(context.Background(), groupID, PatientInput{Name: name, Age: 54, Gender: "female"})
	if err != nil {
		t.Fatalf("CreatePatient(%s): %v", name, err)
	}
	return id
}

func (f *fixture) interactions(t *testing.T, enrolmentID string) []models.Interaction {
	t.Helper()
	var rows []models.Interaction
	if err := f.db.Where("enrolment_id = ?", enrolmentID).Order("patient_id").Find(&rows).Error; err != nil {
		t.Fatalf("interactions: %v", err)
	}
	return rows
}

func wantCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	if !IsCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}
