package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/zaqqye/simlab_backend/internal/config"
	"github.com/zaqqye/simlab_backend/internal/models"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         NewLogger(cfg.DBLogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// constraintIndexes back the uniqueness rules AutoMigrate cannot express.
var constraintIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_patient_group_name ON patients (group_id, lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_patients_group_ordinal ON patients (group_id, ordinal)`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Principal{},
		&models.Group{},
		&models.Enrolment{},
		&models.Patient{},
		&models.Interaction{},
		&models.Session{},
		&models.Message{},
		&models.EngagementEvent{},
	); err != nil {
		return err
	}
	for _, stmt := range constraintIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply index %q: %w", stmt, err)
		}
	}
	return nil
}
