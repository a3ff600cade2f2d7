package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"course-enroll-backend/config"
	"course-enroll-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableConstraints {
		log.Info("applying database-level constraint DDL")
		if err := applyConstraintDDL(db); err != nil {
			return nil, err
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate runs the schema migrations for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.College{},
		&model.Student{},
		&model.Course{},
		&model.TimeSlot{},
		&model.Enrollment{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// applyConstraintDDL installs storage-level checks that back up the
// application-level guards: well-formed intervals and valid weekdays.
// The (student_id, course_id) uniqueness is already carried by the
// enrollments composite primary key.
func applyConstraintDDL(db *gorm.DB) error {
	ddls := []string{
		"ALTER TABLE time_slots DROP CONSTRAINT IF EXISTS time_slots_interval_valid;",
		"ALTER TABLE time_slots " +
			"ADD CONSTRAINT time_slots_interval_valid CHECK (start_sec < end_sec);",

		"ALTER TABLE time_slots DROP CONSTRAINT IF EXISTS time_slots_weekday_valid;",
		"ALTER TABLE time_slots " +
			"ADD CONSTRAINT time_slots_weekday_valid CHECK (weekday BETWEEN 0 AND 6);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
