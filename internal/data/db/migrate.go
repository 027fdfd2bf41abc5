package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/peai-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.All()...)
}

// EnsureIndexes adds partial unique indexes gorm tags cannot express. The
// syntax is shared by Postgres and SQLite.
func EnsureIndexes(db *gorm.DB) error {
	// One live plan per student.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_pei_student_live
		ON pei(student_id)
		WHERE deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_pei_student_live: %w", err)
	}
	// At most one queued or running job per (type, entity).
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_job_run_active_entity
		ON job_run(job_type, entity_id)
		WHERE status IN ('queued', 'running') AND entity_id IS NOT NULL AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_active_entity: %w", err)
	}
	return nil
}
