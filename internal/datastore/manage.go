package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/observability/metrics"
)

// slowQueryThreshold marks queries logged as slow by the GORM adapter.
const slowQueryThreshold = 200 * time.Millisecond

// createGormLogger routes GORM output through the datastore module logger.
func createGormLogger() *logger.GormLoggerAdapter {
	return logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold)
}

// performAutoMigration creates or updates the training_runs table.
func performAutoMigration(db *gorm.DB, dbType string, m *metrics.DatastoreMetrics) error {
	start := time.Now()
	log := GetLogger().With(logger.String("db_type", dbType))
	log.Debug("Starting database migration")

	err := db.AutoMigrate(&TrainingRun{})
	if m != nil {
		m.RecordOperation(metrics.OpMigrate, time.Since(start), err)
	}
	if err != nil {
		log.Error("Database migration failed", logger.Error(err))
		return dbError(err, "auto_migrate")
	}

	log.Debug("Database migration completed successfully",
		logger.Duration("total_duration", time.Since(start)))
	return nil
}

// closeDB closes the underlying sql.DB of a GORM handle.
func closeDB(db *gorm.DB) error {
	if db == nil {
		return dbError(ErrNotOpen, "close")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}
