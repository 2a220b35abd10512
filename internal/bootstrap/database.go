package bootstrap

import (
	"fmt"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence"
	"github.com/clinic/pharmacy/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const slowQueryThreshold = 200 * time.Millisecond

// OpenDatabase connects with SQL logged through log, creates the sqlite
// schema when running embedded and installs query tracing when enabled.
// PostgreSQL schemas are owned by cmd/migrate.
func OpenDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level), slowQueryThreshold)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}

	if db.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	system := "postgresql"
	if db.Driver == "sqlite" {
		system = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem:        system,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register db tracing: %w", err)
	}
	return db, nil
}
