package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// ShouldAutoRun gates boot-time migrations to dev with STOCKFLOW_AUTO_MIGRATE set.
func ShouldAutoRun(cfg *config.Config) bool {
	return cfg != nil && cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

// MaybeRunDev applies the embedded migrations when ShouldAutoRun allows it.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !ShouldAutoRun(cfg) {
		return nil
	}
	source := Embedded()
	if err := Validate(source); err != nil {
		return fmt.Errorf("validate embedded migrations: %w", err)
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, source, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "dev auto-migrate starting")
	if err := runner.Run(ctx, "up", ""); err != nil {
		return err
	}
	version, err := runner.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithField(ctx, "schema_version", version), "dev auto-migrate finished")
	return nil
}
