package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/courier-dispatch/pkg/config"
	"github.com/angelmondragon/courier-dispatch/pkg/db"
	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

// MaybeRunDev applies pending migrations at startup, but only in dev with
// auto-migrate switched on. The directory is validated before goose runs.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	versions, err := Versions(DefaultDir)
	if err != nil {
		return fmt.Errorf("validating migrations: %w", err)
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	fields := map[string]any{"dir": DefaultDir, "migrations": len(versions)}
	if len(versions) > 0 {
		fields["latest_version"] = versions[len(versions)-1]
	}
	ctx = logg.WithFields(ctx, fields)
	logg.Info(ctx, "applying migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
