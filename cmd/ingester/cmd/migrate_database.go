package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/database"
	"github.com/airportmatch/nearestairport/internal/ingester/airportdb"
)

func migrateDbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrates the nearest airport database to the latest version",
		RunE:  migrateDatabase,
	}
	return cmd
}

func migrateDatabase(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := ctxlog.Background()
	start := time.Now()
	ctx.Log.Info("Beginning nearest airport database migration")
	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "failed to connect to database")
	}
	defer db.Close()

	migrations, err := airportdb.Migrations()
	if err != nil {
		return err
	}
	if err := database.UpdateDatabase(ctx, db, migrations); err != nil {
		return errors.WithMessage(err, "failed to migrate nearest airport database")
	}
	ctx.Log.Infof("Nearest airport database migrated in %s", time.Since(start))
	return nil
}
