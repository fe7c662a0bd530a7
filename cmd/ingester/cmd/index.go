package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/database"
	"github.com/airportmatch/nearestairport/internal/ingester/airportdb"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "creates the configured lookup indexes if they do not exist yet",
		RunE:  createIndexes,
	}
	return cmd
}

func createIndexes(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := ctxlog.Background()
	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "failed to connect to database")
	}
	defer db.Close()

	airportDb := airportdb.New(db, metrics.Get(), config.Postgres.MaxAttempts, config.Postgres.MaxBackoff)
	return airportDb.EnsureIndexes(ctx, config.Indexes)
}
