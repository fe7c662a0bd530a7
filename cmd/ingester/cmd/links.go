package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
	"github.com/airportmatch/nearestairport/internal/common/database"
	"github.com/airportmatch/nearestairport/internal/ingester/airportdb"
	"github.com/airportmatch/nearestairport/internal/ingester/metrics"
	"github.com/airportmatch/nearestairport/internal/ingester/reference"
)

func linksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "loads the airport wikipedia links of the reference data without processing any user",
		RunE:  loadLinks,
	}
	return cmd
}

func loadLinks(_ *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := ctxlog.Background()
	airports, err := reference.LoadFile(config.ReferenceDataPath)
	if err != nil {
		return err
	}

	db, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return errors.WithMessage(err, "failed to connect to database")
	}
	defer db.Close()

	links := airports.Links()
	airportDb := airportdb.New(db, metrics.Get(), config.Postgres.MaxAttempts, config.Postgres.MaxBackoff)
	if err := airportDb.WriteLinks(ctx, links); err != nil {
		return err
	}
	ctx.Log.Infof("Loaded %d links of %d airports", len(links), len(airports))
	return nil
}
