package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/database"
	"github.com/airportmatch/nearestairport/internal/ingester/airportdb"
	"github.com/airportmatch/nearestairport/internal/ingester/geo"
	"github.com/airportmatch/nearestairport/internal/ingester/model"
)

type IngesterConfiguration struct {
	// Database configuration
	Postgres database.PostgresConfig
	// Metrics and health port, 0 disables
	MetricsPort uint16
	// trace, debug, info, warn or error
	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	// text or json
	LogFormat       string `validate:"oneof=text json"`
	LocationService LocationServiceConfig
	// Maximum number of requests in flight against the location service. Also the number of workers.
	RateLimit int `validate:"gte=1"`
	// Maximum number of requests started per second, 0 for no limit
	RequestsPerSecond float64 `validate:"gte=0"`
	// Total number of attempts made for each user
	RetryLimit uint `validate:"gte=1"`
	// Fixed delay between two attempts for the same user
	RetryBackoff time.Duration `validate:"gte=0"`
	// Number of assignments bulk loaded in a single transaction
	BatchSize int `validate:"gte=1"`
	// Radius of the earth used for distances: mean (6371km), equatorial (6378km) or a number of kilometres
	EarthRadius geo.EarthRadius `validate:"gt=0"`
	// Users to process
	UserRange UserRangeConfig
	// Airport reference data as csv
	ReferenceDataPath string `validate:"required"`
	// Indexes created once all data is loaded
	Indexes []airportdb.IndexSpec `validate:"dive"`
}

type LocationServiceConfig struct {
	// e.g. https://example.execute-api.eu-west-1.amazonaws.com/dev
	BaseUrl string `validate:"required,url"`
	// Deadline of a single request, 0 for none
	RequestTimeout time.Duration `validate:"gte=0"`
}

// UserRangeConfig covers ids Start to End-1. Ids are stored as INTEGER so End-1 may not exceed 2147483647.
type UserRangeConfig struct {
	Start int64 `validate:"gte=0"`
	End   int64 `validate:"gtefield=Start,lte=2147483648"`
}

func (c UserRangeConfig) Range() model.UserRange {
	return model.UserRange{Start: c.Start, End: c.End}
}

func (c IngesterConfiguration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// ValidateIndexes checks that every configured index targets one of the ingested tables.
func (c IngesterConfiguration) ValidateIndexes() error {
	for _, index := range c.Indexes {
		if index.Table != airportdb.AssignmentTable && index.Table != airportdb.LinkTable {
			return errors.Errorf("index %s targets unknown table %s", index.Name(), index.Table)
		}
	}
	return nil
}
