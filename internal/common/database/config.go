package database

import "time"

type PostgresConfig struct {
	// libpq keyword/value pairs, e.g. host, port, user, password, dbname, sslmode
	Connection map[string]string `validate:"required"`
	// Upper bound on pooled connections. Zero uses the pgx default.
	MaxConns int32 `validate:"gte=0"`
	// Number of times a batch transaction is attempted when the database reports a retryable error
	MaxAttempts int `validate:"gte=1"`
	// Upper bound on the exponential backoff between those attempts
	MaxBackoff time.Duration
}
