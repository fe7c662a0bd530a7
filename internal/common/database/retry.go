package database

import (
	"context"
	"net"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/airportmatch/nearestairport/internal/common/ctxlog"
)

// IsNetworkError returns true if err was caused by the network rather than by the statement itself.
func IsNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}

// IsRetryablePostgresError returns true if Postgres rejected the statement for reasons that may go away on retry.
func IsRetryablePostgresError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgerrcode.IsConnectionException(pgErr.Code) ||
		pgerrcode.IsTransactionRollback(pgErr.Code) ||
		pgerrcode.IsInsufficientResources(pgErr.Code) ||
		pgerrcode.IsOperatorIntervention(pgErr.Code)
}

// WithDatabaseRetry executes action, retrying with exponential backoff (starting at one second, capped at
// maxBackoff) while it fails with a retryable error, for at most maxAttempts attempts. The last error is returned.
func WithDatabaseRetry(ctx *ctxlog.Context, maxAttempts int, maxBackoff time.Duration, action func() error) error {
	backOff := time.Second
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = action()
		if err == nil {
			return nil
		}
		if !(IsNetworkError(err) || IsRetryablePostgresError(err)) || attempt == maxAttempts {
			return err
		}
		wait := min(backOff, maxBackoff)
		ctx.Log.Warnf("Retryable error encountered executing sql, will wait for %s before retrying. Error was %v", wait, err)
		select {
		case <-ctx.Done():
			return errors.WithStack(context.Cause(ctx))
		case <-time.After(wait):
		}
		backOff *= 2
	}
	return err
}
