package database

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrTestDbUnavailable is returned by WithTestDb when no Postgres instance can be reached. Tests should skip on it.
var ErrTestDbUnavailable = errors.New("test postgres instance unavailable")

const defaultTestConnectionString = "host=localhost port=5432 user=postgres password=psw sslmode=disable"

// WithTestDb spins up a dedicated Postgres database for testing, applies migrations and hands a pool to action.
// The database is dropped afterwards. The server is localhost unless INGESTER_TEST_POSTGRES holds a libpq
// connection string.
func WithTestDb(migrations []Migration, action func(db *pgxpool.Pool) error) error {
	ctx := context.Background()

	connectionString := defaultTestConnectionString
	if override, ok := os.LookupEnv("INGESTER_TEST_POSTGRES"); ok {
		connectionString = override
	}

	// Connect and create a dedicated database for the test
	dbName := "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	db, err := pgx.Connect(ctx, connectionString)
	if err != nil {
		return errors.Wrap(ErrTestDbUnavailable, err.Error())
	}
	defer db.Close(ctx)

	_, err = db.Exec(ctx, "CREATE DATABASE "+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	// Connect again: this time to the database we just created.  This is the database we use for tests
	testDbPool, err := pgxpool.New(ctx, connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	defer func() {
		testDbPool.Close()

		// disconnect all db user before cleanup
		_, err = db.Exec(ctx,
			`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = '`+dbName+`';`)
		if err != nil {
			fmt.Println("Failed to disconnect users")
		}

		_, err = db.Exec(ctx, "DROP DATABASE "+dbName)
		if err != nil {
			fmt.Println("Failed to drop database")
		}
	}()

	if err := UpdateDatabase(ctx, testDbPool, migrations); err != nil {
		return errors.WithStack(err)
	}

	return action(testDbPool)
}
