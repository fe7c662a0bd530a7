package database

import (
	"context"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Querier is the subset of pgx shared by *pgxpool.Pool, *pgx.Conn and pgx.Tx needed to run migrations.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Migration struct {
	id   int
	name string
	sql  string
}

func NewMigration(id int, name string, sql string) Migration {
	return Migration{id: id, name: name, sql: sql}
}

// UpdateDatabase applies, in order, every migration whose id is greater than the version recorded in the database.
// Migrations are written with IF NOT EXISTS so that re-running them is harmless.
func UpdateDatabase(ctx context.Context, db Querier, migrations []Migration) error {
	log.Info("Updating postgres...")
	version, err := readVersion(ctx, db)
	if err != nil {
		return err
	}
	log.Infof("Current version %v", version)

	for _, m := range migrations {
		if m.id > version {
			if _, err := db.Exec(ctx, m.sql); err != nil {
				return errors.WithMessagef(err, "applying migration %s", m.name)
			}

			version = m.id
			if err := setVersion(ctx, db, version); err != nil {
				return err
			}
		}
	}
	log.Info("Database updated.")
	return nil
}

func readVersion(ctx context.Context, db Querier) (int, error) {
	_, err := db.Exec(ctx,
		`CREATE SEQUENCE IF NOT EXISTS database_version START WITH 0 MINVALUE 0;`)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	result, err := db.Query(ctx,
		`SELECT last_value FROM database_version`)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer result.Close()
	var version int
	if !result.Next() {
		return 0, errors.WithStack(result.Err())
	}
	err = result.Scan(&version)

	return version, errors.WithStack(err)
}

func setVersion(ctx context.Context, db Querier, version int) error {
	_, err := db.Exec(ctx, `SELECT setval('database_version', $1)`, version)
	return errors.WithStack(err)
}

// ReadMigrations loads every .sql file in dir of fsys. File names must start with a numeric id followed by an
// underscore, e.g. 001_init.sql. Migrations are returned sorted by file name.
func ReadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	slices.SortFunc(files, func(a, b fs.DirEntry) bool { return a.Name() < b.Name() })

	migrations := []Migration{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		contents, err := fs.ReadFile(fsys, dir+"/"+f.Name())
		if err != nil {
			return nil, errors.WithStack(err)
		}
		id, err := strconv.Atoi(strings.Split(f.Name(), "_")[0])
		if err != nil {
			return nil, errors.WithMessagef(err, "migration %s does not start with a numeric id", f.Name())
		}
		migrations = append(migrations, Migration{
			id:   id,
			name: f.Name(),
			sql:  string(contents),
		})
	}
	return migrations, nil
}
