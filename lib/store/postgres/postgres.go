// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/tarancss/airnode/lib/store"
)

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection'.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// SaveRun archives a run report. Expects a table: runs(started_at timestamptz, report jsonb).
func (p *Postgres) SaveRun(report store.RunReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return err
	}

	if _, err = p.db.Exec("INSERT INTO runs (started_at, report) VALUES ($1, $2)", report.StartedAt, doc); err != nil {
		return fmt.Errorf("could not insert run report in db: %w", err)
	}

	return nil
}
