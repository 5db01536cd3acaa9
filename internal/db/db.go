// Package db stores ride results in Postgres through the pgx driver.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ridesim/internal/report"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS ride_runs (
  run_id     uuid PRIMARY KEY,
  scenario   text NOT NULL,
  started_at timestamptz NOT NULL,
  end_time   double precision NOT NULL
);
CREATE TABLE IF NOT EXISTS rides (
  run_id           uuid NOT NULL REFERENCES ride_runs (run_id) ON DELETE CASCADE,
  kind             text NOT NULL,
  transportable_id text NOT NULL,
  stage            integer NOT NULL,
  from_edge        text NOT NULL,
  to_edge          text NOT NULL,
  lines            text NOT NULL,
  vehicle          text NOT NULL,
  line             text NOT NULL,
  vclass           text NOT NULL,
  waiting_time     double precision NOT NULL,
  depart           double precision NOT NULL,
  arrival          double precision NOT NULL,
  arrival_pos      double precision NOT NULL,
  duration         double precision NOT NULL,
  route_length     double precision NOT NULL,
  aborted          boolean NOT NULL,
  PRIMARY KEY (run_id, kind, transportable_id, stage)
)`

// EnsureSchema creates the result tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const insertRide = `
INSERT INTO rides (run_id, kind, transportable_id, stage, from_edge, to_edge, lines, vehicle, line, vclass,
                   waiting_time, depart, arrival, arrival_pos, duration, route_length, aborted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// StoreRun writes one simulation run and its rides in a single transaction
// and returns the generated run id.
func StoreRun(ctx context.Context, db *sql.DB, scenario string, endTime float64, rows []report.RideRow) (uuid.UUID, error) {
	runID := uuid.New()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ride_runs (run_id, scenario, started_at, end_time) VALUES ($1, $2, $3, $4)`,
		runID, scenario, time.Now().UTC(), endTime); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertRide)
	if err != nil {
		return uuid.Nil, fmt.Errorf("prepare rides: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, rideArgs(runID, r)...); err != nil {
			return uuid.Nil, fmt.Errorf("insert ride %s %q stage %d: %w", r.Kind, r.ID, r.Stage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func rideArgs(runID uuid.UUID, r report.RideRow) []any {
	return []any{
		runID, r.Kind, r.ID, r.Stage, r.From, r.To, r.Lines, r.Vehicle, r.Line, r.VehicleClass,
		r.WaitingTime, r.Depart, r.Arrival, r.ArrivalPos, r.Duration, r.RouteLength, r.Aborted,
	}
}

const selectRides = `
SELECT kind, transportable_id, stage, from_edge, to_edge, lines, vehicle, line, vclass,
       waiting_time, depart, arrival, arrival_pos, duration, route_length, aborted
FROM rides WHERE run_id = $1 ORDER BY kind, transportable_id, stage`

func rideDest(r *report.RideRow) []any {
	return []any{
		&r.Kind, &r.ID, &r.Stage, &r.From, &r.To, &r.Lines, &r.Vehicle, &r.Line, &r.VehicleClass,
		&r.WaitingTime, &r.Depart, &r.Arrival, &r.ArrivalPos, &r.Duration, &r.RouteLength, &r.Aborted,
	}
}

// FetchRides returns the rides of a run ordered by transportable and stage.
func FetchRides(ctx context.Context, db *sql.DB, runID uuid.UUID) ([]report.RideRow, error) {
	rows, err := db.QueryContext(ctx, selectRides, runID)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()
	var out []report.RideRow
	for rows.Next() {
		var r report.RideRow
		if err := rows.Scan(rideDest(&r)...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
