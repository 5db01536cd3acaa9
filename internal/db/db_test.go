package db

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridesim/internal/report"
)

func TestWithDBName(t *testing.T) {
	tests := []struct {
		dsn, name, want string
	}{
		{"postgres://u:p@host:5432/old?sslmode=disable", "results", "postgres://u:p@host:5432/results?sslmode=disable"},
		{"postgresql://host/old", "/other", "postgresql://host/other"},
		{"u@host:5432/old", "new", "postgres://u@host:5432/new"},
	}
	for _, tc := range tests {
		got, err := WithDBName(tc.dsn, tc.name)
		require.NoError(t, err, tc.dsn)
		assert.Equal(t, tc.want, got)
	}

	_, err := WithDBName("", "x")
	assert.Error(t, err)
	_, err = WithDBName("mysql://host/db", "x")
	assert.Error(t, err)
}

func TestResultsDSN(t *testing.T) {
	dsn := "postgres://host/sim"
	got, err := ResultsDSN(dsn, " ")
	require.NoError(t, err)
	assert.Equal(t, dsn, got)
	got, err = ResultsDSN(dsn, "archive")
	require.NoError(t, err)
	assert.Equal(t, "postgres://host/archive", got)
}

func TestRideArgsMatchInsert(t *testing.T) {
	id := uuid.New()
	args := rideArgs(id, report.RideRow{Kind: "person", ID: "p", Stage: 1, Aborted: true})
	assert.Len(t, args, 17)
	assert.Equal(t, id, args[0])
	assert.Equal(t, true, args[16])
	assert.Contains(t, insertRide, "$17")
	assert.NotContains(t, insertRide, "$18")
}

func TestRideDestMatchesSelect(t *testing.T) {
	var r report.RideRow
	dest := rideDest(&r)
	selected := strings.TrimPrefix(strings.TrimSpace(strings.SplitN(selectRides, "FROM", 2)[0]), "SELECT")
	assert.Len(t, dest, len(strings.Split(selected, ",")))
	assert.Same(t, &r.Aborted, dest[15])
}

// TestStoreAndFetchRun needs a scratch Postgres database in RIDESIM_TEST_DATABASE_URL.
func TestStoreAndFetchRun(t *testing.T) {
	dsn := os.Getenv("RIDESIM_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RIDESIM_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Ping(ctx, db))
	require.NoError(t, EnsureSchema(ctx, db))

	rows := []report.RideRow{
		{Kind: "person", ID: "p", Stage: 1, From: "A", To: "B", Lines: "L1", Vehicle: "bus", Line: "L1", VehicleClass: "bus",
			WaitingTime: 1, Depart: 1, Arrival: 20, ArrivalPos: 60, Duration: 19, RouteLength: 145},
		{Kind: "container", ID: "c", Stage: 1, From: "A", To: "B", Lines: "L9", Vehicle: "NULL",
			WaitingTime: 10, Depart: -1, Arrival: -1, ArrivalPos: 100, Duration: -1, RouteLength: -1, Aborted: true},
	}
	runID, err := StoreRun(ctx, db, "test.yaml", 20, rows)
	require.NoError(t, err)

	got, err := FetchRides(ctx, db, runID)
	require.NoError(t, err)
	assert.Equal(t, []report.RideRow{rows[1], rows[0]}, got)

	got, err = FetchRides(ctx, db, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, got)
}
