// Package report turns finished itineraries into trip records, route
// replays, CSV summaries and aggregate statistics.
package report

import (
	"io"

	"github.com/gocarina/gocsv"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// RideRow is one ride of one transportable, flattened for CSV and database export.
type RideRow struct {
	Kind         string  `csv:"kind"`
	ID           string  `csv:"id"`
	Stage        int     `csv:"stage"`
	From         string  `csv:"from"`
	To           string  `csv:"to"`
	Lines        string  `csv:"lines"`
	Vehicle      string  `csv:"vehicle"`
	Line         string  `csv:"line"`
	VehicleClass string  `csv:"vclass"`
	WaitingTime  float64 `csv:"waiting_time"`
	Depart       float64 `csv:"depart"`
	Arrival      float64 `csv:"arrival"`
	ArrivalPos   float64 `csv:"arrival_pos"`
	Duration     float64 `csv:"duration"`
	RouteLength  float64 `csv:"route_length"`
	Aborted      bool    `csv:"aborted"`
}

func seconds(t simtime.Time) float64 {
	if t < 0 {
		return -1
	}
	return t.Seconds()
}

// Rides returns the started rides of t. A ride counts as started once the
// transportable began waiting for it.
func Rides(t *transport.Transportable) []*transport.RideStage {
	var out []*transport.RideStage
	for _, s := range t.Plan() {
		if r, ok := s.(*transport.RideStage); ok && r.WaitingSince().IsSet() {
			out = append(out, r)
		}
	}
	return out
}

// Rows flattens the started rides of t.
func Rows(t *transport.Transportable, now simtime.Time) []RideRow {
	var rows []RideRow
	for i, s := range t.Plan() {
		r, ok := s.(*transport.RideStage)
		if !ok || !r.WaitingSince().IsSet() {
			continue
		}
		ti := r.TripInfo(t.Kind(), now)
		rec := r.RouteRecord(t.Kind(), false)
		rows = append(rows, RideRow{
			Kind:         t.Kind().String(),
			ID:           t.ID(),
			Stage:        i,
			From:         rec.From,
			To:           rec.To,
			Lines:        joinLines(rec.Lines),
			Vehicle:      ti.Vehicle,
			Line:         ti.VehicleLine,
			VehicleClass: ti.VehicleClass,
			WaitingTime:  seconds(ti.WaitingTime),
			Depart:       seconds(ti.Depart),
			Arrival:      seconds(ti.Arrival),
			ArrivalPos:   ti.ArrivalPos,
			Duration:     seconds(ti.Duration),
			RouteLength:  ti.RouteLength,
			Aborted:      !ti.Arrival.IsSet(),
		})
	}
	return rows
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []RideRow) error {
	return gocsv.Marshal(&rows, w)
}

// ReadCSV parses rows written by WriteCSV.
func ReadCSV(r io.Reader) ([]RideRow, error) {
	var rows []RideRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
