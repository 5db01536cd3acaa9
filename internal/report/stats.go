package report

import (
	"strings"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// RideStats aggregates the rides of one kind.
type RideStats struct {
	Count   int
	Aborted int
	Bus     int
	Rail    int
	Taxi    int
	Bike    int

	WaitingTime simtime.Time
	Duration    simtime.Time
	RouteLength float64
}

// Stats splits ride statistics into persons and containers.
type Stats struct {
	Person    RideStats
	Container RideStats
}

var railClasses = map[string]bool{
	"rail":          true,
	"rail_urban":    true,
	"rail_electric": true,
	"rail_fast":     true,
	"tram":          true,
	"subway":        true,
	"cable_car":     true,
}

// Add accounts one ride. Rides that did not reach their destination count
// as aborted.
func (s *Stats) Add(ti transport.TripInfo) {
	rs := &s.Container
	if ti.Person {
		rs = &s.Person
	}
	if !ti.Arrival.IsSet() {
		rs.Aborted++
		return
	}
	rs.Count++
	if ti.WaitingTime.IsSet() {
		rs.WaitingTime += ti.WaitingTime
	}
	if ti.Duration.IsSet() {
		rs.Duration += ti.Duration
	}
	if ti.RouteLength > 0 {
		rs.RouteLength += ti.RouteLength
	}
	switch {
	case ti.VehicleClass == "bus":
		rs.Bus++
	case railClasses[ti.VehicleClass]:
		rs.Rail++
	case ti.VehicleClass == "bicycle" || ti.VehicleClass == "bike":
		rs.Bike++
	case ti.VehicleClass == "taxi" || strings.HasPrefix(ti.VehicleLine, transport.TaxiLine):
		rs.Taxi++
	}
}

// AddTransportable accounts every started ride of t.
func (s *Stats) AddTransportable(t *transport.Transportable, now simtime.Time) {
	for _, r := range Rides(t) {
		s.Add(r.TripInfo(t.Kind(), now))
	}
}

// MeanWaitingTime is zero when no ride was counted.
func (r RideStats) MeanWaitingTime() simtime.Time {
	if r.Count == 0 {
		return 0
	}
	return r.WaitingTime / simtime.Time(r.Count)
}

func (r RideStats) MeanRouteLength() float64 {
	if r.Count == 0 {
		return 0
	}
	return r.RouteLength / float64(r.Count)
}
