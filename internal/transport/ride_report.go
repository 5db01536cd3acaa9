package transport

import (
	"strings"

	"ridesim/internal/simtime"
)

// TripInfo is the per-ride record written to the trip summary output.
type TripInfo struct {
	Tag          string
	Person       bool
	WaitingTime  simtime.Time
	Vehicle      string
	VehicleLine  string
	VehicleClass string
	Depart       simtime.Time
	Arrival      simtime.Time
	ArrivalPos   float64
	// Duration is Unset when the ride never started.
	Duration    simtime.Time
	RouteLength float64
}

// RouteRecord is the replayable description of a ride.
type RouteRecord struct {
	Tag            string
	From           string
	To             string
	StopID         string
	StopName       string
	Lines          []string
	Intended       string
	IntendedDepart simtime.Time
	// RouteLength is only set when requested.
	RouteLength *float64
}

func (r *RideStage) Description(k *Kind) string {
	if r.IsWaiting() {
		return "waiting for " + strings.Join(r.lines, ",")
	}
	return k.ride
}

func (r *RideStage) Summary(k *Kind) string {
	intended := ""
	if r.intendedVehicleID != "" {
		intended = " (vehicle " + r.intendedVehicleID + " at time " + r.intendedDepart.String() + ")"
	}
	if r.IsWaiting() {
		return "waiting for " + strings.Join(r.lines, ",") + intended + " then " + k.mode + " to " + r.destinationName()
	}
	return k.mode + " to " + r.destinationName()
}

// WaitingDescription is empty once a vehicle has been bound.
func (r *RideStage) WaitingDescription() string {
	if !r.IsWaiting() {
		return ""
	}
	where := ""
	switch {
	case r.destinationStop != nil:
		where = "busStop '" + r.destinationStop.ID() + "'"
	case r.waitingEdge != nil:
		where = "edge '" + r.waitingEdge.ID() + "'"
	}
	return "waiting for " + strings.Join(r.lines, ",") + " at " + where
}

// TripInfo builds the trip summary record. now stands in for the departure
// time of rides that never started.
func (r *RideStage) TripInfo(k *Kind, now simtime.Time) TripInfo {
	departed := r.departed
	if departed < 0 {
		departed = now
	}
	waiting := simtime.Unset
	if r.waitingSince >= 0 {
		waiting = departed - r.waitingSince
	}
	duration := simtime.Unset
	switch {
	case r.arrived >= 0:
		duration = r.arrived - r.departed
	case r.departed >= 0:
		duration = now - r.departed
	}
	return TripInfo{
		Tag:          k.tag,
		Person:       k.person,
		WaitingTime:  waiting,
		Vehicle:      r.vehicleID,
		VehicleLine:  r.vehicleLine,
		VehicleClass: r.vehicleClass,
		Depart:       r.departed,
		Arrival:      r.arrived,
		ArrivalPos:   r.arrivalPos,
		Duration:     duration,
		RouteLength:  r.RouteLength(),
	}
}

func (r *RideStage) RouteRecord(k *Kind, withRouteLength bool) RouteRecord {
	rec := RouteRecord{
		Tag:            k.tag,
		To:             r.destination.ID(),
		Lines:          r.Lines(),
		Intended:       r.intendedVehicleID,
		IntendedDepart: r.intendedDepart,
	}
	if r.waitingEdge != nil {
		rec.From = r.waitingEdge.ID()
	}
	if r.destinationStop != nil {
		rec.StopID = r.destinationStop.ID()
		rec.StopName = r.destinationStop.Name()
	}
	if withRouteLength {
		l := r.RouteLength()
		rec.RouteLength = &l
	}
	return rec
}
