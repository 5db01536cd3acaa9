package transport

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"ridesim/internal/simtime"
)

const (
	// AnyLine accepts every vehicle that stops at the destination.
	AnyLine = "ANY"
	// TaxiLine requests an on-demand ride from the dispatcher.
	TaxiLine = "taxi"

	noVehicle = "NULL"
)

// RideStage is the part of a plan where a transportable waits for and then
// rides in a vehicle.
//
// The vehicle reference is set at most once. Identity, line and class are
// copied at bind time so records stay valid after the vehicle is gone.
type RideStage struct {
	stageBase

	lines []string

	vehicle      Vehicle
	vehicleID    string
	vehicleLine  string
	vehicleClass string

	// distanceAtBind is the route distance the vehicle had driven when the
	// transportable boarded; netDistance is set on arrival.
	distanceAtBind float64
	netDistance    float64
	finished       bool

	waitingSince   simtime.Time
	waitingEdge    Location
	waitingPos     float64
	stopWaitPos    orb.Point
	hasStopWaitPos bool

	intendedVehicleID string
	intendedDepart    simtime.Time
}

// NewRideStage builds a ride to dest (or destStop when non-nil) for any of
// the given lines. Duplicate lines are dropped.
func NewRideStage(dest Location, destStop Stop, arrivalPos float64, lines []string, intendedVehicleID string, intendedDepart simtime.Time) *RideStage {
	set := lo.Uniq(lines)
	slices.Sort(set)
	return &RideStage{
		stageBase:         newStageBase(dest, destStop, arrivalPos),
		lines:             set,
		vehicleID:         noVehicle,
		distanceAtBind:    -1,
		netDistance:       -1,
		waitingSince:      simtime.Unset,
		intendedVehicleID: intendedVehicleID,
		intendedDepart:    intendedDepart,
	}
}

func (r *RideStage) Type() StageType { return StageDriving }

// Lines returns a copy of the accepted lines in sorted order.
func (r *RideStage) Lines() []string { return slices.Clone(r.lines) }

func (r *RideStage) Clone() Stage {
	return NewRideStage(r.destination, r.destinationStop, r.arrivalPos, slices.Clone(r.lines), r.intendedVehicleID, r.intendedDepart)
}

// Activate starts waiting for a ride. previous is the stage that just ended
// and defines where the transportable waits.
func (r *RideStage) Activate(env *Env, t *Transportable, now simtime.Time, previous Stage) error {
	r.waitingSince = now
	if start := previous.DestinationStop(); start != nil {
		r.waitingEdge = start.Lane().Edge()
		r.stopWaitPos, r.hasStopWaitPos = start.WaitPosition(t)
		r.waitingPos = start.WaitingPositionOnLane(t)
	} else {
		r.waitingEdge = previous.Location()
		r.hasStopWaitPos = false
		r.waitingPos = previous.EdgePos(now)
	}

	// first real stage after the departure placeholder
	if t.DepartProcedure() == DepartTriggered && t.NumRemainingStages() == t.NumStages()-1 {
		var vehID string
		var v Vehicle
		if len(r.lines) > 0 {
			vehID = r.lines[0]
			v = env.Vehicles.Vehicle(vehID)
		}
		if v == nil {
			return &VehicleNotFoundError{VehicleID: vehID, TransportableID: t.ID(), Kind: t.Kind()}
		}
		r.Bind(v, now)
		v.AddTransportable(t)
		return nil
	}

	available := r.waitingEdge.WaitingVehicle(t, r.waitingPos)
	triggered := available != nil && available.DepartProcedure() == t.Kind().TriggerProcedure()
	if triggered && !available.HasDeparted() {
		r.Bind(available, now)
		available.AddTransportable(t)
		env.Insertion.Add(available)
		r.waitingEdge.RemoveWaiting(available)
		env.Vehicles.UnregisterOneWaiting()
		return nil
	}

	t.Kind().Waiting(env).AddWaiting(r.waitingEdge, t)
	r.waitingEdge.AddTransportable(t)
	if t.Kind().IsPerson() && len(r.lines) == 1 && r.lines[0] == TaxiLine && env.Dispatch != nil {
		env.Dispatch.AddReservation(t, now, now, r.waitingEdge, r.waitingPos, r.destination, r.arrivalPos)
	}
	return nil
}

// Accepts reports whether v may carry the transportable on this stage.
func (r *RideStage) Accepts(v Vehicle) bool {
	if lo.Contains(r.lines, v.ID()) || lo.Contains(r.lines, v.Line()) {
		return true
	}
	if !lo.Contains(r.lines, AnyLine) {
		return false
	}
	if r.destinationStop == nil {
		return v.StopsAtEdge(r.destination)
	}
	return v.StopsAt(r.destinationStop)
}

// Bind attaches the stage to v. It must be called at most once.
func (r *RideStage) Bind(v Vehicle, now simtime.Time) {
	r.vehicle = v
	r.vehicleID = v.ID()
	r.vehicleLine = v.Line()
	r.vehicleClass = v.VehicleClass()
	r.distanceAtBind = drivenDistance(v)
	r.setDeparted(now)
}

func drivenDistance(v Vehicle) float64 {
	return v.Route().DistanceBetween(v.DepartPos(), v.PositionOnLane(), 0, v.RouteIndex())
}

func (r *RideStage) SetArrived(env *Env, t *Transportable, now simtime.Time) {
	r.setArrived(now)
	r.finished = true
	if r.vehicle == nil {
		// should not happen: the stage ended before any vehicle took the transportable
		log.Warn().Str("transportable", t.ID()).Str("kind", t.Kind().String()).Msg("ride finished without a vehicle")
		r.netDistance = -1
		return
	}
	r.netDistance = drivenDistance(r.vehicle) - r.distanceAtBind
	if r.vehicle.IsStopped() {
		r.arrivalPos = r.vehicle.PositionOnLane()
	}
}

// Abort removes the transportable from its vehicle or from the waiting registry.
func (r *RideStage) Abort(env *Env, t *Transportable) {
	if r.vehicle != nil {
		r.vehicle.RemoveTransportable(t)
		return
	}
	t.Kind().Waiting(env).AbortWaiting(t)
}

// IsWaiting reports whether no vehicle has been bound yet.
func (r *RideStage) IsWaiting() bool { return r.vehicle == nil }

func (r *RideStage) Vehicle() Vehicle { return r.vehicle }

func (r *RideStage) Location() Location {
	if r.vehicle != nil {
		if lane := r.vehicle.Lane(); lane != nil {
			return lane.Edge()
		}
		return r.vehicle.Edge()
	}
	return r.waitingEdge
}

// FromEdge is the edge where the transportable started waiting.
func (r *RideStage) FromEdge() Location { return r.waitingEdge }

// Edges returns the origin and destination edges of the ride.
func (r *RideStage) Edges() []Location { return []Location{r.waitingEdge, r.destination} }

func (r *RideStage) EdgePos(now simtime.Time) float64 {
	if r.IsWaiting() {
		return r.waitingPos
	}
	// the vehicle may already be past the lane
	return math.Min(r.vehicle.PositionOnLane(), r.Location().Length())
}

func (r *RideStage) Position(env *Env, now simtime.Time) orb.Point {
	if r.IsWaiting() {
		if r.hasStopWaitPos {
			return r.stopWaitPos
		}
		return r.waitingEdge.PositionAt(r.waitingPos, roadsideOffset*env.sideSign())
	}
	return r.vehicle.Position()
}

func (r *RideStage) Angle(env *Env, now simtime.Time) float64 {
	if !r.IsWaiting() {
		if o, ok := r.vehicle.(Oriented); ok {
			return o.Angle()
		}
		return 0
	}
	return r.waitingEdge.AngleAt(r.waitingPos) + math.Pi/2*env.sideSign()
}

func (r *RideStage) Speed() float64 {
	if r.IsWaiting() {
		return 0
	}
	return r.vehicle.Speed()
}

// WaitingTime is the time spent waiting so far; it is zero once boarded.
func (r *RideStage) WaitingTime(now simtime.Time) simtime.Time {
	if r.IsWaiting() {
		return now - r.waitingSince
	}
	return 0
}

func (r *RideStage) WaitingSince() simtime.Time { return r.waitingSince }

// RouteLength is -1 before boarding, the vehicle's driven distance at
// boarding while riding, and the distance driven during the ride afterwards.
func (r *RideStage) RouteLength() float64 {
	if r.finished {
		return r.netDistance
	}
	return r.distanceAtBind
}

func (r *RideStage) VehicleID() string { return r.vehicleID }
func (r *RideStage) VehicleLine() string { return r.vehicleLine }
func (r *RideStage) VehicleClass() string { return r.vehicleClass }
