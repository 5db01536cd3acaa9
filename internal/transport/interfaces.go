package transport

import (
	"github.com/paulmach/orb"

	"ridesim/internal/simtime"
)

// Location is a network edge a transportable can wait on or travel to.
type Location interface {
	ID() string
	Length() float64
	// PositionAt returns the point pos metres along the edge, shifted
	// lateral metres to the right of the driving direction.
	PositionAt(pos, lateral float64) orb.Point
	// AngleAt returns the heading in radians at pos.
	AngleAt(pos float64) float64
	// WaitingVehicle returns a vehicle waiting near pos that t may board, or nil.
	WaitingVehicle(t *Transportable, pos float64) Vehicle
	RemoveWaiting(v Vehicle)
	AddTransportable(t *Transportable)
	RemoveTransportable(t *Transportable)
}

// Lane is the part of a Location a vehicle drives on.
type Lane interface {
	Edge() Location
}

// Stop is a named stopping place on a lane.
type Stop interface {
	ID() string
	Name() string
	Lane() Lane
	// WaitPosition is the exact point where t waits, if the stop defines one.
	WaitPosition(t *Transportable) (orb.Point, bool)
	// WaitingPositionOnLane is the lane offset at which t waits.
	WaitingPositionOnLane(t *Transportable) float64
}

// Route measures driven distance along a vehicle's edges.
type Route interface {
	DistanceBetween(fromPos, toPos float64, fromIdx, toIdx int) float64
}

// Vehicle is the carrier a RideStage binds to.
type Vehicle interface {
	ID() string
	Line() string
	VehicleClass() string
	DepartProcedure() DepartProcedure
	HasDeparted() bool
	// Lane is nil when the vehicle is off the network.
	Lane() Lane
	Edge() Location
	Position() orb.Point
	PositionOnLane() float64
	Speed() float64
	IsStopped() bool
	DepartPos() float64
	Route() Route
	RouteIndex() int
	AddTransportable(t *Transportable)
	RemoveTransportable(t *Transportable)
	StopsAtEdge(e Location) bool
	StopsAt(s Stop) bool
}

// Oriented is implemented by carriers that have a heading.
type Oriented interface {
	Angle() float64
}

type VehicleRegistry interface {
	// Vehicle returns nil for unknown ids.
	Vehicle(id string) Vehicle
	UnregisterOneWaiting()
}

type InsertionControl interface {
	Add(v Vehicle)
}

// WaitingRegistry tracks transportables of one kind waiting for a ride.
type WaitingRegistry interface {
	AddWaiting(at Location, t *Transportable)
	AbortWaiting(t *Transportable)
}

// Dispatcher accepts on-demand ride requests.
type Dispatcher interface {
	AddReservation(t *Transportable, reservationTime, pickupTime simtime.Time, from Location, fromPos float64, to Location, toPos float64)
}

// Env bundles the simulation-wide collaborators a stage talks to.
type Env struct {
	Lefthand   bool
	Vehicles   VehicleRegistry
	Insertion  InsertionControl
	Persons    WaitingRegistry
	Containers WaitingRegistry
	Dispatch   Dispatcher
	Events     EventSink
}

// roadsideOffset is the lateral distance of a waiting transportable from the lane centre.
const roadsideOffset = 3.0

func (env *Env) sideSign() float64 {
	if env != nil && env.Lefthand {
		return -1
	}
	return 1
}

func (env *Env) emit(ev Event) {
	if env != nil && env.Events != nil {
		env.Events.StageEvent(ev)
	}
}
