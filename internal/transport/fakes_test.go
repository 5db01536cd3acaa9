package transport

import (
	"slices"

	"github.com/paulmach/orb"

	"ridesim/internal/simtime"
)

// fakeEdge is a straight edge along the x axis rotated by angle.
type fakeEdge struct {
	id       string
	length   float64
	angle    float64
	waiting  []Vehicle
	removed  []Vehicle
	occupied []*Transportable
	queried  int
}

func (e *fakeEdge) ID() string { return e.id }
func (e *fakeEdge) Length() float64 { return e.length }
func (e *fakeEdge) PositionAt(pos, lateral float64) orb.Point {
	return orb.Point{pos, -lateral}
}
func (e *fakeEdge) AngleAt(pos float64) float64 { return e.angle }
func (e *fakeEdge) WaitingVehicle(t *Transportable, pos float64) Vehicle {
	e.queried++
	for _, v := range e.waiting {
		if t.IsWaitingFor(v) {
			return v
		}
	}
	return nil
}
func (e *fakeEdge) RemoveWaiting(v Vehicle) {
	e.removed = append(e.removed, v)
	e.waiting = slices.DeleteFunc(e.waiting, func(w Vehicle) bool { return w == v })
}
func (e *fakeEdge) AddTransportable(t *Transportable) { e.occupied = append(e.occupied, t) }
func (e *fakeEdge) RemoveTransportable(t *Transportable) {
	e.occupied = slices.DeleteFunc(e.occupied, func(o *Transportable) bool { return o == t })
}

type fakeLane struct{ edge Location }

func (l fakeLane) Edge() Location { return l.edge }

type fakeStop struct {
	id, name string
	lane     Lane
	point    orb.Point
	hasPoint bool
	pos      float64
}

func (s *fakeStop) ID() string { return s.id }
func (s *fakeStop) Name() string { return s.name }
func (s *fakeStop) Lane() Lane { return s.lane }
func (s *fakeStop) WaitPosition(t *Transportable) (orb.Point, bool) {
	return s.point, s.hasPoint
}
func (s *fakeStop) WaitingPositionOnLane(t *Transportable) float64 { return s.pos }

// fakeRoute holds the lengths of the route's edges.
type fakeRoute []float64

func (r fakeRoute) DistanceBetween(fromPos, toPos float64, fromIdx, toIdx int) float64 {
	if fromIdx == toIdx {
		return toPos - fromPos
	}
	d := r[fromIdx] - fromPos
	for i := fromIdx + 1; i < toIdx; i++ {
		d += r[i]
	}
	return d + toPos
}

type fakeVehicle struct {
	id, line, class string
	proc            DepartProcedure
	departed        bool
	lane            Lane
	edge            Location
	pos             orb.Point
	posOnLane       float64
	speed           float64
	stopped         bool
	departPos       float64
	routeIdx        int
	route           fakeRoute
	stopEdges       []Location
	stops           []Stop
	riders          []*Transportable
}

func (v *fakeVehicle) ID() string { return v.id }
func (v *fakeVehicle) Line() string { return v.line }
func (v *fakeVehicle) VehicleClass() string { return v.class }
func (v *fakeVehicle) DepartProcedure() DepartProcedure { return v.proc }
func (v *fakeVehicle) HasDeparted() bool { return v.departed }
func (v *fakeVehicle) Lane() Lane { return v.lane }
func (v *fakeVehicle) Edge() Location { return v.edge }
func (v *fakeVehicle) Position() orb.Point { return v.pos }
func (v *fakeVehicle) PositionOnLane() float64 { return v.posOnLane }
func (v *fakeVehicle) Speed() float64 { return v.speed }
func (v *fakeVehicle) IsStopped() bool { return v.stopped }
func (v *fakeVehicle) DepartPos() float64 { return v.departPos }
func (v *fakeVehicle) Route() Route { return v.route }
func (v *fakeVehicle) RouteIndex() int { return v.routeIdx }
func (v *fakeVehicle) AddTransportable(t *Transportable) {
	v.riders = append(v.riders, t)
}
func (v *fakeVehicle) RemoveTransportable(t *Transportable) {
	v.riders = slices.DeleteFunc(v.riders, func(r *Transportable) bool { return r == t })
}
func (v *fakeVehicle) StopsAtEdge(e Location) bool { return slices.Contains(v.stopEdges, e) }
func (v *fakeVehicle) StopsAt(s Stop) bool { return slices.Contains(v.stops, s) }

type orientedVehicle struct {
	*fakeVehicle
	angle float64
}

func (v orientedVehicle) Angle() float64 { return v.angle }

type fakeVehicles struct {
	byID       map[string]Vehicle
	unregister int
}

func (r *fakeVehicles) Vehicle(id string) Vehicle {
	if v, ok := r.byID[id]; ok {
		return v
	}
	return nil
}
func (r *fakeVehicles) UnregisterOneWaiting() { r.unregister++ }

type fakeInsertion struct{ added []Vehicle }

func (i *fakeInsertion) Add(v Vehicle) { i.added = append(i.added, v) }

type fakeWaiting struct {
	added   []*Transportable
	at      []Location
	aborted []*Transportable
}

func (w *fakeWaiting) AddWaiting(at Location, t *Transportable) {
	w.added = append(w.added, t)
	w.at = append(w.at, at)
}
func (w *fakeWaiting) AbortWaiting(t *Transportable) { w.aborted = append(w.aborted, t) }

type reservation struct {
	t                 *Transportable
	requested, pickup simtime.Time
	from              Location
	fromPos           float64
	to                Location
	toPos             float64
}

type fakeDispatch struct{ reservations []reservation }

func (d *fakeDispatch) AddReservation(t *Transportable, reservationTime, pickupTime simtime.Time, from Location, fromPos float64, to Location, toPos float64) {
	d.reservations = append(d.reservations, reservation{t, reservationTime, pickupTime, from, fromPos, to, toPos})
}

type recordSink struct{ events []Event }

func (s *recordSink) StageEvent(ev Event) { s.events = append(s.events, ev) }

type fixture struct {
	env        *Env
	vehicles   *fakeVehicles
	insertion  *fakeInsertion
	persons    *fakeWaiting
	containers *fakeWaiting
	dispatch   *fakeDispatch
	sink       *recordSink
}

func newFixture() *fixture {
	f := &fixture{
		vehicles:   &fakeVehicles{byID: map[string]Vehicle{}},
		insertion:  &fakeInsertion{},
		persons:    &fakeWaiting{},
		containers: &fakeWaiting{},
		dispatch:   &fakeDispatch{},
		sink:       &recordSink{},
	}
	f.env = &Env{
		Vehicles:   f.vehicles,
		Insertion:  f.insertion,
		Persons:    f.persons,
		Containers: f.containers,
		Dispatch:   f.dispatch,
		Events:     f.sink,
	}
	return f
}

// newRider builds a transportable whose only real stage is ride, departing
// from edge at pos.
func newRider(kind *Kind, proc DepartProcedure, edge Location, pos float64, ride *RideStage) *Transportable {
	t, err := NewTransportable("p0", kind, proc, []Stage{NewDepartureStage(edge, nil, pos, 0), ride})
	if err != nil {
		panic(err)
	}
	return t
}
