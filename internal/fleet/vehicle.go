package fleet

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"ridesim/internal/network"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// StopPlan is a planned halt, either at a stopping place or at a position
// on an edge.
type StopPlan struct {
	Stop     *network.Stop
	Edge     *network.Edge
	Pos      float64
	Duration simtime.Time
	Until    simtime.Time
}

func (s StopPlan) edge() *network.Edge {
	if s.Stop != nil {
		return s.Stop.NetworkLane().NetworkEdge()
	}
	return s.Edge
}

func (s StopPlan) pos() float64 {
	if s.Stop != nil {
		return s.Stop.EndPos()
	}
	return s.Pos
}

type Params struct {
	ID              string
	Line            string
	Class           string
	Route           Route
	DepartPos       float64
	Depart          simtime.Time
	DepartProcedure transport.DepartProcedure
	// Speed in m/s.
	Speed float64
	Stops []StopPlan
}

type plannedStop struct {
	StopPlan
	routeIdx int
	pos      float64
}

// Vehicle moves along its route and halts at its planned stops. It is not
// safe for concurrent use.
type Vehicle struct {
	p     Params
	stops []plannedStop

	routeIdx int
	pos      float64
	departed bool
	arrived  bool
	released bool

	nextStop  int
	stopped   bool
	stopUntil simtime.Time

	riders []*transport.Transportable
}

func NewVehicle(p Params) (*Vehicle, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("vehicle without id")
	}
	if len(p.Route) == 0 {
		return nil, fmt.Errorf("vehicle %q: empty route", p.ID)
	}
	if p.Speed <= 0 {
		return nil, fmt.Errorf("vehicle %q: speed must be positive", p.ID)
	}
	if p.DepartPos < 0 || p.DepartPos > p.Route[0].Length() {
		return nil, fmt.Errorf("vehicle %q: depart position %.2f outside edge %q", p.ID, p.DepartPos, p.Route[0].ID())
	}
	v := &Vehicle{p: p, pos: p.DepartPos, stopUntil: simtime.Unset}
	idx, pos := 0, p.DepartPos
	for _, sp := range p.Stops {
		e := sp.edge()
		if e == nil {
			return nil, fmt.Errorf("vehicle %q: stop without location", p.ID)
		}
		found := -1
		for i := idx; i < len(p.Route); i++ {
			if p.Route[i] == e && (i > idx || sp.pos() >= pos) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("vehicle %q: stop on edge %q is not ahead on the route", p.ID, e.ID())
		}
		idx, pos = found, sp.pos()
		v.stops = append(v.stops, plannedStop{StopPlan: sp, routeIdx: found, pos: pos})
	}
	return v, nil
}

func (v *Vehicle) ID() string { return v.p.ID }
func (v *Vehicle) Line() string { return v.p.Line }
func (v *Vehicle) VehicleClass() string { return v.p.Class }
func (v *Vehicle) DepartProcedure() transport.DepartProcedure { return v.p.DepartProcedure }
func (v *Vehicle) Depart() simtime.Time { return v.p.Depart }
func (v *Vehicle) HasDeparted() bool { return v.departed }
func (v *Vehicle) HasArrived() bool { return v.arrived }
func (v *Vehicle) IsStopped() bool { return v.stopped }
func (v *Vehicle) DepartPos() float64 { return v.p.DepartPos }
func (v *Vehicle) Route() transport.Route { return v.p.Route }
func (v *Vehicle) RouteIndex() int { return v.routeIdx }
func (v *Vehicle) PositionOnLane() float64 { return v.pos }

// Lane is nil while the vehicle is not on the network.
func (v *Vehicle) Lane() transport.Lane {
	if !v.departed || v.arrived {
		return nil
	}
	return v.p.Route[v.routeIdx].Lane()
}

func (v *Vehicle) Edge() transport.Location { return v.p.Route[v.routeIdx] }

func (v *Vehicle) Position() orb.Point {
	return v.p.Route[v.routeIdx].PositionAt(v.pos, 0)
}

func (v *Vehicle) Angle() float64 {
	return v.p.Route[v.routeIdx].AngleAt(v.pos)
}

func (v *Vehicle) Speed() float64 {
	if !v.departed || v.arrived || v.stopped {
		return 0
	}
	return v.p.Speed
}

// IsStoppedInRange reports whether the vehicle halts at a place covering pos.
func (v *Vehicle) IsStoppedInRange(pos, tolerance float64) bool {
	if !v.stopped {
		// triggered vehicles wait at their depart position
		return !v.departed && math.Abs(v.pos-pos) <= tolerance
	}
	s := v.stops[v.nextStop]
	if s.Stop != nil {
		return pos >= s.Stop.StartPos()-tolerance && pos <= s.Stop.EndPos()+tolerance
	}
	return math.Abs(s.pos-pos) <= tolerance
}

// CurrentStop returns the stopping place the vehicle halts at, if any.
func (v *Vehicle) CurrentStop() *network.Stop {
	if !v.stopped {
		return nil
	}
	return v.stops[v.nextStop].Stop
}

func (v *Vehicle) StopsAtEdge(e transport.Location) bool {
	return slices.ContainsFunc(v.remainingStops(), func(s plannedStop) bool { return transport.Location(s.edge()) == e })
}

func (v *Vehicle) StopsAt(stop transport.Stop) bool {
	return slices.ContainsFunc(v.remainingStops(), func(s plannedStop) bool { return s.Stop != nil && transport.Stop(s.Stop) == stop })
}

func (v *Vehicle) remainingStops() []plannedStop {
	if v.nextStop >= len(v.stops) {
		return nil
	}
	return v.stops[v.nextStop:]
}

func (v *Vehicle) AddTransportable(t *transport.Transportable) {
	if !slices.Contains(v.riders, t) {
		v.riders = append(v.riders, t)
	}
}

func (v *Vehicle) RemoveTransportable(t *transport.Transportable) {
	v.riders = slices.DeleteFunc(v.riders, func(r *transport.Transportable) bool { return r == t })
}

func (v *Vehicle) Riders() []*transport.Transportable { return slices.Clone(v.riders) }

// triggeredBy reports whether a rider of the kind the vehicle waits for has boarded.
func (v *Vehicle) triggeredBy() bool {
	for _, r := range v.riders {
		if r.Kind().TriggerProcedure() == v.p.DepartProcedure {
			return true
		}
	}
	return false
}

func (v *Vehicle) depart() {
	v.departed = true
	v.routeIdx = 0
	v.pos = v.p.DepartPos
}

type moveResult int

const (
	moved moveResult = iota
	reachedStop
	reachedEnd
)

// move drives at most dist meters and halts at the next planned stop or the
// end of the route.
func (v *Vehicle) move(dist float64) moveResult {
	for {
		target := v.p.Route[v.routeIdx].Length()
		var stop *plannedStop
		if v.nextStop < len(v.stops) && v.stops[v.nextStop].routeIdx == v.routeIdx {
			stop = &v.stops[v.nextStop]
			target = stop.pos
		}
		step := math.Min(dist, target-v.pos)
		v.pos += step
		dist -= step
		if v.pos < target {
			return moved
		}
		if stop != nil {
			return reachedStop
		}
		if v.routeIdx == len(v.p.Route)-1 {
			return reachedEnd
		}
		if dist <= 0 {
			return moved
		}
		v.routeIdx++
		v.pos = 0
	}
}

func (v *Vehicle) halt(now simtime.Time) {
	s := v.stops[v.nextStop]
	v.stopped = true
	v.stopUntil = max(now+s.Duration, s.Until)
}

func (v *Vehicle) resume() {
	v.stopped = false
	v.stopUntil = simtime.Unset
	v.nextStop++
}
