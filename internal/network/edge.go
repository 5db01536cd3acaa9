// Package network holds the static road network: edges with a single lane,
// their geometry and the stopping places on them.
package network

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"

	"ridesim/internal/transport"
)

const (
	DefaultLaneWidth = 3.2
	// StopTolerance is how far a stopped vehicle may be from a waiting
	// transportable and still be boarded.
	StopTolerance = 10.0
)

// Edge is a directed road segment with one lane.
type Edge struct {
	id     string
	shape  orb.LineString
	cum    []float64
	length float64
	lane   *Lane

	waiting    []transport.Vehicle
	persons    []*transport.Transportable
	containers []*transport.Transportable
}

// Lane is the drivable part of an Edge.
type Lane struct {
	edge  *Edge
	width float64
}

func (l *Lane) Edge() transport.Location { return l.edge }
func (l *Lane) Width() float64 { return l.width }
func (l *Lane) NetworkEdge() *Edge { return l.edge }

func NewEdge(id string, shape orb.LineString, laneWidth float64) (*Edge, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("edge %q: shape needs at least two points", id)
	}
	cum := make([]float64, len(shape))
	for i := 1; i < len(shape); i++ {
		cum[i] = cum[i-1] + planar.Distance(shape[i-1], shape[i])
	}
	length := cum[len(cum)-1]
	if length <= 0 {
		return nil, fmt.Errorf("edge %q: zero length", id)
	}
	if laneWidth <= 0 {
		laneWidth = DefaultLaneWidth
	}
	e := &Edge{id: id, shape: shape, cum: cum, length: length}
	e.lane = &Lane{edge: e, width: laneWidth}
	return e, nil
}

func (e *Edge) ID() string { return e.id }
func (e *Edge) Length() float64 { return e.length }
func (e *Edge) Lane() *Lane { return e.lane }
func (e *Edge) Shape() orb.LineString { return e.shape }

// segment returns the index i of the segment [i, i+1] containing pos.
func (e *Edge) segment(pos float64) int {
	for i := 1; i < len(e.cum); i++ {
		if pos <= e.cum[i] {
			return i - 1
		}
	}
	return len(e.cum) - 2
}

func (e *Edge) PositionAt(pos, lateral float64) orb.Point {
	pos = lo.Clamp(pos, 0, e.length)
	i := e.segment(pos)
	a, b := e.shape[i], e.shape[i+1]
	segLen := e.cum[i+1] - e.cum[i]
	if segLen == 0 {
		return a
	}
	frac := (pos - e.cum[i]) / segLen
	dx, dy := (b[0]-a[0])/segLen, (b[1]-a[1])/segLen
	// right-hand normal of the driving direction is (dy, -dx)
	return orb.Point{
		a[0] + dx*segLen*frac + dy*lateral,
		a[1] + dy*segLen*frac - dx*lateral,
	}
}

func (e *Edge) AngleAt(pos float64) float64 {
	i := e.segment(lo.Clamp(pos, 0, e.length))
	a, b := e.shape[i], e.shape[i+1]
	return math.Atan2(b[1]-a[1], b[0]-a[0])
}

// rangeStopper is implemented by vehicles that know their stop extent.
type rangeStopper interface {
	IsStoppedInRange(pos, tolerance float64) bool
}

// StoppedNear reports whether v is stopped close enough to pos to be boarded.
func StoppedNear(v transport.Vehicle, pos float64) bool {
	if rs, ok := v.(rangeStopper); ok {
		return rs.IsStoppedInRange(pos, StopTolerance)
	}
	return v.IsStopped() && math.Abs(v.PositionOnLane()-pos) <= StopTolerance
}

// WaitingVehicle returns the first waiting vehicle t may board at pos.
// Vehicles that wait for a trigger are taken regardless of their position.
func (e *Edge) WaitingVehicle(t *transport.Transportable, pos float64) transport.Vehicle {
	for _, v := range e.waiting {
		if !t.IsWaitingFor(v) {
			continue
		}
		pending := !v.HasDeparted() && v.DepartProcedure() != transport.DepartGiven
		if pending || StoppedNear(v, pos) {
			return v
		}
	}
	return nil
}

// AddWaiting registers v as ready to take transportables on this edge.
func (e *Edge) AddWaiting(v transport.Vehicle) {
	if !slices.Contains(e.waiting, v) {
		e.waiting = append(e.waiting, v)
	}
}

// HasWaiting reports whether v is in the waiting pool.
func (e *Edge) HasWaiting(v transport.Vehicle) bool { return slices.Contains(e.waiting, v) }

func (e *Edge) RemoveWaiting(v transport.Vehicle) {
	e.waiting = slices.DeleteFunc(e.waiting, func(w transport.Vehicle) bool { return w == v })
}

func (e *Edge) WaitingVehicles() []transport.Vehicle { return slices.Clone(e.waiting) }

func (e *Edge) AddTransportable(t *transport.Transportable) {
	if t.Kind().IsPerson() {
		e.persons = append(e.persons, t)
		return
	}
	e.containers = append(e.containers, t)
}

func (e *Edge) RemoveTransportable(t *transport.Transportable) {
	same := func(o *transport.Transportable) bool { return o == t }
	if t.Kind().IsPerson() {
		e.persons = slices.DeleteFunc(e.persons, same)
		return
	}
	e.containers = slices.DeleteFunc(e.containers, same)
}

func (e *Edge) Persons() []*transport.Transportable { return slices.Clone(e.persons) }
func (e *Edge) Containers() []*transport.Transportable { return slices.Clone(e.containers) }
