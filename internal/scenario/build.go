package scenario

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"ridesim/internal/fleet"
	"ridesim/internal/network"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// World is a scenario turned into simulation objects. Vehicles still need to
// be registered with a fleet.
type World struct {
	Lefthand       bool
	End            simtime.Time
	Step           simtime.Time
	Network        *network.Network
	Vehicles       []*fleet.Vehicle
	Transportables []*transport.Transportable
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func optTime(v *float64) simtime.Time {
	if v == nil {
		return simtime.Unset
	}
	return simtime.FromSeconds(*v)
}

// Build validates s and creates its network, vehicles and itineraries.
func (s *Scenario) Build() (*World, error) {
	if s.End < 0 || s.Step < 0 {
		return nil, invalid("negative end or step")
	}
	w := &World{
		Lefthand: s.Lefthand,
		End:      simtime.FromSeconds(s.End),
		Step:     simtime.FromSeconds(s.Step),
		Network:  network.New(),
	}
	if len(s.Edges) == 0 {
		return nil, invalid("no edges")
	}
	for _, e := range s.Edges {
		shape := make(orb.LineString, len(e.Shape))
		for i, p := range e.Shape {
			shape[i] = orb.Point(p)
		}
		if _, err := w.Network.AddEdge(e.ID, shape, e.LaneWidth); err != nil {
			return nil, invalid("%v", err)
		}
	}
	for _, st := range s.Stops {
		var access *orb.Point
		if st.Access != nil {
			p := orb.Point(*st.Access)
			access = &p
		}
		if _, err := w.Network.AddStop(st.ID, st.Name, st.Edge, st.Start, st.End, access); err != nil {
			return nil, invalid("%v", err)
		}
	}

	for _, v := range s.Vehicles {
		fv, err := s.buildVehicle(w.Network, v)
		if err != nil {
			return nil, err
		}
		w.Vehicles = append(w.Vehicles, fv)
	}
	vehicleIDs := lo.SliceToMap(w.Vehicles, func(v *fleet.Vehicle) (string, bool) { return v.ID(), true })
	if len(vehicleIDs) != len(w.Vehicles) {
		return nil, invalid("duplicate vehicle ids")
	}

	seen := make(map[string]bool)
	for _, group := range []struct {
		kind  *transport.Kind
		items []Transportable
	}{{transport.Person, s.Persons}, {transport.Container, s.Containers}} {
		for _, item := range group.items {
			if seen[item.ID] {
				return nil, invalid("duplicate %s %q", group.kind, item.ID)
			}
			seen[item.ID] = true
			t, err := buildTransportable(w.Network, vehicleIDs, group.kind, item)
			if err != nil {
				return nil, err
			}
			w.Transportables = append(w.Transportables, t)
		}
	}
	return w, nil
}

func (s *Scenario) buildVehicle(n *network.Network, v Vehicle) (*fleet.Vehicle, error) {
	proc, err := transport.ParseDepartProcedure(v.DepartProcedure)
	if err != nil {
		return nil, invalid("vehicle %q: %v", v.ID, err)
	}
	route := make(fleet.Route, 0, len(v.Route))
	for _, id := range v.Route {
		e, ok := n.Edge(id)
		if !ok {
			return nil, invalid("vehicle %q: unknown edge %q", v.ID, id)
		}
		route = append(route, e)
	}
	p := fleet.Params{
		ID:              v.ID,
		Line:            v.Line,
		Class:           v.Class,
		Route:           route,
		DepartPos:       v.DepartPos,
		Depart:          simtime.FromSeconds(v.Depart),
		DepartProcedure: proc,
		Speed:           v.Speed,
	}
	for _, vs := range v.Stops {
		sp := fleet.StopPlan{Duration: simtime.FromSeconds(vs.Duration), Until: optTime(vs.Until), Pos: vs.Pos}
		switch {
		case vs.Stop != "":
			st, ok := n.Stop(vs.Stop)
			if !ok {
				return nil, invalid("vehicle %q: unknown stop %q", v.ID, vs.Stop)
			}
			sp.Stop = st
		case vs.Edge != "":
			e, ok := n.Edge(vs.Edge)
			if !ok {
				return nil, invalid("vehicle %q: unknown edge %q", v.ID, vs.Edge)
			}
			sp.Edge = e
		default:
			return nil, invalid("vehicle %q: stop needs a stop or an edge", v.ID)
		}
		p.Stops = append(p.Stops, sp)
	}
	fv, err := fleet.NewVehicle(p)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return fv, nil
}

// place is where a stage ends. stop stays a nil interface when unused.
type place struct {
	edge *network.Edge
	stop transport.Stop
	pos  float64
}

func buildTransportable(n *network.Network, vehicles map[string]bool, kind *transport.Kind, item Transportable) (*transport.Transportable, error) {
	proc, err := transport.ParseDepartProcedure(item.DepartProcedure)
	if err != nil {
		return nil, invalid("%s %q: %v", kind, item.ID, err)
	}
	var at place
	switch {
	case item.FromStop != "":
		st, ok := n.Stop(item.FromStop)
		if !ok {
			return nil, invalid("%s %q: unknown stop %q", kind, item.ID, item.FromStop)
		}
		at = place{edge: st.NetworkLane().NetworkEdge(), stop: st, pos: st.EndPos()}
	case item.From != "":
		e, ok := n.Edge(item.From)
		if !ok {
			return nil, invalid("%s %q: unknown edge %q", kind, item.ID, item.From)
		}
		at = place{edge: e, pos: item.DepartPos}
	default:
		return nil, invalid("%s %q: no origin", kind, item.ID)
	}
	if len(item.Plan) == 0 {
		return nil, invalid("%s %q: empty plan", kind, item.ID)
	}

	stages := []transport.Stage{transport.NewDepartureStage(at.edge, at.stop, at.pos, simtime.FromSeconds(item.Depart))}
	for i, step := range item.Plan {
		switch {
		case step.Ride != nil && step.Wait == nil:
			r := step.Ride
			if len(r.Lines) == 0 {
				return nil, invalid("%s %q: ride %d without lines", kind, item.ID, i)
			}
			if i == 0 && proc == transport.DepartTriggered && !vehicles[r.Lines[0]] {
				return nil, invalid("%s %q: triggered ride needs a vehicle id as first line, got %q", kind, item.ID, r.Lines[0])
			}
			next, err := destination(n, r)
			if err != nil {
				return nil, invalid("%s %q: ride %d: %v", kind, item.ID, i, err)
			}
			stages = append(stages, transport.NewRideStage(next.edge, next.stop, next.pos, r.Lines, r.Intended, optTime(r.IntendedDepart)))
			at = next
		case step.Wait != nil && step.Ride == nil:
			wt := step.Wait
			if wt.Duration == nil && wt.Until == nil {
				return nil, invalid("%s %q: wait %d needs duration or until", kind, item.ID, i)
			}
			stages = append(stages, transport.NewWaitingStage(at.edge, at.stop, at.pos, optTime(wt.Duration), optTime(wt.Until), wt.Act))
		default:
			return nil, invalid("%s %q: step %d must be either ride or wait", kind, item.ID, i)
		}
	}
	t, err := transport.NewTransportable(item.ID, kind, proc, stages)
	if err != nil {
		return nil, invalid("%v", err)
	}
	return t, nil
}

func destination(n *network.Network, r *Ride) (place, error) {
	var p place
	if r.ToStop != "" {
		st, ok := n.Stop(r.ToStop)
		if !ok {
			return p, fmt.Errorf("unknown stop %q", r.ToStop)
		}
		p = place{edge: st.NetworkLane().NetworkEdge(), stop: st, pos: st.EndPos()}
		if r.To != "" && r.To != p.edge.ID() {
			return p, fmt.Errorf("stop %q is not on edge %q", r.ToStop, r.To)
		}
	} else {
		e, ok := n.Edge(r.To)
		if !ok {
			return p, fmt.Errorf("unknown edge %q", r.To)
		}
		p = place{edge: e, pos: e.Length()}
	}
	if r.ArrivalPos != nil {
		p.pos = *r.ArrivalPos
	}
	if p.pos < 0 || p.pos > p.edge.Length() {
		return p, fmt.Errorf("arrival position %.2f outside edge %q", p.pos, p.edge.ID())
	}
	return p, nil
}
