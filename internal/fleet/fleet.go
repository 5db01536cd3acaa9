package fleet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// Boarder loads waiting transportables into a vehicle that halts at an edge.
type Boarder interface {
	BoardWaiting(env *transport.Env, at transport.Location, v transport.Vehicle, now simtime.Time) int
}

// Fleet owns all vehicles. It serves as the vehicle registry and the
// insertion control of the simulation.
type Fleet struct {
	byID     map[string]*Vehicle
	order    []*Vehicle
	pending  []*Vehicle
	running  []*Vehicle
	waiting  int
	boarders []Boarder
}

func New(boarders ...Boarder) *Fleet {
	return &Fleet{byID: make(map[string]*Vehicle), boarders: boarders}
}

// Register adds v to the fleet. It departs once its depart time is reached
// and, for triggered vehicles, a matching rider has boarded.
func (f *Fleet) Register(v *Vehicle) error {
	if _, ok := f.byID[v.ID()]; ok {
		return fmt.Errorf("duplicate vehicle %q", v.ID())
	}
	f.byID[v.ID()] = v
	f.order = append(f.order, v)
	f.pending = append(f.pending, v)
	return nil
}

// Vehicle returns nil for unknown ids.
func (f *Fleet) Vehicle(id string) transport.Vehicle {
	if v, ok := f.byID[id]; ok {
		return v
	}
	return nil
}

func (f *Fleet) Vehicles() []*Vehicle { return f.order }

// UnregisterOneWaiting is called when a triggered vehicle leaves its edge's waiting pool.
func (f *Fleet) UnregisterOneWaiting() {
	if f.waiting > 0 {
		f.waiting--
	}
}

// WaitingCount is the number of triggered vehicles waiting for riders.
func (f *Fleet) WaitingCount() int { return f.waiting }

// Add releases a triggered vehicle for departure.
func (f *Fleet) Add(v transport.Vehicle) {
	if fv, ok := f.byID[v.ID()]; ok {
		fv.released = true
	}
}

func (f *Fleet) Pending() int { return len(f.pending) }

// HasScheduled reports whether a vehicle with a fixed depart time has not
// departed yet. Triggered vehicles only leave with riders and are not counted.
func (f *Fleet) HasScheduled() bool {
	return slices.ContainsFunc(f.pending, func(v *Vehicle) bool { return v.p.DepartProcedure == transport.DepartGiven })
}
func (f *Fleet) Running() int { return len(f.running) }

// Insert puts vehicles whose depart time has come onto the network.
// Triggered vehicles enter their first edge's waiting pool instead until a
// rider has boarded.
func (f *Fleet) Insert(env *transport.Env, now simtime.Time) {
	f.pending = slices.DeleteFunc(f.pending, func(v *Vehicle) bool {
		if v.p.Depart > now {
			return false
		}
		edge := v.p.Route[0]
		if v.p.DepartProcedure != transport.DepartGiven && !v.released && !v.triggeredBy() {
			if !edge.HasWaiting(v) {
				edge.AddWaiting(v)
				f.waiting++
				f.board(env, v, now)
			}
			if !v.released && !v.triggeredBy() {
				return false
			}
		}
		if edge.HasWaiting(v) {
			edge.RemoveWaiting(v)
			f.UnregisterOneWaiting()
		}
		v.depart()
		f.running = append(f.running, v)
		log.Debug().Str("vehicle", v.ID()).Str("line", v.Line()).Str("edge", edge.ID()).Stringer("simTime", now).Msg("vehicle departed")
		return true
	})
}

// Move advances every running vehicle by dt and handles stops and arrivals.
func (f *Fleet) Move(env *transport.Env, now, dt simtime.Time) error {
	var errs []error
	for _, v := range slices.Clone(f.running) {
		if err := f.step(env, v, now, dt); err != nil {
			errs = append(errs, err)
		}
	}
	f.running = slices.DeleteFunc(f.running, (*Vehicle).HasArrived)
	return errors.Join(errs...)
}

func (f *Fleet) step(env *transport.Env, v *Vehicle, now, dt simtime.Time) error {
	if v.stopped {
		f.board(env, v, now)
		if now < v.stopUntil {
			return nil
		}
		v.p.Route[v.routeIdx].RemoveWaiting(v)
		v.resume()
	}
	switch v.move(v.p.Speed * dt.Seconds()) {
	case reachedStop:
		v.halt(now)
		v.p.Route[v.routeIdx].AddWaiting(v)
		err := f.unload(env, v, now, false)
		f.board(env, v, now)
		return err
	case reachedEnd:
		err := f.unload(env, v, now, true)
		v.arrived = true
		log.Debug().Str("vehicle", v.ID()).Stringer("simTime", now).Msg("vehicle arrived")
		return err
	}
	return nil
}

func (f *Fleet) board(env *transport.Env, v *Vehicle, now simtime.Time) {
	for _, b := range f.boarders {
		b.BoardWaiting(env, v.Edge(), v, now)
	}
}

// unload lets riders whose destination is reached leave v, or all riders
// when the vehicle ends its route.
func (f *Fleet) unload(env *transport.Env, v *Vehicle, now simtime.Time, all bool) error {
	var errs []error
	for _, t := range v.Riders() {
		r, ok := t.CurrentRide()
		if !ok {
			continue
		}
		reached := destinationReached(v, r)
		if !reached && !all {
			continue
		}
		if !reached {
			log.Warn().Str("vehicle", v.ID()).Str(t.Kind().String(), t.ID()).Msg("vehicle ended its route before the ride destination")
		}
		v.RemoveTransportable(t)
		if _, err := t.Proceed(env, now); err != nil {
			errs = append(errs, fmt.Errorf("%s %q leaving vehicle %q: %w", t.Kind(), t.ID(), v.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func destinationReached(v *Vehicle, r *transport.RideStage) bool {
	if r.Destination() != v.Edge() {
		return false
	}
	if r.DestinationStop() == nil {
		return true
	}
	cur := v.CurrentStop()
	return cur != nil && transport.Stop(cur) == r.DestinationStop()
}
