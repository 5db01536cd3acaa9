// Package control keeps track of persons and containers waiting for a ride.
package control

import (
	"cmp"
	"slices"

	"github.com/rs/zerolog/log"

	"ridesim/internal/network"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// Reservations is the part of the dispatcher that follows waiting riders.
type Reservations interface {
	Fulfil(t *transport.Transportable) bool
	Cancel(t *transport.Transportable) bool
}

// leaver is implemented by stops that hand out waiting slots.
type leaver interface {
	Leave(t *transport.Transportable)
}

// Registry holds the waiting transportables of one kind by edge.
type Registry struct {
	kind         *transport.Kind
	reservations Reservations

	waiting map[transport.Location][]*transport.Transportable
	where   map[*transport.Transportable]transport.Location

	boarded int
	aborted int
}

// New returns a registry for kind. reservations may be nil.
func New(kind *transport.Kind, reservations Reservations) *Registry {
	return &Registry{
		kind:         kind,
		reservations: reservations,
		waiting:      make(map[transport.Location][]*transport.Transportable),
		where:        make(map[*transport.Transportable]transport.Location),
	}
}

func (r *Registry) Kind() *transport.Kind { return r.kind }

func (r *Registry) AddWaiting(at transport.Location, t *transport.Transportable) {
	if _, ok := r.where[t]; ok {
		return
	}
	r.waiting[at] = append(r.waiting[at], t)
	r.where[t] = at
}

// BoardWaiting puts every transportable waiting at at which v can carry
// into v. It returns the number that boarded.
func (r *Registry) BoardWaiting(env *transport.Env, at transport.Location, v transport.Vehicle, now simtime.Time) int {
	var boarded []*transport.Transportable
	for _, t := range r.waiting[at] {
		ride, ok := t.CurrentRide()
		if !ok || !t.IsWaitingFor(v) || !network.StoppedNear(v, ride.EdgePos(now)) {
			continue
		}
		t.Board(env, v, now)
		boarded = append(boarded, t)
	}
	for _, t := range boarded {
		r.remove(t)
		if r.reservations != nil {
			r.reservations.Fulfil(t)
		}
		log.Debug().Str(r.kind.String(), t.ID()).Str("vehicle", v.ID()).Str("edge", at.ID()).Stringer("simTime", now).Msg("boarded")
	}
	r.boarded += len(boarded)
	return len(boarded)
}

// AbortWaiting drops t without boarding and cancels its reservation.
func (r *Registry) AbortWaiting(t *transport.Transportable) {
	if !r.remove(t) {
		return
	}
	if r.reservations != nil {
		r.reservations.Cancel(t)
	}
	r.aborted++
}

func (r *Registry) remove(t *transport.Transportable) bool {
	at, ok := r.where[t]
	if !ok {
		return false
	}
	delete(r.where, t)
	r.waiting[at] = slices.DeleteFunc(r.waiting[at], func(o *transport.Transportable) bool { return o == t })
	if len(r.waiting[at]) == 0 {
		delete(r.waiting, at)
	}
	at.RemoveTransportable(t)
	if prev := t.PreviousStage(); prev != nil {
		if s, ok := prev.DestinationStop().(leaver); ok {
			s.Leave(t)
		}
	}
	return true
}

// WaitingAt returns the transportables waiting at an edge in arrival order.
func (r *Registry) WaitingAt(at transport.Location) []*transport.Transportable {
	return slices.Clone(r.waiting[at])
}

// Waiting returns all waiting transportables.
func (r *Registry) Waiting() []*transport.Transportable {
	out := make([]*transport.Transportable, 0, len(r.where))
	for t := range r.where {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *transport.Transportable) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

func (r *Registry) Count() int { return len(r.where) }
func (r *Registry) Boarded() int { return r.boarded }
func (r *Registry) Aborted() int { return r.aborted }
