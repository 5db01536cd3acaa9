// Package dispatch books on-demand rides requested by waiting persons.
package dispatch

import (
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

type Status int

const (
	Pending Status = iota
	Fulfilled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Fulfilled:
		return "fulfilled"
	case Cancelled:
		return "cancelled"
	}
	return "pending"
}

type Reservation struct {
	ID              uuid.UUID
	Transportable   *transport.Transportable
	ReservationTime simtime.Time
	PickupTime      simtime.Time
	From            transport.Location
	FromPos         float64
	To              transport.Location
	ToPos           float64
	Status          Status
}

// Book records reservations in request order. A transportable holds at most
// one pending reservation.
type Book struct {
	all    []*Reservation
	active map[*transport.Transportable]*Reservation
}

func NewBook() *Book {
	return &Book{active: make(map[*transport.Transportable]*Reservation)}
}

func (b *Book) AddReservation(t *transport.Transportable, reservationTime, pickupTime simtime.Time, from transport.Location, fromPos float64, to transport.Location, toPos float64) {
	if old, ok := b.active[t]; ok {
		old.Status = Cancelled
	}
	res := &Reservation{
		ID:              uuid.New(),
		Transportable:   t,
		ReservationTime: reservationTime,
		PickupTime:      pickupTime,
		From:            from,
		FromPos:         fromPos,
		To:              to,
		ToPos:           toPos,
	}
	b.all = append(b.all, res)
	b.active[t] = res
	log.Debug().Str("reservation", res.ID.String()).Str("person", t.ID()).Str("from", from.ID()).Str("to", to.ID()).Stringer("simTime", reservationTime).Msg("taxi reservation")
}

func (b *Book) close(t *transport.Transportable, s Status) bool {
	res, ok := b.active[t]
	if !ok {
		return false
	}
	res.Status = s
	delete(b.active, t)
	return true
}

// Fulfil marks the reservation of t as served.
func (b *Book) Fulfil(t *transport.Transportable) bool { return b.close(t, Fulfilled) }

// Cancel withdraws the reservation of t.
func (b *Book) Cancel(t *transport.Transportable) bool { return b.close(t, Cancelled) }

// Pending returns open reservations in request order.
func (b *Book) Pending() []*Reservation {
	return slices.DeleteFunc(slices.Clone(b.all), func(r *Reservation) bool { return r.Status != Pending })
}

func (b *Book) All() []*Reservation { return b.all }
