package transport

import "ridesim/internal/simtime"

type EventType string

const (
	EventWaiting EventType = "waiting"
	EventBoarded EventType = "boarded"
	EventArrived EventType = "arrived"
	EventAborted EventType = "aborted"
)

// Event describes a ride stage transition.
type Event struct {
	Type            EventType
	Time            simtime.Time
	TransportableID string
	Kind            string
	VehicleID       string
	Edge            string
	Lines           []string
	RouteLength     float64
}

type EventSink interface {
	StageEvent(ev Event)
}
