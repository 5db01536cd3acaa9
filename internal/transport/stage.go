package transport

import (
	"github.com/paulmach/orb"

	"ridesim/internal/simtime"
)

type StageType int

const (
	StageWaitingForDepart StageType = iota
	StageWaiting
	StageDriving
)

func (t StageType) String() string {
	switch t {
	case StageWaitingForDepart:
		return "waitingForDepart"
	case StageWaiting:
		return "waiting"
	case StageDriving:
		return "driving"
	}
	return "unknown"
}

// Stage is one leg of a Transportable's plan.
type Stage interface {
	Type() StageType
	Destination() Location
	DestinationStop() Stop
	ArrivalPos() float64
	Departed() simtime.Time
	Arrived() simtime.Time

	// Location is the edge the transportable currently is on.
	Location() Location
	EdgePos(now simtime.Time) float64
	Position(env *Env, now simtime.Time) orb.Point
	Angle(env *Env, now simtime.Time) float64
	Speed() float64

	Activate(env *Env, t *Transportable, now simtime.Time, previous Stage) error
	SetArrived(env *Env, t *Transportable, now simtime.Time)
	Abort(env *Env, t *Transportable)

	Description(k *Kind) string
	Clone() Stage
}

// stageBase holds the destination and timing fields common to all stages.
type stageBase struct {
	destination     Location
	destinationStop Stop
	arrivalPos      float64
	departed        simtime.Time
	arrived         simtime.Time
}

func newStageBase(dest Location, stop Stop, arrivalPos float64) stageBase {
	return stageBase{
		destination:     dest,
		destinationStop: stop,
		arrivalPos:      arrivalPos,
		departed:        simtime.Unset,
		arrived:         simtime.Unset,
	}
}

func (s *stageBase) Destination() Location { return s.destination }
func (s *stageBase) DestinationStop() Stop { return s.destinationStop }
func (s *stageBase) ArrivalPos() float64 { return s.arrivalPos }
func (s *stageBase) Departed() simtime.Time { return s.departed }
func (s *stageBase) Arrived() simtime.Time { return s.arrived }
func (s *stageBase) setDeparted(now simtime.Time) {
	if s.departed < 0 {
		s.departed = now
	}
}
func (s *stageBase) setArrived(now simtime.Time) { s.arrived = now }

// destinationName renders the destination as "edge 'E'" or "stop 'S' (Name)".
func (s *stageBase) destinationName() string {
	if s.destinationStop == nil {
		return "edge '" + s.destination.ID() + "'"
	}
	name := "stop '" + s.destinationStop.ID() + "'"
	if n := s.destinationStop.Name(); n != "" {
		name += " (" + n + ")"
	}
	return name
}
