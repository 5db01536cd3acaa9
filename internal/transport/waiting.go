package transport

import (
	"math"

	"github.com/paulmach/orb"

	"ridesim/internal/simtime"
)

// WaitingStage keeps a transportable at a fixed place. The first stage of
// every plan is a WaitingStage of type StageWaitingForDepart that ends at the
// transportable's depart time.
type WaitingStage struct {
	stageBase
	typ      StageType
	duration simtime.Time
	until    simtime.Time
	actType  string
}

// NewDepartureStage builds the placeholder stage that holds a transportable
// at its origin until depart.
func NewDepartureStage(at Location, stop Stop, pos float64, depart simtime.Time) *WaitingStage {
	return &WaitingStage{
		stageBase: newStageBase(at, stop, pos),
		typ:       StageWaitingForDepart,
		duration:  simtime.Unset,
		until:     depart,
	}
}

// NewWaitingStage builds a stop that lasts duration, or until the given time,
// whichever ends later. Either may be Unset.
func NewWaitingStage(at Location, stop Stop, pos float64, duration, until simtime.Time, actType string) *WaitingStage {
	return &WaitingStage{
		stageBase: newStageBase(at, stop, pos),
		typ:       StageWaiting,
		duration:  duration,
		until:     until,
		actType:   actType,
	}
}

func (s *WaitingStage) Type() StageType { return s.typ }

// EndTime is the time at which the stage is due to finish.
func (s *WaitingStage) EndTime() simtime.Time {
	end := s.until
	if s.duration >= 0 && s.departed >= 0 {
		end = max(end, s.departed+s.duration)
	}
	return end
}

func (s *WaitingStage) Location() Location { return s.destination }
func (s *WaitingStage) EdgePos(now simtime.Time) float64 { return s.arrivalPos }
func (s *WaitingStage) Speed() float64 { return 0 }
func (s *WaitingStage) Abort(env *Env, t *Transportable) {}
func (s *WaitingStage) SetArrived(env *Env, t *Transportable, now simtime.Time) { s.setArrived(now) }

func (s *WaitingStage) Position(env *Env, now simtime.Time) orb.Point {
	return s.destination.PositionAt(s.arrivalPos, roadsideOffset*env.sideSign())
}

func (s *WaitingStage) Angle(env *Env, now simtime.Time) float64 {
	return s.destination.AngleAt(s.arrivalPos) + math.Pi/2*env.sideSign()
}

func (s *WaitingStage) Activate(env *Env, t *Transportable, now simtime.Time, previous Stage) error {
	s.setDeparted(now)
	return nil
}

func (s *WaitingStage) Description(k *Kind) string {
	if s.typ == StageWaitingForDepart {
		return "waiting for departure"
	}
	if s.actType != "" {
		return "waiting (" + s.actType + ")"
	}
	return "waiting"
}

func (s *WaitingStage) Clone() Stage {
	c := *s
	c.departed, c.arrived = simtime.Unset, simtime.Unset
	return &c
}
