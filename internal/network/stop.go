package network

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/samber/lo"

	"ridesim/internal/transport"
)

const (
	// waitingWidth and waitingDepth are the space one waiting transportable takes.
	waitingWidth = 0.8
	waitingDepth = 1.0
)

// Stop is a stopping place covering [start, end] on a lane.
type Stop struct {
	id, name   string
	lane       *Lane
	start, end float64
	access     *orb.Point

	slots    map[*transport.Transportable]int
	free     []int
	nextSlot int
}

func NewStop(id, name string, lane *Lane, start, end float64, access *orb.Point) (*Stop, error) {
	if lane == nil {
		return nil, fmt.Errorf("stop %q: no lane", id)
	}
	if start < 0 || end > lane.edge.length || start >= end {
		return nil, fmt.Errorf("stop %q: invalid range [%.2f, %.2f] on edge %q of length %.2f", id, start, end, lane.edge.id, lane.edge.length)
	}
	return &Stop{
		id:     id,
		name:   name,
		lane:   lane,
		start:  start,
		end:    end,
		access: access,
		slots:  make(map[*transport.Transportable]int),
	}, nil
}

func (s *Stop) ID() string { return s.id }
func (s *Stop) Name() string { return s.name }
func (s *Stop) Lane() transport.Lane { return s.lane }
func (s *Stop) NetworkLane() *Lane { return s.lane }
func (s *Stop) StartPos() float64 { return s.start }
func (s *Stop) EndPos() float64 { return s.end }
func (s *Stop) Contains(pos float64) bool { return pos >= s.start && pos <= s.end }
func (s *Stop) Waiting() int { return len(s.slots) }

func (s *Stop) capacity() int {
	return max(1, int(math.Floor((s.end-s.start)/waitingWidth)))
}

func (s *Stop) slot(t *transport.Transportable) int {
	if i, ok := s.slots[t]; ok {
		return i
	}
	var i int
	if n := len(s.free); n > 0 {
		i, s.free = s.free[n-1], s.free[:n-1]
	} else {
		i = s.nextSlot
		s.nextSlot++
	}
	s.slots[t] = i
	return i
}

// Leave frees the waiting slot of t.
func (s *Stop) Leave(t *transport.Transportable) {
	if i, ok := s.slots[t]; ok {
		delete(s.slots, t)
		s.free = append(s.free, i)
	}
}

// WaitingPositionOnLane spreads waiting transportables backwards from the stop end.
func (s *Stop) WaitingPositionOnLane(t *transport.Transportable) float64 {
	i := s.slot(t) % s.capacity()
	return lo.Clamp(s.end-(0.5+float64(i))*waitingWidth, s.start, s.end)
}

// WaitPosition is the access point if the stop has one, otherwise a point
// beside the lane in rows of capacity transportables.
func (s *Stop) WaitPosition(t *transport.Transportable) (orb.Point, bool) {
	if s.access != nil {
		return *s.access, true
	}
	row := s.slot(t) / s.capacity()
	lateral := s.lane.width/2 + waitingDepth*(0.5+float64(row))
	return s.lane.edge.PositionAt(s.WaitingPositionOnLane(t), lateral), true
}
