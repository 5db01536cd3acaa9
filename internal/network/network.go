package network

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Network indexes edges and stops by id.
type Network struct {
	edges map[string]*Edge
	stops map[string]*Stop
	order []*Edge
}

func New() *Network {
	return &Network{edges: make(map[string]*Edge), stops: make(map[string]*Stop)}
}

func (n *Network) AddEdge(id string, shape orb.LineString, laneWidth float64) (*Edge, error) {
	if _, ok := n.edges[id]; ok {
		return nil, fmt.Errorf("duplicate edge %q", id)
	}
	e, err := NewEdge(id, shape, laneWidth)
	if err != nil {
		return nil, err
	}
	n.edges[id] = e
	n.order = append(n.order, e)
	return e, nil
}

func (n *Network) AddStop(id, name, edgeID string, start, end float64, access *orb.Point) (*Stop, error) {
	if _, ok := n.stops[id]; ok {
		return nil, fmt.Errorf("duplicate stop %q", id)
	}
	e, ok := n.edges[edgeID]
	if !ok {
		return nil, fmt.Errorf("stop %q: unknown edge %q", id, edgeID)
	}
	s, err := NewStop(id, name, e.lane, start, end, access)
	if err != nil {
		return nil, err
	}
	n.stops[id] = s
	return s, nil
}

func (n *Network) Edge(id string) (*Edge, bool) {
	e, ok := n.edges[id]
	return e, ok
}

func (n *Network) Stop(id string) (*Stop, bool) {
	s, ok := n.stops[id]
	return s, ok
}

// Edges returns the edges in insertion order.
func (n *Network) Edges() []*Edge { return n.order }
