// Package fleet simulates public transport and service vehicles driving
// fixed routes at constant speed.
package fleet

import (
	"github.com/samber/lo"

	"ridesim/internal/network"
	"ridesim/internal/transport"
)

// Route is the sequence of edges a vehicle drives.
type Route []*network.Edge

// DistanceBetween measures along the route from fromPos on edge fromIdx to
// toPos on edge toIdx.
func (r Route) DistanceBetween(fromPos, toPos float64, fromIdx, toIdx int) float64 {
	if fromIdx == toIdx {
		return toPos - fromPos
	}
	between := lo.SumBy(r[fromIdx+1:toIdx], func(e *network.Edge) float64 { return e.Length() })
	return r[fromIdx].Length() - fromPos + between + toPos
}

// Contains reports whether the route passes e.
func (r Route) Contains(e transport.Location) bool {
	return lo.ContainsBy(r, func(re *network.Edge) bool { return transport.Location(re) == e })
}
