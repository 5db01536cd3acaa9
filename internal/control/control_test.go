package control

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridesim/internal/network"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// stopped is a vehicle halted at a position of an edge.
type stopped struct {
	transport.Vehicle
	id, line string
	at       float64
	riders   []*transport.Transportable
}

func (v *stopped) ID() string { return v.id }
func (v *stopped) Line() string { return v.line }
func (v *stopped) VehicleClass() string { return "bus" }
func (v *stopped) IsStopped() bool { return true }
func (v *stopped) PositionOnLane() float64 { return v.at }
func (v *stopped) DepartPos() float64 { return 0 }
func (v *stopped) RouteIndex() int { return 0 }
func (v *stopped) Route() transport.Route { return flat{} }
func (v *stopped) StopsAtEdge(transport.Location) bool { return false }
func (v *stopped) StopsAt(transport.Stop) bool { return false }
func (v *stopped) AddTransportable(t *transport.Transportable) {
	v.riders = append(v.riders, t)
}

type flat struct{}

func (flat) DistanceBetween(fromPos, toPos float64, fromIdx, toIdx int) float64 { return toPos - fromPos }

type reservations struct{ fulfilled, cancelled []*transport.Transportable }

func (r *reservations) Fulfil(t *transport.Transportable) bool {
	r.fulfilled = append(r.fulfilled, t)
	return true
}

func (r *reservations) Cancel(t *transport.Transportable) bool {
	r.cancelled = append(r.cancelled, t)
	return true
}

type fixture struct {
	edge    *network.Edge
	stop    *network.Stop
	persons *Registry
	res     *reservations
	env     *transport.Env
}

func newFixture(t *testing.T) *fixture {
	n := network.New()
	e, err := n.AddEdge("E", orb.LineString{{0, 0}, {100, 0}}, 0)
	require.NoError(t, err)
	s, err := n.AddStop("S", "Stop", "E", 40, 60, nil)
	require.NoError(t, err)
	f := &fixture{edge: e, stop: s, res: &reservations{}}
	f.persons = New(transport.Person, f.res)
	f.env = &transport.Env{Persons: f.persons, Containers: New(transport.Container, nil)}
	return f
}

func (f *fixture) arrive(t *testing.T, id string, atStop bool, pos float64, lines ...string) *transport.Transportable {
	var stop transport.Stop
	if atStop {
		stop = f.stop
	}
	p, err := transport.NewTransportable(id, transport.Person, transport.DepartGiven, []transport.Stage{
		transport.NewDepartureStage(f.edge, stop, pos, 0),
		transport.NewRideStage(f.edge, nil, 90, lines, "", simtime.Unset),
	})
	require.NoError(t, err)
	_, err = p.Proceed(f.env, 0)
	require.NoError(t, err)
	return p
}

func TestAddWaiting(t *testing.T) {
	f := newFixture(t)
	a := f.arrive(t, "a", false, 10, "L1")
	b := f.arrive(t, "b", false, 20, "L1")
	assert.Equal(t, 2, f.persons.Count())
	assert.Equal(t, []*transport.Transportable{a, b}, f.persons.WaitingAt(f.edge))
	assert.Equal(t, []*transport.Transportable{a, b}, f.persons.Waiting())
	assert.Len(t, f.edge.Persons(), 2)

	f.persons.AddWaiting(f.edge, a)
	assert.Equal(t, 2, f.persons.Count())
}

func TestBoardWaiting(t *testing.T) {
	f := newFixture(t)
	near := f.arrive(t, "near", true, 0, "L1")
	other := f.arrive(t, "other", true, 0, "L2")
	far := f.arrive(t, "far", false, 5, "L1")
	assert.Equal(t, 2, f.stop.Waiting())

	v := &stopped{id: "bus", line: "L1", at: 60}
	n := f.persons.BoardWaiting(f.env, f.edge, v, 30*simtime.Second)
	assert.Equal(t, 1, n)
	assert.Equal(t, []*transport.Transportable{near}, v.riders)
	assert.Equal(t, []*transport.Transportable{other, far}, f.persons.WaitingAt(f.edge))
	assert.Equal(t, []*transport.Transportable{near}, f.res.fulfilled)
	assert.Equal(t, 1, f.stop.Waiting())
	assert.Equal(t, 1, f.persons.Boarded())

	ride, ok := near.CurrentRide()
	require.True(t, ok)
	assert.False(t, ride.IsWaiting())
	assert.Equal(t, "bus", ride.VehicleID())
	assert.Equal(t, 30*simtime.Second, ride.Departed())
}

func TestAbortWaiting(t *testing.T) {
	f := newFixture(t)
	p := f.arrive(t, "p", true, 0, transport.TaxiLine)
	p.Abort(f.env, 10)
	assert.True(t, p.Aborted())
	assert.Zero(t, f.persons.Count())
	assert.Empty(t, f.edge.Persons())
	assert.Zero(t, f.stop.Waiting())
	assert.Equal(t, []*transport.Transportable{p}, f.res.cancelled)
	assert.Equal(t, 1, f.persons.Aborted())

	f.persons.AbortWaiting(p)
	assert.Equal(t, 1, f.persons.Aborted())
}
