package report

import (
	"bytes"
	"encoding/xml"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridesim/internal/network"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

type flatRoute struct{}

func (flatRoute) DistanceBetween(fromPos, toPos float64, fromIdx, toIdx int) float64 {
	return toPos - fromPos
}

// shuttle is a vehicle on a single long route where position equals distance.
type shuttle struct {
	transport.Vehicle
	id, line, class string
	pos             float64
	stopped         bool
}

func (v *shuttle) ID() string { return v.id }
func (v *shuttle) Line() string { return v.line }
func (v *shuttle) VehicleClass() string { return v.class }
func (v *shuttle) Route() transport.Route { return flatRoute{} }
func (v *shuttle) DepartPos() float64 { return 0 }
func (v *shuttle) RouteIndex() int { return 0 }
func (v *shuttle) PositionOnLane() float64 { return v.pos }
func (v *shuttle) IsStopped() bool { return v.stopped }
func (v *shuttle) Lane() transport.Lane { return nil }
func (v *shuttle) Edge() transport.Location { return nil }
func (v *shuttle) AddTransportable(*transport.Transportable) {}
func (v *shuttle) RemoveTransportable(*transport.Transportable) {}

type nopWaiting struct{}

func (nopWaiting) AddWaiting(transport.Location, *transport.Transportable) {}
func (nopWaiting) AbortWaiting(*transport.Transportable) {}

var env = &transport.Env{Persons: nopWaiting{}, Containers: nopWaiting{}}

type scene struct {
	a, b *network.Edge
	stop *network.Stop
}

func newScene(t *testing.T) *scene {
	n := network.New()
	a, err := n.AddEdge("A", orb.LineString{{0, 0}, {200, 0}}, 0)
	require.NoError(t, err)
	b, err := n.AddEdge("B", orb.LineString{{200, 0}, {400, 0}}, 0)
	require.NoError(t, err)
	s, err := n.AddStop("S", "Station", "B", 100, 120, nil)
	require.NoError(t, err)
	return &scene{a: a, b: b, stop: s}
}

// finishedRide returns a person who waited from 10s, boarded bus at 40s
// after it drove 20 m and left it at 100s 100 m later.
func (s *scene) finishedRide(t *testing.T, id string) *transport.Transportable {
	p, err := transport.NewTransportable(id, transport.Person, transport.DepartGiven, []transport.Stage{
		transport.NewDepartureStage(s.a, nil, 0, 10*simtime.Second),
		transport.NewRideStage(s.b, s.stop, 110, []string{"L1", "L2"}, "bus", 35*simtime.Second),
	})
	require.NoError(t, err)
	_, err = p.Proceed(env, 10*simtime.Second)
	require.NoError(t, err)
	v := &shuttle{id: "bus", line: "L1", class: "bus", pos: 20}
	p.Board(env, v, 40*simtime.Second)
	v.pos, v.stopped = 120, true
	_, err = p.Proceed(env, 100*simtime.Second)
	require.NoError(t, err)
	return p
}

func (s *scene) waitingContainer(t *testing.T, id string) *transport.Transportable {
	c, err := transport.NewTransportable(id, transport.Container, transport.DepartGiven, []transport.Stage{
		transport.NewDepartureStage(s.a, nil, 5, 0),
		transport.NewRideStage(s.b, nil, 50, []string{"cargo"}, "", simtime.Unset),
	})
	require.NoError(t, err)
	_, err = c.Proceed(env, 0)
	require.NoError(t, err)
	return c
}

type tripinfos struct {
	Persons []struct {
		ID    string `xml:"id,attr"`
		Rides []struct {
			WaitingTime string `xml:"waiting-time,attr"`
			Vehicle     string `xml:"vehicle,attr"`
			Depart      string `xml:"depart,attr"`
			Arrival     string `xml:"arrival,attr"`
			ArrivalPos  string `xml:"arrival-position,attr"`
			Duration    string `xml:"duration,attr"`
			RouteLength string `xml:"route-length,attr"`
		} `xml:"ride"`
	} `xml:"personinfo"`
	Containers []struct {
		ID         string `xml:"id,attr"`
		Transports []struct {
			Vehicle  string `xml:"vehicle,attr"`
			Depart   string `xml:"depart,attr"`
			Duration string `xml:"duration,attr"`
		} `xml:"transport"`
	} `xml:"containerinfo"`
}

func TestTripInfoWriter(t *testing.T) {
	s := newScene(t)
	var buf bytes.Buffer
	w, err := NewTripInfoWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(s.finishedRide(t, "p"), 100*simtime.Second))
	require.NoError(t, w.Write(s.waitingContainer(t, "c"), 300*simtime.Second))
	require.NoError(t, w.Close())

	var doc tripinfos
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Persons, 1)
	require.Len(t, doc.Persons[0].Rides, 1)
	ride := doc.Persons[0].Rides[0]
	assert.Equal(t, "p", doc.Persons[0].ID)
	assert.Equal(t, "30.00", ride.WaitingTime)
	assert.Equal(t, "bus", ride.Vehicle)
	assert.Equal(t, "40.00", ride.Depart)
	assert.Equal(t, "100.00", ride.Arrival)
	assert.Equal(t, "120.00", ride.ArrivalPos)
	assert.Equal(t, "60.00", ride.Duration)
	assert.Equal(t, "100.00", ride.RouteLength)

	require.Len(t, doc.Containers, 1)
	tr := doc.Containers[0].Transports[0]
	assert.Equal(t, "NULL", tr.Vehicle)
	assert.Equal(t, "-1", tr.Depart)
	assert.Equal(t, "-1", tr.Duration)
}

func TestRouteWriter(t *testing.T) {
	s := newScene(t)
	var buf bytes.Buffer
	w, err := NewRouteWriter(&buf, true)
	require.NoError(t, err)
	require.NoError(t, w.Write(s.finishedRide(t, "p")))
	require.NoError(t, w.Close())

	out := buf.String()
	assert.Contains(t, out, `<person id="p">`)
	assert.Contains(t, out, `from="A"`)
	assert.Contains(t, out, `to="B"`)
	assert.Contains(t, out, `stop-id="S"`)
	assert.Contains(t, out, `lines="L1 L2"`)
	assert.Contains(t, out, `intended="bus"`)
	assert.Contains(t, out, `depart-time="35.00"`)
	assert.Contains(t, out, `route-length="100.00"`)
	assert.Contains(t, out, "<!-- Station -->")

	var doc struct {
		Persons []struct {
			ID string `xml:"id,attr"`
		} `xml:"person"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Persons, 1)
}

func TestRouteDepartTimeWithoutIntendedVehicle(t *testing.T) {
	el := routeElement(transport.RouteRecord{Tag: "ride", To: "B", Lines: []string{"L1"}, IntendedDepart: 35 * simtime.Second})
	assert.Empty(t, el.Intended)
	assert.Equal(t, "35.00", el.DepartTime)

	el = routeElement(transport.RouteRecord{Tag: "ride", To: "B", Lines: []string{"L1"}, Intended: "bus", IntendedDepart: simtime.Unset})
	assert.Empty(t, el.DepartTime)
}

func TestCommentSafe(t *testing.T) {
	assert.Equal(t, "a-b", commentSafe("a---b"))
	assert.Equal(t, "end", commentSafe("end-"))
}

func TestStats(t *testing.T) {
	tests := []struct {
		name string
		ti   transport.TripInfo
		want RideStats
	}{
		{"bus", transport.TripInfo{Person: true, VehicleClass: "bus", Depart: 10, WaitingTime: 4, Duration: 20, RouteLength: 50},
			RideStats{Count: 1, Bus: 1, WaitingTime: 4, Duration: 20, RouteLength: 50}},
		{"tram", transport.TripInfo{Person: true, VehicleClass: "tram", Depart: 10, WaitingTime: simtime.Unset, Duration: simtime.Unset, RouteLength: -1},
			RideStats{Count: 1, Rail: 1}},
		{"taxi line", transport.TripInfo{Person: true, VehicleClass: "passenger", VehicleLine: "taxi", Depart: 0},
			RideStats{Count: 1, Taxi: 1}},
		{"bike", transport.TripInfo{Person: true, VehicleClass: "bicycle", Depart: 0},
			RideStats{Count: 1, Bike: 1}},
		{"no vehicle", transport.TripInfo{Person: true, Depart: simtime.Unset, Arrival: simtime.Unset},
			RideStats{Aborted: 1}},
		{"cut off while riding", transport.TripInfo{Person: true, VehicleClass: "bus", Depart: 10, Arrival: simtime.Unset, Duration: 50, RouteLength: 80},
			RideStats{Aborted: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s Stats
			s.Add(tc.ti)
			assert.Equal(t, tc.want, s.Person)
			assert.Equal(t, RideStats{}, s.Container)
		})
	}
}

func TestCollector(t *testing.T) {
	s := newScene(t)
	var trips, routes, csv bytes.Buffer
	tw, err := NewTripInfoWriter(&trips)
	require.NoError(t, err)
	rw, err := NewRouteWriter(&routes, false)
	require.NoError(t, err)
	c := &Collector{TripInfo: tw, Routes: rw}

	require.NoError(t, c.Collect(s.finishedRide(t, "p"), 100*simtime.Second))
	require.NoError(t, c.Collect(s.waitingContainer(t, "c"), 300*simtime.Second))
	require.NoError(t, c.Close())

	assert.Equal(t, 1, c.Stats.Person.Count)
	assert.Equal(t, 30*simtime.Second, c.Stats.Person.MeanWaitingTime())
	assert.Equal(t, 100.0, c.Stats.Person.MeanRouteLength())
	assert.Equal(t, 1, c.Stats.Container.Aborted)
	assert.Zero(t, c.Stats.Container.MeanWaitingTime())
	assert.NotContains(t, routes.String(), "route-length")

	require.Len(t, c.Rows, 2)
	assert.Equal(t, RideRow{
		Kind: "person", ID: "p", Stage: 1, From: "A", To: "B", Lines: "L1 L2",
		Vehicle: "bus", Line: "L1", VehicleClass: "bus",
		WaitingTime: 30, Depart: 40, Arrival: 100, ArrivalPos: 120, Duration: 60, RouteLength: 100,
	}, c.Rows[0])
	assert.True(t, c.Rows[1].Aborted)
	assert.Equal(t, -1.0, c.Rows[1].Depart)
	assert.Equal(t, 300.0, c.Rows[1].WaitingTime)

	require.NoError(t, WriteCSV(&csv, c.Rows))
	assert.Contains(t, csv.String(), "kind,id,stage,from,to,lines,vehicle,line,vclass,waiting_time")
	back, err := ReadCSV(&csv)
	require.NoError(t, err)
	assert.Equal(t, c.Rows, back)
}
