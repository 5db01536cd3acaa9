// Package scenario loads a YAML description of a network, its vehicles and
// the persons and containers riding them.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid scenario")

type Scenario struct {
	Lefthand bool `yaml:"lefthand"`
	// End in seconds; zero runs until nothing is left to do.
	End float64 `yaml:"end"`
	// Step in seconds; zero keeps the configured step length.
	Step float64 `yaml:"step"`

	Edges      []Edge          `yaml:"edges"`
	Stops      []Stop          `yaml:"stops"`
	Vehicles   []Vehicle       `yaml:"vehicles"`
	Persons    []Transportable `yaml:"persons"`
	Containers []Transportable `yaml:"containers"`
}

type Edge struct {
	ID        string       `yaml:"id"`
	Shape     [][2]float64 `yaml:"shape"`
	LaneWidth float64      `yaml:"laneWidth"`
}

type Stop struct {
	ID     string      `yaml:"id"`
	Name   string      `yaml:"name"`
	Edge   string      `yaml:"edge"`
	Start  float64     `yaml:"start"`
	End    float64     `yaml:"end"`
	Access *[2]float64 `yaml:"access"`
}

type Vehicle struct {
	ID              string        `yaml:"id"`
	Line            string        `yaml:"line"`
	Class           string        `yaml:"vclass"`
	Route           []string      `yaml:"route"`
	Depart          float64       `yaml:"depart"`
	DepartPos       float64       `yaml:"departPos"`
	DepartProcedure string        `yaml:"departProcedure"`
	Speed           float64       `yaml:"speed"`
	Stops           []VehicleStop `yaml:"stops"`
}

type VehicleStop struct {
	Stop     string   `yaml:"stop"`
	Edge     string   `yaml:"edge"`
	Pos      float64  `yaml:"pos"`
	Duration float64  `yaml:"duration"`
	Until    *float64 `yaml:"until"`
}

type Transportable struct {
	ID              string  `yaml:"id"`
	Depart          float64 `yaml:"depart"`
	DepartProcedure string  `yaml:"departProcedure"`
	From            string  `yaml:"from"`
	FromStop        string  `yaml:"fromStop"`
	DepartPos       float64 `yaml:"departPos"`
	Plan            []Step  `yaml:"plan"`
}

// Step holds exactly one of Ride and Wait.
type Step struct {
	Ride *Ride `yaml:"ride"`
	Wait *Wait `yaml:"wait"`
}

type Ride struct {
	To             string   `yaml:"to"`
	ToStop         string   `yaml:"toStop"`
	ArrivalPos     *float64 `yaml:"arrivalPos"`
	Lines          []string `yaml:"lines"`
	Intended       string   `yaml:"intended"`
	IntendedDepart *float64 `yaml:"intendedDepart"`
}

type Wait struct {
	Duration *float64 `yaml:"duration"`
	Until    *float64 `yaml:"until"`
	Act      string   `yaml:"act"`
}

func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
