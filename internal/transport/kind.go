package transport

import (
	"fmt"
	"strings"
)

// DepartProcedure tells when a vehicle or transportable starts its journey.
type DepartProcedure int

const (
	DepartGiven DepartProcedure = iota
	// DepartTriggered waits for a person (vehicles) or for a named vehicle (transportables).
	DepartTriggered
	// DepartContainerTriggered waits for a container.
	DepartContainerTriggered
)

func (p DepartProcedure) String() string {
	switch p {
	case DepartTriggered:
		return "triggered"
	case DepartContainerTriggered:
		return "containerTriggered"
	default:
		return "given"
	}
}

// ParseDepartProcedure accepts "", "given", "triggered" and "containerTriggered".
func ParseDepartProcedure(s string) (DepartProcedure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "given":
		return DepartGiven, nil
	case "triggered":
		return DepartTriggered, nil
	case "containertriggered", "container_triggered":
		return DepartContainerTriggered, nil
	}
	return DepartGiven, fmt.Errorf("unknown depart procedure %q", s)
}

// Kind carries everything that differs between persons and containers.
// It is selected once when a Transportable is built.
type Kind struct {
	name      string
	tag       string
	ride      string
	mode      string
	triggered DepartProcedure
	person    bool
	registry  func(env *Env) WaitingRegistry
}

var (
	Person = &Kind{
		name:      "person",
		tag:       "ride",
		ride:      "driving",
		mode:      "driving",
		triggered: DepartTriggered,
		person:    true,
		registry:  func(env *Env) WaitingRegistry { return env.Persons },
	}
	Container = &Kind{
		name:      "container",
		tag:       "transport",
		ride:      "transport",
		mode:      "transported",
		triggered: DepartContainerTriggered,
		registry:  func(env *Env) WaitingRegistry { return env.Containers },
	}
)

func (k *Kind) String() string { return k.name }

func (k *Kind) IsPerson() bool { return k.person }

// Tag is the element name used for ride records of this kind.
func (k *Kind) Tag() string { return k.tag }

// TriggerProcedure is the vehicle depart procedure that waits for this kind.
func (k *Kind) TriggerProcedure() DepartProcedure { return k.triggered }

// Waiting returns the waiting registry responsible for this kind.
func (k *Kind) Waiting(env *Env) WaitingRegistry { return k.registry(env) }
