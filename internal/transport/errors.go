package transport

import "fmt"

// VehicleNotFoundError is returned when a triggered departure names a vehicle
// that the registry does not know. It is fatal for the transportable.
type VehicleNotFoundError struct {
	VehicleID       string
	TransportableID string
	Kind            *Kind
}

func (e *VehicleNotFoundError) Error() string {
	return fmt.Sprintf("vehicle '%s' not found for triggered departure of %s '%s'", e.VehicleID, e.Kind, e.TransportableID)
}
