package report

import (
	"errors"

	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

// Collector gathers finished transportables into the configured outputs.
// Writers may be nil.
type Collector struct {
	TripInfo *TripInfoWriter
	Routes   *RouteWriter
	Stats    Stats
	Rows     []RideRow
}

func (c *Collector) Collect(t *transport.Transportable, now simtime.Time) error {
	c.Stats.AddTransportable(t, now)
	c.Rows = append(c.Rows, Rows(t, now)...)
	var errs []error
	if c.TripInfo != nil {
		errs = append(errs, c.TripInfo.Write(t, now))
	}
	if c.Routes != nil {
		errs = append(errs, c.Routes.Write(t))
	}
	return errors.Join(errs...)
}

// Close finishes the XML documents.
func (c *Collector) Close() error {
	var errs []error
	if c.TripInfo != nil {
		errs = append(errs, c.TripInfo.Close())
	}
	if c.Routes != nil {
		errs = append(errs, c.Routes.Close())
	}
	return errors.Join(errs...)
}
