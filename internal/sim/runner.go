// Package sim drives the fixed-step simulation loop.
package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"ridesim/internal/control"
	"ridesim/internal/dispatch"
	"ridesim/internal/fleet"
	mmetrics "ridesim/internal/metrics"
	"ridesim/internal/report"
	"ridesim/internal/scenario"
	"ridesim/internal/simtime"
	"ridesim/internal/transport"
)

type Options struct {
	// Step and End override the world's settings when positive. Step
	// defaults to one second.
	Step simtime.Time
	// End zero runs until no transportable and no vehicle is left.
	End       simtime.Time
	Lefthand  bool
	Metrics   *mmetrics.Collector
	Sinks     []transport.EventSink
	Collector *report.Collector
}

// Runner owns the simulation state of one world. It is not safe for
// concurrent use.
type Runner struct {
	env        *transport.Env
	fleet      *fleet.Fleet
	persons    *control.Registry
	containers *control.Registry
	book       *dispatch.Book

	active    []*transport.Transportable
	collector *report.Collector
	metrics   *mmetrics.Collector
	sinks     []transport.EventSink

	step     simtime.Time
	end      simtime.Time
	now      simtime.Time
	finished simtime.Time
}

func New(w *scenario.World, opts Options) (*Runner, error) {
	r := &Runner{
		book:      dispatch.NewBook(),
		collector: opts.Collector,
		metrics:   opts.Metrics,
		sinks:     opts.Sinks,
		step:      opts.Step,
		end:       opts.End,
		active:    slices.Clone(w.Transportables),
		finished:  simtime.Unset,
	}
	if r.step <= 0 {
		r.step = w.Step
	}
	if r.step <= 0 {
		r.step = simtime.Second
	}
	if r.end <= 0 {
		r.end = w.End
	}
	if r.collector == nil {
		r.collector = &report.Collector{}
	}
	r.persons = control.New(transport.Person, r.book)
	r.containers = control.New(transport.Container, r.book)
	r.fleet = fleet.New(r.persons, r.containers)
	for _, v := range w.Vehicles {
		if err := r.fleet.Register(v); err != nil {
			return nil, err
		}
	}
	r.env = &transport.Env{
		Lefthand:   opts.Lefthand || w.Lefthand,
		Vehicles:   r.fleet,
		Insertion:  r.fleet,
		Persons:    r.persons,
		Containers: r.containers,
		Dispatch:   r.book,
		Events:     r,
	}
	return r, nil
}

func (r *Runner) Now() simtime.Time { return r.now }
func (r *Runner) StepLength() simtime.Time { return r.step }

// FinishedAt is the time unfinished transportables were aborted at, Unset
// before Run returns.
func (r *Runner) FinishedAt() simtime.Time { return r.finished }
func (r *Runner) Env() *transport.Env { return r.env }
func (r *Runner) Fleet() *fleet.Fleet { return r.fleet }
func (r *Runner) Reservations() *dispatch.Book { return r.book }
func (r *Runner) Collector() *report.Collector { return r.collector }

// Active returns the transportables whose plan is not finished.
func (r *Runner) Active() []*transport.Transportable { return slices.Clone(r.active) }

// StageEvent fans ride transitions out to the metrics and the configured sinks.
func (r *Runner) StageEvent(ev transport.Event) {
	log.Debug().Str("type", string(ev.Type)).Str(ev.Kind, ev.TransportableID).Str("vehicle", ev.VehicleID).Str("edge", ev.Edge).Stringer("simTime", ev.Time).Msg("stage event")
	if r.metrics != nil {
		r.metrics.StageEvents.WithLabelValues(string(ev.Type), ev.Kind).Inc()
		if ev.Type == transport.EventWaiting && len(ev.Lines) == 1 && ev.Lines[0] == transport.TaxiLine && ev.Kind == transport.Person.String() {
			r.metrics.Reservations.Inc()
		}
	}
	for _, s := range r.sinks {
		s.StageEvent(ev)
	}
}

// Run steps until the end time, until nothing is left to simulate, or
// until ctx is cancelled. Unfinished transportables are aborted and
// collected before returning.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().Int("transportables", len(r.active)).Int("vehicles", len(r.fleet.Vehicles())).Stringer("step", r.step).Msg("simulation started")
	var err error
	for {
		if err = ctx.Err(); err != nil {
			break
		}
		if r.end > 0 && r.now > r.end {
			break
		}
		if r.idle() {
			break
		}
		if err = r.Step(); err != nil {
			break
		}
		r.now += r.step
	}
	end := r.now
	if r.end > 0 && end > r.end {
		end = r.end
	}
	r.finished = end
	if terr := r.teardown(end); terr != nil {
		err = errors.Join(err, terr)
	}
	s := r.collector.Stats
	log.Info().
		Stringer("simTime", end).
		Int("personRides", s.Person.Count).
		Int("containerTransports", s.Container.Count).
		Int("abortedRides", s.Person.Aborted+s.Container.Aborted).
		Int("openReservations", len(r.book.Pending())).
		Msg("simulation finished")
	return err
}

// idle reports whether no vehicle is left to move or depart and every
// unfinished transportable is waiting for a ride that can no longer come.
func (r *Runner) idle() bool {
	if r.fleet.Running() > 0 || r.fleet.HasScheduled() {
		return false
	}
	return !slices.ContainsFunc(r.active, func(t *transport.Transportable) bool {
		ride, ok := t.CurrentRide()
		return !ok || !ride.IsWaiting()
	})
}

// Step advances the simulation by one step at the current time.
func (r *Runner) Step() error {
	tickStart := time.Now()
	now := r.now

	r.fleet.Insert(r.env, now)
	if err := r.proceedDue(now); err != nil {
		return err
	}
	moveErr := r.fleet.Move(r.env, now, r.step)
	collectErr := r.collectFinished(now)

	if r.metrics != nil {
		r.metrics.SimTime.Set(now.Seconds())
		r.metrics.ActiveTransportables.Set(float64(len(r.active)))
		r.metrics.WaitingTransportables.WithLabelValues(transport.Person.String()).Set(float64(r.persons.Count()))
		r.metrics.WaitingTransportables.WithLabelValues(transport.Container.String()).Set(float64(r.containers.Count()))
		r.metrics.RunningVehicles.Set(float64(r.fleet.Running()))
		r.metrics.TriggeredVehicles.Set(float64(r.fleet.WaitingCount()))
		r.metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
	}
	if moveErr != nil {
		return fmt.Errorf("at %s: %w", now, moveErr)
	}
	return collectErr
}

// proceedDue ends every waiting stage whose end time has come. A
// transportable may pass several stages in one step.
func (r *Runner) proceedDue(now simtime.Time) error {
	for _, t := range r.active {
		for !t.Finished() {
			ws, ok := t.CurrentStage().(*transport.WaitingStage)
			if !ok {
				break
			}
			end := ws.EndTime()
			if !end.IsSet() || end > now {
				break
			}
			if _, err := t.Proceed(r.env, now); err != nil {
				var nf *transport.VehicleNotFoundError
				if errors.As(err, &nf) {
					return fmt.Errorf("at %s: %w", now, err)
				}
				return fmt.Errorf("%s %q at %s: %w", t.Kind(), t.ID(), now, err)
			}
		}
	}
	return nil
}

func (r *Runner) collectFinished(now simtime.Time) error {
	var errs []error
	r.active = slices.DeleteFunc(r.active, func(t *transport.Transportable) bool {
		if !t.Finished() {
			return false
		}
		errs = append(errs, r.collect(t, now))
		return true
	})
	return errors.Join(errs...)
}

func (r *Runner) collect(t *transport.Transportable, now simtime.Time) error {
	outcome := "arrived"
	if t.Aborted() {
		outcome = "aborted"
	}
	if r.metrics != nil {
		r.metrics.TransportablesFinished.WithLabelValues(t.Kind().String(), outcome).Inc()
		for _, ride := range report.Rides(t) {
			ti := ride.TripInfo(t.Kind(), now)
			if ti.Depart.IsSet() && ti.WaitingTime.IsSet() {
				r.metrics.RideWaitingTime.Observe(ti.WaitingTime.Seconds())
			}
			if ti.Arrival.IsSet() && ti.RouteLength >= 0 {
				r.metrics.RideRouteLength.Observe(ti.RouteLength)
			}
		}
	}
	log.Debug().Str(t.Kind().String(), t.ID()).Str("outcome", outcome).Stringer("simTime", now).Msg("plan finished")
	return r.collector.Collect(t, now)
}

// teardown aborts every unfinished transportable and collects it.
func (r *Runner) teardown(now simtime.Time) error {
	for _, t := range r.active {
		if cur := t.CurrentStage(); cur != nil {
			if ride, ok := cur.(*transport.RideStage); ok {
				log.Warn().Str(t.Kind().String(), t.ID()).Str("state", ride.WaitingDescription()).Msg("aborted at simulation end")
			}
		}
		t.Abort(r.env, now)
	}
	return r.collectFinished(now)
}
