package transport

import (
	"fmt"

	"ridesim/internal/simtime"
)

// Transportable is a person or container following a plan of stages.
// Stage 0 is always the departure placeholder.
type Transportable struct {
	id              string
	kind            *Kind
	departProcedure DepartProcedure
	plan            []Stage
	step            int
	aborted         bool
}

func NewTransportable(id string, kind *Kind, departProcedure DepartProcedure, plan []Stage) (*Transportable, error) {
	if len(plan) == 0 || plan[0].Type() != StageWaitingForDepart {
		return nil, fmt.Errorf("%s %q: plan must start with a departure stage", kind, id)
	}
	return &Transportable{
		id:              id,
		kind:            kind,
		departProcedure: departProcedure,
		plan:            plan,
	}, nil
}

// Clone copies the plan so the copy can be simulated independently.
func (t *Transportable) Clone(id string) *Transportable {
	plan := make([]Stage, len(t.plan))
	for i, s := range t.plan {
		plan[i] = s.Clone()
	}
	return &Transportable{id: id, kind: t.kind, departProcedure: t.departProcedure, plan: plan}
}

func (t *Transportable) ID() string { return t.id }
func (t *Transportable) Kind() *Kind { return t.kind }
func (t *Transportable) DepartProcedure() DepartProcedure { return t.departProcedure }
func (t *Transportable) Plan() []Stage { return t.plan }
func (t *Transportable) NumStages() int { return len(t.plan) }
func (t *Transportable) Aborted() bool { return t.aborted }

// NumRemainingStages counts the current stage and all following ones.
func (t *Transportable) NumRemainingStages() int { return len(t.plan) - t.step }

// Finished reports whether the last stage has ended or the plan was aborted.
func (t *Transportable) Finished() bool { return t.aborted || t.step >= len(t.plan) }

// CurrentStage returns nil once the transportable has finished.
func (t *Transportable) CurrentStage() Stage {
	if t.Finished() {
		return nil
	}
	return t.plan[t.step]
}

// PreviousStage returns the stage that ended last, nil before departure.
func (t *Transportable) PreviousStage() Stage {
	if t.step == 0 || t.step > len(t.plan) {
		return nil
	}
	return t.plan[t.step-1]
}

// CurrentRide returns the current stage when it is a ride.
func (t *Transportable) CurrentRide() (*RideStage, bool) {
	r, ok := t.CurrentStage().(*RideStage)
	return r, ok
}

// Proceed ends the current stage and activates the next one. It returns
// false when the plan is complete.
func (t *Transportable) Proceed(env *Env, now simtime.Time) (bool, error) {
	prior := t.plan[t.step]
	prior.SetArrived(env, t, now)
	if r, ok := prior.(*RideStage); ok {
		env.emit(t.event(EventArrived, now, r))
	}
	t.step++
	if t.step >= len(t.plan) {
		return false, nil
	}
	next := t.plan[t.step]
	if err := next.Activate(env, t, now, prior); err != nil {
		return true, err
	}
	if r, ok := next.(*RideStage); ok {
		if r.IsWaiting() {
			env.emit(t.event(EventWaiting, now, r))
		} else {
			env.emit(t.event(EventBoarded, now, r))
		}
	}
	return true, nil
}

// IsWaitingFor reports whether t is waiting for a ride that v can serve.
func (t *Transportable) IsWaitingFor(v Vehicle) bool {
	r, ok := t.CurrentRide()
	return ok && r.IsWaiting() && r.Accepts(v)
}

// Board puts t into v. The caller has checked IsWaitingFor.
func (t *Transportable) Board(env *Env, v Vehicle, now simtime.Time) {
	r, ok := t.CurrentRide()
	if !ok {
		return
	}
	r.Bind(v, now)
	v.AddTransportable(t)
	env.emit(t.event(EventBoarded, now, r))
}

// Abort ends the plan immediately.
func (t *Transportable) Abort(env *Env, now simtime.Time) {
	if t.Finished() {
		return
	}
	stage := t.plan[t.step]
	stage.Abort(env, t)
	t.aborted = true
	if r, ok := stage.(*RideStage); ok {
		env.emit(t.event(EventAborted, now, r))
	}
}

func (t *Transportable) event(typ EventType, now simtime.Time, r *RideStage) Event {
	ev := Event{
		Type:            typ,
		Time:            now,
		TransportableID: t.id,
		Kind:            t.kind.String(),
		VehicleID:       r.VehicleID(),
		Lines:           r.Lines(),
		RouteLength:     r.RouteLength(),
	}
	if loc := r.Location(); loc != nil {
		ev.Edge = loc.ID()
	}
	return ev
}
