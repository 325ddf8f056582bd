package agent

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nstehr/vimy/vimy-terran/frame"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/telemetry"
)

// Coordinator is one tactical controller. Within a tick every
// coordinator's Assign runs before any Reconcile, and every Reconcile
// before any Execute, so commands always see the tick's final roles.
type Coordinator interface {
	Name() string
	Assign(f *frame.Frame) error
	Reconcile(f *frame.Frame) error
	Execute(f *frame.Frame) error
}

type stage struct {
	name string
	run  func(Coordinator, *frame.Frame) error
}

var stages = [...]stage{
	{"assign", Coordinator.Assign},
	{"reconcile", Coordinator.Reconcile},
	{"execute", Coordinator.Execute},
}

// Pipeline drives the coordinators through one tick in a fixed order.
type Pipeline struct {
	coordinators []Coordinator
	tracer       trace.Tracer
	metrics      *telemetry.Metrics
}

func NewPipeline(metrics *telemetry.Metrics, coordinators ...Coordinator) *Pipeline {
	return &Pipeline{
		coordinators: coordinators,
		tracer:       otel.Tracer("github.com/nstehr/vimy/vimy-terran/agent"),
		metrics:      metrics,
	}
}

// Run executes one tick. A coordinator error is logged and the remaining
// coordinators still run. The returned error is the registry consistency
// check made between reconciliation and execution, if it failed.
func (p *Pipeline) Run(f *frame.Frame) error {
	ctx, span := p.tracer.Start(f.Ctx, "tick", trace.WithAttributes(attribute.Int("tick", f.Tick())))
	defer span.End()

	var violation error
	for i, st := range stages {
		if i == len(stages)-1 {
			if err := f.Roles.Check(); err != nil {
				violation = err
				f.Log.Error("role registry inconsistent", "tick", f.Tick(), "error", err)
				p.metrics.InvariantViolated(ctx, "check")
				span.RecordError(err)
				span.SetStatus(codes.Error, "role registry inconsistent")
			}
		}

		_, stSpan := p.tracer.Start(ctx, st.name)
		for _, c := range p.coordinators {
			if err := st.run(c, f); err != nil {
				f.Log.Error("coordinator failed", "coordinator", c.Name(), "stage", st.name, "tick", f.Tick(), "error", err)
				stSpan.RecordError(err, trace.WithAttributes(attribute.String("coordinator", c.Name())))
				if errors.Is(err, roles.ErrInvariant) {
					p.metrics.InvariantViolated(ctx, st.name)
				}
			}
		}
		stSpan.End()
	}
	return violation
}

// Names lists the coordinators in run order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.coordinators))
	for i, c := range p.coordinators {
		out[i] = c.Name()
	}
	return out
}
