package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scope = "github.com/nstehr/vimy/vimy-terran"

// Metrics holds the agent's decision instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	commands   metric.Int64Counter
	maneuvers  metric.Int64Counter
	roleChange metric.Int64Counter
	violations metric.Int64Counter
	tickTime   metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider, so
// Init must run first for them to export anywhere.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(scope))
}

func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	commands, err := meter.Int64Counter("vimy.commands.issued",
		metric.WithDescription("Commands sent to the bridge by ability"))
	if err != nil {
		return nil, err
	}
	maneuvers, err := meter.Int64Counter("vimy.maneuvers.fired",
		metric.WithDescription("Maneuver behaviors that issued a command, by kind"))
	if err != nil {
		return nil, err
	}
	roleChange, err := meter.Int64Counter("vimy.roles.changes",
		metric.WithDescription("Role transitions by destination role"))
	if err != nil {
		return nil, err
	}
	violations, err := meter.Int64Counter("vimy.roles.invariant_violations",
		metric.WithDescription("Ticks whose registry consistency check failed"))
	if err != nil {
		return nil, err
	}
	tickTime, err := meter.Float64Histogram("vimy.tick.duration",
		metric.WithDescription("Time to decide one tick"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		commands:   commands,
		maneuvers:  maneuvers,
		roleChange: roleChange,
		violations: violations,
		tickTime:   tickTime,
	}, nil
}

func (m *Metrics) CommandIssued(ctx context.Context, ability string) {
	if m == nil {
		return
	}
	m.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("ability", ability)))
}

func (m *Metrics) ManeuverFired(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.maneuvers.Add(ctx, 1, metric.WithAttributes(attribute.String("behavior", kind)))
}

func (m *Metrics) RoleChanged(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.roleChange.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}

func (m *Metrics) InvariantViolated(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *Metrics) TickDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.tickTime.Record(ctx, float64(d)/float64(time.Millisecond))
}
