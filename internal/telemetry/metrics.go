// Package telemetry exposes OpenTelemetry counters for the connectivity
// layer. Instruments come from the global meter provider, so without an
// SDK installed every recording is a no-op.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/exbridge/exbridge/internal/stream"
)

const meterName = "github.com/exbridge/exbridge"

// Metrics counts stream lifecycle signals, dropped frames and classified
// errors. It implements stream.Observer.
type Metrics struct {
	reconnects        metric.Int64Counter
	heartbeatTimeouts metric.Int64Counter
	messages          metric.Int64Counter
	droppedFrames     metric.Int64Counter
	classifiedErrors  metric.Int64Counter
	stateChanges      metric.Int64Counter
}

var _ stream.Observer = (*Metrics)(nil)

// NewMetrics builds the instrument set on the given meter. A nil meter
// uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	m := &Metrics{}
	var err error
	if m.reconnects, err = meter.Int64Counter("stream.reconnects",
		metric.WithDescription("Connection attempts after a failure"),
		metric.WithUnit("{reconnect}")); err != nil {
		return nil, fmt.Errorf("create reconnects counter: %w", err)
	}
	if m.heartbeatTimeouts, err = meter.Int64Counter("stream.heartbeat_timeouts",
		metric.WithDescription("Pongs missed past the heartbeat deadline"),
		metric.WithUnit("{timeout}")); err != nil {
		return nil, fmt.Errorf("create heartbeat timeouts counter: %w", err)
	}
	if m.messages, err = meter.Int64Counter("stream.messages",
		metric.WithDescription("Frames read from the websocket"),
		metric.WithUnit("{message}")); err != nil {
		return nil, fmt.Errorf("create messages counter: %w", err)
	}
	if m.droppedFrames, err = meter.Int64Counter("stream.dropped_frames",
		metric.WithDescription("Frames no dispatch handler accepted"),
		metric.WithUnit("{frame}")); err != nil {
		return nil, fmt.Errorf("create dropped frames counter: %w", err)
	}
	if m.classifiedErrors, err = meter.Int64Counter("exchange.classified_errors",
		metric.WithDescription("Exchange errors by classified kind"),
		metric.WithUnit("{error}")); err != nil {
		return nil, fmt.Errorf("create classified errors counter: %w", err)
	}
	if m.stateChanges, err = meter.Int64Counter("stream.state_changes",
		metric.WithDescription("Session state transitions"),
		metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("create state changes counter: %w", err)
	}
	return m, nil
}

// StateChanged implements stream.Observer.
func (m *Metrics) StateChanged(exchange string, state stream.State) {
	m.stateChanges.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("exchange", exchange),
			attribute.String("state", state.String()),
		))
}

// Reconnecting implements stream.Observer.
func (m *Metrics) Reconnecting(exchange string) {
	m.reconnects.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("exchange", exchange)))
}

// HeartbeatTimeout implements stream.Observer.
func (m *Metrics) HeartbeatTimeout(exchange string) {
	m.heartbeatTimeouts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("exchange", exchange)))
}

// MessageReceived implements stream.Observer.
func (m *Metrics) MessageReceived(exchange string) {
	m.messages.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("exchange", exchange)))
}

// DroppedFrame records a frame no handler accepted.
func (m *Metrics) DroppedFrame(exchange string) {
	m.droppedFrames.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("exchange", exchange)))
}

// ClassifiedError records a classified exchange error by kind.
func (m *Metrics) ClassifiedError(exchange, kind string) {
	m.classifiedErrors.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("exchange", exchange),
			attribute.String("kind", kind),
		))
}
