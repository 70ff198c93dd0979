package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "ecomeda.websocket"

// Metrics records hub activity as OpenTelemetry instruments and keeps
// running totals for the health endpoint.
type Metrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesTotal      metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedMessages    metric.Int64Counter

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	dropped          atomic.Int64
}

// NewMetrics creates the instruments on meter. A nil meter records nothing
// but the running totals.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	var errs []error
	counter := func(name, desc string, opts ...metric.Int64CounterOption) metric.Int64Counter {
		c, err := meter.Int64Counter(name, append(opts, metric.WithDescription(desc))...)
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		connectionsTotal: counter("websocket_connections_total", "Progress subscribers accepted"),
		messagesTotal:    counter("websocket_messages_total", "Analysis events queued to subscribers"),
		messageBytes:     counter("websocket_message_bytes_total", "Encoded event bytes queued to subscribers", metric.WithUnit("By")),
		droppedMessages:  counter("websocket_dropped_messages_total", "Events dropped because a queue was full"),
	}

	var err error
	m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Progress subscribers currently connected"))
	errs = append(errs, err)
	m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("How long subscribers stayed connected"),
		metric.WithUnit("s"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("websocket instruments: %w", err)
	}
	return m, nil
}

// RecordConnection counts a registered client
func (m *Metrics) RecordConnection(ctx context.Context) {
	if m == nil {
		return
	}
	m.totalConnections.Add(1)
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

// RecordDisconnection counts an unregistered client
func (m *Metrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordMessage counts one frame delivered to a client queue
func (m *Metrics) RecordMessage(ctx context.Context, messageType string, size int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(1)
	attrs := metric.WithAttributes(attribute.String("message_type", messageType))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordDropped counts a message that could not be queued
func (m *Metrics) RecordDropped(ctx context.Context, where string) {
	if m == nil {
		return
	}
	m.dropped.Add(1)
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", where)))
}

// Snapshot returns the running totals
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"total_connections": m.totalConnections.Load(),
		"messages_sent":     m.messagesSent.Load(),
		"dropped_messages":  m.dropped.Load(),
	}
}
