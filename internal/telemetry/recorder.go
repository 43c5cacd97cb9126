// Package telemetry fans readings and status updates out to every sink a
// node feeds: the shared store (system of record), the MQTT broker (live
// dashboards) and InfluxDB (long-term history).
//
// The store write is authoritative; broker and time-series writes are
// best-effort and their failures are logged, never returned.
package telemetry

import (
	"context"

	"github.com/riverwatch/rivercore/internal/infrastructure/logging"
	"github.com/riverwatch/rivercore/internal/infrastructure/mqtt"
	"github.com/riverwatch/rivercore/internal/reading"
)

// Store is the slice of the store connection the recorder needs.
type Store interface {
	StoreReading(ctx context.Context, r reading.Reading) error
	UpdateStatus(ctx context.Context, piStatus, swStatus, currentAction string) error
	SiteID() string
}

// Publisher is the slice of the broker client the recorder needs.
type Publisher interface {
	PublishString(topic, payload string, qos byte, retained bool) error
	IsConnected() bool
}

// Metrics is the slice of the time-series client the recorder needs.
type Metrics interface {
	WriteReading(r reading.Reading)
	WriteNodeStatus(siteID, piStatus, swStatus string)
}

// Recorder writes observations to the store and mirrors them to the
// optional live sinks.
type Recorder struct {
	store   Store
	log     *logging.Logger
	broker  Publisher
	metrics Metrics
	qos     byte
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithBroker mirrors readings and status to the MQTT broker.
func WithBroker(p Publisher, qos byte) Option {
	return func(r *Recorder) {
		r.broker = p
		r.qos = qos
	}
}

// WithMetrics mirrors readings and status to the time-series store.
func WithMetrics(m Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New builds a recorder over the store connection. Without options it
// degrades to a plain store writer.
func New(s Store, log *logging.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store: s,
		log:   log.With("component", "telemetry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists a reading and mirrors it to the live sinks.
//
// The store write decides the return value. Broker and metrics writes
// happen regardless of each other but are skipped when the store write
// fails, so consumers of the live feeds never see data the store lost.
func (r *Recorder) Record(ctx context.Context, rd reading.Reading) error {
	if err := r.store.StoreReading(ctx, rd); err != nil {
		return err
	}

	if r.broker != nil && r.broker.IsConnected() {
		topic := mqtt.Topics{}.Reading(rd.SiteID(), rd.SensorID())
		if err := r.broker.PublishString(topic, rd.AsCSV(), r.qos, true); err != nil {
			r.log.Warn("reading publish failed", "topic", topic, "error", err)
		}
	}

	if r.metrics != nil {
		r.metrics.WriteReading(rd)
	}

	return nil
}

// RecordStatus updates this node's status row and mirrors the transition.
func (r *Recorder) RecordStatus(ctx context.Context, piStatus, swStatus, currentAction string) error {
	if err := r.store.UpdateStatus(ctx, piStatus, swStatus, currentAction); err != nil {
		return err
	}

	siteID := r.store.SiteID()
	if r.broker != nil && r.broker.IsConnected() {
		topic := mqtt.Topics{}.NodeStatus(siteID)
		payload := piStatus + "," + swStatus + "," + currentAction
		if err := r.broker.PublishString(topic, payload, r.qos, true); err != nil {
			r.log.Warn("status publish failed", "topic", topic, "error", err)
		}
	}

	if r.metrics != nil {
		r.metrics.WriteNodeStatus(siteID, piStatus, swStatus)
	}

	return nil
}
