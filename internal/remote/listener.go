// Package remote turns broker control messages into store arbitration
// calls, so an operator console can drive a site's devices without direct
// access to the shared store file.
package remote

import (
	"context"
	"strings"
	"time"

	"github.com/riverwatch/rivercore/internal/infrastructure/logging"
	"github.com/riverwatch/rivercore/internal/infrastructure/mqtt"
)

// ReleaseRequest is the payload that releases a held lock instead of
// requesting one. It is deliberately outside the control-table request
// vocabulary so it can never be written as a device request.
const ReleaseRequest = "Release"

// handleTimeout bounds one arbitration round trip through the store.
const handleTimeout = 10 * time.Second

// Arbiter is the slice of the store connection the listener drives.
type Arbiter interface {
	SiteID() string
	AttemptToControl(ctx context.Context, siteID, deviceID, request string) (bool, error)
	ReleaseControl(ctx context.Context, siteID, deviceID string) error
}

// Broker is the subscribe surface of the MQTT client.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Listener applies control messages for this site through the store's
// arbitration protocol. A request that loses arbitration is logged and
// dropped; the sender watches the control table for the outcome, exactly
// as a local caller would.
type Listener struct {
	arbiter Arbiter
	log     *logging.Logger
}

func New(arbiter Arbiter, log *logging.Logger) *Listener {
	return &Listener{
		arbiter: arbiter,
		log:     log.With("component", "remote", "site", arbiter.SiteID()),
	}
}

// Attach subscribes the listener to the site's control topic. The
// subscription survives broker reconnects.
func (l *Listener) Attach(broker Broker, qos byte) error {
	return broker.Subscribe(mqtt.Topics{}.SiteControl(l.arbiter.SiteID()), qos, l.handle)
}

// handle processes one control message. The device id is the last topic
// segment; the payload carries the request verb, or ReleaseRequest to
// let a held lock go.
func (l *Listener) handle(topic string, payload []byte) error {
	deviceID := topic[strings.LastIndexByte(topic, '/')+1:]
	if deviceID == "" || strings.ContainsAny(deviceID, "+#") {
		l.log.Warn("control message without a device id", "topic", topic)
		return nil
	}
	request := strings.TrimSpace(string(payload))

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	siteID := l.arbiter.SiteID()
	if request == ReleaseRequest {
		if err := l.arbiter.ReleaseControl(ctx, siteID, deviceID); err != nil {
			l.log.Warn("release failed", "device", deviceID, "error", err)
		}
		return nil
	}

	granted, err := l.arbiter.AttemptToControl(ctx, siteID, deviceID, request)
	if err != nil {
		l.log.Warn("control request failed", "device", deviceID, "request", request, "error", err)
		return nil
	}
	if !granted {
		l.log.Info("control request denied", "device", deviceID, "request", request)
	}
	return nil
}
