package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/riverwatch/rivercore/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled:  true,
		Host:     "127.0.0.1",
		Port:     1883,
		ClientID: "rivercore-test",
		QoS:      1,
	}
}

// newDisconnectedClient builds a client that has never connected, for
// exercising validation paths without a broker.
func newDisconnectedClient() *Client {
	cfg := testMQTTConfig()
	return &Client{
		cfg:    cfg,
		client: pahomqtt.NewClient(buildClientOptions(cfg)),
		subs:   make(map[string]subscription),
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"reading", topics.Reading("G4", "M0"), "rivercore/G4/reading/M0"},
		{"event", topics.Event("NAS"), "rivercore/NAS/event"},
		{"node status", topics.NodeStatus("SUMP"), "rivercore/SUMP/status"},
		{"control", topics.Control("SUMP", "P0"), "rivercore/SUMP/control/P0"},
		{"system status", topics.SystemStatus(), "rivercore/system/status"},
		{"all readings", topics.AllReadings(), "rivercore/+/reading/+"},
		{"site readings", topics.SiteReadings("G4"), "rivercore/G4/reading/+"},
		{"all events", topics.AllEvents(), "rivercore/+/event"},
		{"all status", topics.AllStatus(), "rivercore/+/status"},
		{"site control", topics.SiteControl("SUMP"), "rivercore/SUMP/control/+"},
		{"everything", topics.AllTopics(), "rivercore/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := newDisconnectedClient()

	t.Run("empty topic", func(t *testing.T) {
		if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("error = %v, want ErrInvalidTopic", err)
		}
	})

	t.Run("invalid qos", func(t *testing.T) {
		if err := c.Publish("rivercore/G4/reading/M0", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
			t.Errorf("error = %v, want ErrInvalidQoS", err)
		}
	})

	t.Run("oversize payload", func(t *testing.T) {
		big := make([]byte, maxPayloadSize+1)
		if err := c.Publish("rivercore/G4/reading/M0", big, 1, false); !errors.Is(err, ErrPublishFailed) {
			t.Errorf("error = %v, want ErrPublishFailed", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		if err := c.Publish("rivercore/G4/reading/M0", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
			t.Errorf("error = %v, want ErrNotConnected", err)
		}
	})
}

func TestSubscribeValidation(t *testing.T) {
	c := newDisconnectedClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("rivercore/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("rivercore/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("rivercore/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v, want ErrNotConnected", err)
	}

	// Rejected subscriptions must not be replayed on reconnect.
	if len(c.subs) != 0 {
		t.Errorf("tracked subscriptions = %d after failed subscribes, want 0", len(c.subs))
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Username = "river"
	cfg.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "rivercore-test" {
		t.Errorf("ClientID = %q, want rivercore-test", opts.ClientID)
	}
	if opts.Username != "river" {
		t.Errorf("Username = %q, want river", opts.Username)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestStatusPayloads(t *testing.T) {
	for _, tt := range []struct {
		name    string
		payload string
		status  string
	}{
		{"online", buildOnlinePayload("rivercore-g4"), "online"},
		{"offline", buildOfflinePayload("rivercore-g4"), "offline"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var decoded map[string]string
			if err := json.Unmarshal([]byte(tt.payload), &decoded); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			if decoded["status"] != tt.status {
				t.Errorf("status = %q, want %q", decoded["status"], tt.status)
			}
			if decoded["client_id"] != "rivercore-g4" {
				t.Errorf("client_id = %q, want rivercore-g4", decoded["client_id"])
			}
		})
	}

	if !strings.Contains(buildOfflinePayload("x"), "graceful_shutdown") {
		t.Error("graceful offline payload missing reason")
	}
}
