package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testYAML = `
node:
  site_id: SUMP
  coordinator_id: NAS

store:
  path: /srv/river/rivercontrol.db
  host: 192.168.0.25
  busy_timeout: 5

logging:
  level: debug
  format: text

sites:
  NAS:
    name: NAS Box
    host: 192.168.0.25
  SUMP:
    name: Sump Pi
    host: 192.168.0.2
    devices: ["SUMP:P0", "SUMP:P1"]
    probes: ["SUMP:M0"]
    has_readings: true
  G4:
    name: Wendy Street Butts Pi
    host: 192.168.0.4
    probes: ["G4:M0", "G4:FS0"]
    has_readings: true
`

// writeConfig writes YAML content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("loads valid config", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testYAML))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Node.SiteID != "SUMP" {
			t.Errorf("Node.SiteID = %q, want SUMP", cfg.Node.SiteID)
		}
		if cfg.Store.Host != "192.168.0.25" {
			t.Errorf("Store.Host = %q", cfg.Store.Host)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
		}
		if len(cfg.Sites) != 3 {
			t.Errorf("len(Sites) = %d, want 3", len(cfg.Sites))
		}
	})

	t.Run("defaults apply when sections omitted", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testYAML))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.MQTT.Port != 1883 {
			t.Errorf("MQTT.Port default = %d, want 1883", cfg.MQTT.Port)
		}
		if cfg.Store.PingTimeout != 2 {
			t.Errorf("Store.PingTimeout default = %d, want 2", cfg.Store.PingTimeout)
		}
	})

	t.Run("env overrides file values", func(t *testing.T) {
		t.Setenv("RIVERCORE_NODE_SITE_ID", "G4")
		cfg, err := Load(writeConfig(t, testYAML))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Node.SiteID != "G4" {
			t.Errorf("Node.SiteID = %q, want env override G4", cfg.Node.SiteID)
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Load() with missing file should fail")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("unknown site id rejected", func(t *testing.T) {
		bad := strings.Replace(testYAML, "site_id: SUMP", "site_id: ATLANTIS", 1)
		_, err := Load(writeConfig(t, bad))
		if err == nil || !strings.Contains(err.Error(), "site registry") {
			t.Errorf("Load() error = %v, want site registry failure", err)
		}
	})

	t.Run("malformed device id rejected", func(t *testing.T) {
		bad := strings.Replace(testYAML, `"SUMP:P0"`, `"SUMPP0"`, 1)
		_, err := Load(writeConfig(t, bad))
		if err == nil || !strings.Contains(err.Error(), "malformed device id") {
			t.Errorf("Load() error = %v, want malformed device id failure", err)
		}
	})

	t.Run("empty store path rejected", func(t *testing.T) {
		bad := strings.Replace(testYAML, "path: /srv/river/rivercontrol.db", `path: ""`, 1)
		_, err := Load(writeConfig(t, bad))
		if err == nil || !strings.Contains(err.Error(), "store.path") {
			t.Errorf("Load() error = %v, want store.path failure", err)
		}
	})
}

func TestRegistryLookups(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IsCoordinator() {
		t.Error("SUMP node should not be the coordinator")
	}
	if !cfg.HasSite("G4") || cfg.HasSite("G9") {
		t.Error("HasSite lookup wrong")
	}
	if !cfg.HasSensor("SUMP", "P0") {
		t.Error("HasSensor(SUMP, P0) = false, want true (device)")
	}
	if !cfg.HasSensor("G4", "FS0") {
		t.Error("HasSensor(G4, FS0) = false, want true (probe)")
	}
	if cfg.HasSensor("SUMP", "SUMP") {
		t.Error("HasSensor should not match the whole-site virtual device")
	}
	if cfg.HasSensor("SUMP", "M9") {
		t.Error("HasSensor(SUMP, M9) = true, want false")
	}

	ids := cfg.SiteIDs()
	want := []string{"G4", "NAS", "SUMP"}
	if len(ids) != len(want) {
		t.Fatalf("SiteIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("SiteIDs()[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
