package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_DefaultsApplied(t *testing.T) {
	viper.Reset()
	cfg := Load("/path/does/not/exist.yaml")

	if cfg.Port != "8090" {
		t.Fatalf("expected default port 8090, got %q", cfg.Port)
	}
	if cfg.MaxPacketsPerNode != 1000 {
		t.Fatalf("expected default max_packets_per_node 1000, got %d", cfg.MaxPacketsPerNode)
	}
	if cfg.TracerouteIntervalMin != 30*time.Minute {
		t.Fatalf("expected default traceroute interval 30m, got %s", cfg.TracerouteIntervalMin)
	}
	if cfg.TelemetryMaxPerCycle != 10 {
		t.Fatalf("expected default telemetry max_per_cycle 10, got %d", cfg.TelemetryMaxPerCycle)
	}
	if !cfg.SkipNodesWithRecentTraceroute {
		t.Fatalf("expected skip_nodes_with_recent_traceroute to default true")
	}
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	viper.Reset()
	t.Setenv("PORT", "9999")
	t.Setenv("TRACEROUTE_MAX_PER_CYCLE", "3")

	cfg := Load("/path/does/not/exist.yaml")

	if cfg.Port != "9999" {
		t.Fatalf("expected env-overridden port 9999, got %q", cfg.Port)
	}
	if cfg.TracerouteMaxPerCycle != 3 {
		t.Fatalf("expected env-overridden max_per_cycle 3, got %d", cfg.TracerouteMaxPerCycle)
	}
}
