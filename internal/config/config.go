// Package config loads runtime configuration with spf13/viper, grounded on
// backend/config/config.go's SetDefault-then-Unmarshal pattern.
package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named in spec.md §4.1, §4.4, §4.5, §4.6, §4.7,
// plus the ambient server/store/auth/uploader settings a runnable daemon
// needs that spec.md leaves to configuration file loading (explicitly out
// of scope per spec.md §1).
type Config struct {
	Port   string
	DBPath string

	RadioHost         string
	RadioPort         int
	RadioRetryMin     time.Duration
	RadioRetryMax     time.Duration

	MaxPacketsPerNode int // spec.md §4.1 retention bound, default 1000

	TopologySweepInterval time.Duration // spec.md §4.4, default 5min
	TopologyStaleTimeout  time.Duration // spec.md §4.4, default 60min

	TracerouteIntervalMin    time.Duration // spec.md §4.5, default 30min
	TracerouteActiveThreshold time.Duration // default 60min
	TracerouteAgeHours       time.Duration // default 4h
	TracerouteMaxPerCycle    int           // default 5
	TracerouteDelaySeconds   time.Duration // default 10s
	TracerouteHopLimit       int           // default 7
	AttemptTimeoutSeconds    time.Duration // default 120s, shared with telemetry

	TelemetryIntervalMin      time.Duration // spec.md §4.6, default 15min
	TelemetryActiveThreshold  time.Duration // default 120min
	TelemetryRequestAgeHours  time.Duration // default 2h
	TelemetryMaxPerCycle      int           // default 10
	TelemetryDelaySeconds     time.Duration // default 5s
	SkipNodesWithRecentTraceroute bool     // default true
	SkipTracerouteAgeHours    time.Duration // default 4h, reused from traceroute section

	UploadEnabled  bool
	UploadURL      string
	UploadInterval time.Duration // default 2h, matches lookback window
	UploadLookback time.Duration // default 2h
	CollectorID    string

	JWTSecret string
	TokenTTL  time.Duration

	Title    string
	Subtitle string

	ShutdownTimeout time.Duration // default 5s, spec.md §8 "bounded wait"
}

// Load reads configuration from an optional file plus environment variable
// overrides, following backend/config/config.go's Viper wiring: SetDefault
// for every tunable, optional SetConfigFile, AutomaticEnv with "." -> "_".
func Load(configPath ...string) Config {
	viper.SetDefault("port", "8090")
	viper.SetDefault("db_path", "data/loranexus.db")

	viper.SetDefault("radio_host", "127.0.0.1")
	viper.SetDefault("radio_port", 4403)
	viper.SetDefault("radio_retry_min", "5s")
	viper.SetDefault("radio_retry_max", "60s")

	viper.SetDefault("max_packets_per_node", 1000)

	viper.SetDefault("topology_sweep_interval", "5m")
	viper.SetDefault("topology_stale_timeout", "60m")

	viper.SetDefault("traceroute_interval_min", "30m")
	viper.SetDefault("traceroute_active_threshold", "60m")
	viper.SetDefault("traceroute_age_hours", "4h")
	viper.SetDefault("traceroute_max_per_cycle", 5)
	viper.SetDefault("traceroute_delay_seconds", "10s")
	viper.SetDefault("traceroute_hop_limit", 7)
	viper.SetDefault("attempt_timeout_seconds", "120s")

	viper.SetDefault("telemetry_interval_min", "15m")
	viper.SetDefault("telemetry_active_threshold", "120m")
	viper.SetDefault("telemetry_request_age_hours", "2h")
	viper.SetDefault("telemetry_max_per_cycle", 10)
	viper.SetDefault("telemetry_delay_seconds", "5s")
	viper.SetDefault("skip_nodes_with_recent_traceroute", true)
	viper.SetDefault("skip_traceroute_age_hours", "4h")

	viper.SetDefault("upload_enabled", false)
	viper.SetDefault("upload_url", "")
	viper.SetDefault("upload_interval", "2h")
	viper.SetDefault("upload_lookback", "2h")
	viper.SetDefault("collector_id", "loranexus-collector")

	viper.SetDefault("jwt_secret", "dev-secret-change-me")
	viper.SetDefault("token_ttl_seconds", 86400)

	viper.SetDefault("title", "LoraNexus")
	viper.SetDefault("subtitle", "")

	viper.SetDefault("shutdown_timeout", "5s")

	if len(configPath) > 0 && configPath[0] != "" {
		viper.SetConfigFile(configPath[0])
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("data")
		viper.AddConfigPath("$HOME/.loranexus")
		viper.AddConfigPath("/etc/loranexus")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("no config file found, using defaults and environment variables")
		} else {
			log.Printf("error reading config file: %v", err)
		}
	} else {
		log.Printf("using config file: %s", viper.ConfigFileUsed())
	}

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := Config{
		Port:   viper.GetString("port"),
		DBPath: viper.GetString("db_path"),

		RadioHost:     viper.GetString("radio_host"),
		RadioPort:     viper.GetInt("radio_port"),
		RadioRetryMin: viper.GetDuration("radio_retry_min"),
		RadioRetryMax: viper.GetDuration("radio_retry_max"),

		MaxPacketsPerNode: viper.GetInt("max_packets_per_node"),

		TopologySweepInterval: viper.GetDuration("topology_sweep_interval"),
		TopologyStaleTimeout:  viper.GetDuration("topology_stale_timeout"),

		TracerouteIntervalMin:     viper.GetDuration("traceroute_interval_min"),
		TracerouteActiveThreshold: viper.GetDuration("traceroute_active_threshold"),
		TracerouteAgeHours:        viper.GetDuration("traceroute_age_hours"),
		TracerouteMaxPerCycle:     viper.GetInt("traceroute_max_per_cycle"),
		TracerouteDelaySeconds:    viper.GetDuration("traceroute_delay_seconds"),
		TracerouteHopLimit:        viper.GetInt("traceroute_hop_limit"),
		AttemptTimeoutSeconds:     viper.GetDuration("attempt_timeout_seconds"),

		TelemetryIntervalMin:          viper.GetDuration("telemetry_interval_min"),
		TelemetryActiveThreshold:      viper.GetDuration("telemetry_active_threshold"),
		TelemetryRequestAgeHours:      viper.GetDuration("telemetry_request_age_hours"),
		TelemetryMaxPerCycle:          viper.GetInt("telemetry_max_per_cycle"),
		TelemetryDelaySeconds:         viper.GetDuration("telemetry_delay_seconds"),
		SkipNodesWithRecentTraceroute: viper.GetBool("skip_nodes_with_recent_traceroute"),
		SkipTracerouteAgeHours:        viper.GetDuration("skip_traceroute_age_hours"),

		UploadEnabled:  viper.GetBool("upload_enabled"),
		UploadURL:      viper.GetString("upload_url"),
		UploadInterval: viper.GetDuration("upload_interval"),
		UploadLookback: viper.GetDuration("upload_lookback"),
		CollectorID:    viper.GetString("collector_id"),

		JWTSecret: viper.GetString("jwt_secret"),
		TokenTTL:  time.Duration(viper.GetInt("token_ttl_seconds")) * time.Second,

		Title:    viper.GetString("title"),
		Subtitle: viper.GetString("subtitle"),

		ShutdownTimeout: viper.GetDuration("shutdown_timeout"),
	}

	if err := os.MkdirAll(dirOf(cfg.DBPath), 0o755); err != nil {
		log.Printf("warning: unable to create data dir: %v", err)
	}

	return cfg
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// SaveExampleConfig writes a commented example config.yaml, matching
// backend/config/config.go's SaveExampleConfig shape.
func SaveExampleConfig(path string) error {
	example := `# loranexus configuration file (YAML)
# Environment variables override these values ("." -> "_", e.g. RADIO_HOST)

port: 8090
db_path: data/loranexus.db

radio_host: 127.0.0.1
radio_port: 4403
radio_retry_min: 5s
radio_retry_max: 60s

max_packets_per_node: 1000

topology_sweep_interval: 5m
topology_stale_timeout: 60m

traceroute_interval_min: 30m
traceroute_active_threshold: 60m
traceroute_age_hours: 4h
traceroute_max_per_cycle: 5
traceroute_delay_seconds: 10s
traceroute_hop_limit: 7
attempt_timeout_seconds: 120s

telemetry_interval_min: 15m
telemetry_active_threshold: 120m
telemetry_request_age_hours: 2h
telemetry_max_per_cycle: 10
telemetry_delay_seconds: 5s
skip_nodes_with_recent_traceroute: true
skip_traceroute_age_hours: 4h

upload_enabled: false
upload_url: ""
upload_interval: 2h
upload_lookback: 2h
collector_id: loranexus-collector

jwt_secret: change-me-in-production
token_ttl_seconds: 86400

title: LoraNexus
subtitle: ""

shutdown_timeout: 5s
`
	return os.WriteFile(path, []byte(example), 0o644)
}
