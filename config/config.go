// Package config loads the agent's settings: compiled-in defaults, then an
// optional YAML file, then VIMY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nstehr/vimy/vimy-terran/army"
	"github.com/nstehr/vimy/vimy-terran/minedrop"
	"github.com/nstehr/vimy/vimy-terran/reaper"
	"github.com/nstehr/vimy/vimy-terran/roles"
	"github.com/nstehr/vimy/vimy-terran/rules"
	"github.com/nstehr/vimy/vimy-terran/scout"
	"github.com/nstehr/vimy/vimy-terran/workerdefense"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

const envPrefix = "VIMY_"

type Config struct {
	Log           LogConfig           `koanf:"log"`
	Transport     TransportConfig     `koanf:"transport"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
	Journal       JournalConfig       `koanf:"journal"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	MineDrop      MineDropConfig      `koanf:"minedrop"`
	Reaper        ReaperConfig        `koanf:"reaper"`
	WorkerDefense WorkerDefenseConfig `koanf:"workerdefense"`
	Scout         ScoutConfig         `koanf:"scout"`
	Army          ArmyConfig          `koanf:"army"`
	Macro         MacroConfig         `koanf:"macro"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TransportConfig struct {
	Kind   string `koanf:"kind"` // unix, websocket
	Socket string `koanf:"socket"`
	URL    string `koanf:"url"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	SQLite  bool   `koanf:"sqlite"`
	JSONL   bool   `koanf:"jsonl"`
	Queue   int    `koanf:"queue"`
}

type CatalogConfig struct {
	// Path to a units YAML file replacing the embedded catalog.
	Path string `koanf:"path"`
}

type MineDropConfig struct {
	Trigger            string  `koanf:"trigger"`
	MinCargo           int     `koanf:"min_cargo"`
	ReadyLookahead     int     `koanf:"ready_lookahead"`
	TargetOffset       float64 `koanf:"target_offset"`
	HoldingOffset      float64 `koanf:"holding_offset"`
	DropSuccess        float64 `koanf:"drop_success"`
	HoldSuccess        float64 `koanf:"hold_success"`
	MinTransportHealth float64 `koanf:"min_transport_health"`
	Fallback           string  `koanf:"fallback"`
	MaxFormations      int     `koanf:"max_formations"`
}

type ReaperConfig struct {
	AttackThreshold  float64 `koanf:"attack_threshold"`
	RetreatThreshold float64 `koanf:"retreat_threshold"`
	ThreatRadius     float64 `koanf:"threat_radius"`
	GrenadeDelay     int     `koanf:"grenade_delay"`
	GrenadePathNodes int     `koanf:"grenade_path_nodes"`
	GrenadeRange     float64 `koanf:"grenade_range"`
	Defend           string  `koanf:"defend"`
}

type WorkerDefenseConfig struct {
	MaxDefenders   int     `koanf:"max_defenders"`
	MinHealth      float64 `koanf:"min_health"`
	NoiseThreshold int     `koanf:"noise_threshold"`
	KiteRadius     float64 `koanf:"kite_radius"`
}

type ScoutConfig struct {
	Enabled       bool    `koanf:"enabled"`
	StartSeconds  float64 `koanf:"start_seconds"`
	GraceSeconds  float64 `koanf:"grace_seconds"`
	ReleaseHealth float64 `koanf:"release_health"`
	MaxDistance   float64 `koanf:"max_distance"`
	WorkerRadius  float64 `koanf:"worker_radius"`
}

type ArmyConfig struct {
	RallyTolerance float64 `koanf:"rally_tolerance"`
	EngageRadius   float64 `koanf:"engage_radius"`
	SiegeSupply    float64 `koanf:"siege_supply"`
	DefenseOffset  float64 `koanf:"defense_offset"`
	SightRange     float64 `koanf:"sight_range"`
}

type MacroConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaults() map[string]any {
	md := minedrop.DefaultConfig()
	rp := reaper.DefaultConfig()
	wd := workerdefense.DefaultConfig()
	sc := scout.DefaultConfig()
	ar := army.DefaultConfig()
	return map[string]any{
		"log.level":  "info",
		"log.format": "text",

		"transport.kind":   "unix",
		"transport.socket": "/tmp/vimy-terran.sock",

		"telemetry.exporter": "none",

		"journal.enabled": false,
		"journal.dir":     "journal",
		"journal.sqlite":  true,
		"journal.jsonl":   true,
		"journal.queue":   1024,

		"minedrop.trigger":              md.Trigger,
		"minedrop.min_cargo":            md.MinCargo,
		"minedrop.ready_lookahead":      md.ReadyLookahead,
		"minedrop.target_offset":        md.TargetOffset,
		"minedrop.holding_offset":       md.HoldingOffset,
		"minedrop.drop_success":         md.DropSuccess,
		"minedrop.hold_success":         md.HoldSuccess,
		"minedrop.min_transport_health": md.MinTransportHealth,
		"minedrop.fallback":             md.Fallback.String(),
		"minedrop.max_formations":       md.MaxFormations,

		"reaper.attack_threshold":   rp.AttackThreshold,
		"reaper.retreat_threshold":  rp.RetreatThreshold,
		"reaper.threat_radius":      rp.ThreatRadius,
		"reaper.grenade_delay":      rp.GrenadeDelay,
		"reaper.grenade_path_nodes": rp.GrenadePathNodes,
		"reaper.grenade_range":      rp.GrenadeRange,
		"reaper.defend":             rp.Defend,

		"workerdefense.max_defenders":   wd.MaxDefenders,
		"workerdefense.min_health":      wd.MinHealth,
		"workerdefense.noise_threshold": wd.NoiseThreshold,
		"workerdefense.kite_radius":     wd.KiteRadius,

		"scout.enabled":        true,
		"scout.start_seconds":  sc.StartSeconds,
		"scout.grace_seconds":  sc.GraceSeconds,
		"scout.release_health": sc.ReleaseHealth,
		"scout.max_distance":   sc.MaxDistance,
		"scout.worker_radius":  sc.WorkerRadius,

		"army.rally_tolerance": ar.RallyTolerance,
		"army.engage_radius":   ar.EngageRadius,
		"army.siege_supply":    ar.SiegeSupply,
		"army.defense_offset":  ar.DefenseOffset,
		"army.sight_range":     ar.SightRange,

		"macro.enabled": true,
	}
}

// Load reads the layered configuration. An empty path skips the file
// layer. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// VIMY_REAPER_RETREAT_THRESHOLD -> reaper.retreat_threshold. Only the
	// first separator names the section; the rest belong to the key.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, invalid(format, args...))
		}
	}
	fraction := func(v float64) bool { return v > 0 && v <= 1 }

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, invalid("log.format %q", c.Log.Format))
	}

	switch c.Transport.Kind {
	case "unix":
		check(c.Transport.Socket != "", "transport.socket is required for unix")
	case "websocket":
		check(c.Transport.URL != "", "transport.url is required for websocket")
	default:
		errs = append(errs, invalid("transport.kind %q", c.Transport.Kind))
	}

	switch c.Telemetry.Exporter {
	case "none", "stdout":
	case "otlp":
		check(c.Telemetry.OTLPEndpoint != "", "telemetry.otlp_endpoint is required for otlp")
	default:
		errs = append(errs, invalid("telemetry.exporter %q", c.Telemetry.Exporter))
	}

	if c.Journal.Enabled {
		check(c.Journal.Dir != "", "journal.dir is required")
		check(c.Journal.Queue > 0, "journal.queue must be positive")
	}

	md := c.MineDrop
	check(md.MinCargo >= 1, "minedrop.min_cargo must be at least 1")
	check(md.ReadyLookahead >= 0, "minedrop.ready_lookahead must not be negative")
	check(md.DropSuccess > 0 && md.HoldSuccess > 0, "minedrop success distances must be positive")
	check(fraction(md.MinTransportHealth), "minedrop.min_transport_health must be in (0,1]")
	check(md.MaxFormations >= 1, "minedrop.max_formations must be at least 1")
	if _, err := roles.ParseRole(md.Fallback); err != nil {
		errs = append(errs, invalid("minedrop.fallback: %v", err))
	}
	if _, err := rules.CompileCondition(md.Trigger); err != nil {
		errs = append(errs, invalid("minedrop.trigger: %v", err))
	}

	rp := c.Reaper
	check(fraction(rp.AttackThreshold) && fraction(rp.RetreatThreshold), "reaper thresholds must be in (0,1]")
	check(rp.RetreatThreshold < rp.AttackThreshold, "reaper.retreat_threshold %.2f must be below attack_threshold %.2f", rp.RetreatThreshold, rp.AttackThreshold)
	check(rp.ThreatRadius > 0 && rp.GrenadeRange > 0, "reaper radii must be positive")
	check(rp.GrenadeDelay >= 0 && rp.GrenadePathNodes >= 1, "reaper grenade prediction needs a delay and at least one path node")
	if _, err := rules.CompileCondition(rp.Defend); err != nil {
		errs = append(errs, invalid("reaper.defend: %v", err))
	}

	wd := c.WorkerDefense
	check(wd.MaxDefenders >= 1, "workerdefense.max_defenders must be at least 1")
	check(fraction(wd.MinHealth), "workerdefense.min_health must be in (0,1]")
	check(wd.NoiseThreshold >= 0, "workerdefense.noise_threshold must not be negative")
	check(wd.KiteRadius > 0, "workerdefense.kite_radius must be positive")

	sc := c.Scout
	check(fraction(sc.ReleaseHealth), "scout.release_health must be in (0,1]")
	check(sc.MaxDistance > 0 && sc.WorkerRadius > 0, "scout radii must be positive")

	ar := c.Army
	check(ar.RallyTolerance > 0 && ar.EngageRadius > 0 && ar.SightRange > 0, "army radii must be positive")
	check(ar.SiegeSupply >= 0, "army.siege_supply must not be negative")

	return errors.Join(errs...)
}

// MineDropSettings converts the section; Validate has already vetted the
// fallback role.
func (c *Config) MineDropSettings() minedrop.Config {
	md := c.MineDrop
	fallback, err := roles.ParseRole(md.Fallback)
	if err != nil {
		fallback = minedrop.DefaultConfig().Fallback
	}
	return minedrop.Config{
		Trigger:            md.Trigger,
		MinCargo:           md.MinCargo,
		ReadyLookahead:     md.ReadyLookahead,
		TargetOffset:       md.TargetOffset,
		HoldingOffset:      md.HoldingOffset,
		DropSuccess:        md.DropSuccess,
		HoldSuccess:        md.HoldSuccess,
		MinTransportHealth: md.MinTransportHealth,
		Fallback:           fallback,
		MaxFormations:      md.MaxFormations,
	}
}

func (c *Config) ReaperSettings() reaper.Config {
	return reaper.Config(c.Reaper)
}

func (c *Config) WorkerDefenseSettings() workerdefense.Config {
	return workerdefense.Config(c.WorkerDefense)
}

func (c *Config) ScoutSettings() scout.Config {
	sc := c.Scout
	return scout.Config{
		StartSeconds:  sc.StartSeconds,
		GraceSeconds:  sc.GraceSeconds,
		ReleaseHealth: sc.ReleaseHealth,
		MaxDistance:   sc.MaxDistance,
		WorkerRadius:  sc.WorkerRadius,
	}
}

func (c *Config) ArmySettings() army.Config {
	return army.Config(c.Army)
}
