package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	DataDir   string          `json:"data_dir"`
	Gateway   GatewayConfig   `json:"gateway"`
	Database  DatabaseConfig  `json:"database"`
	Cognition CognitionConfig `json:"cognition"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
	Channel  string `json:"channel"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CognitionConfig holds every tunable of the cognition pipeline.
// Zero values are replaced by defaults in Normalize.
type CognitionConfig struct {
	// Symbols and bindings.
	VectorDimension  int     `json:"vector_dimension"`
	VectorSparsity   int     `json:"vector_sparsity"`
	BindingIncrement float64 `json:"binding_increment"`
	BindingFloor     float64 `json:"binding_floor"`
	SymbolDecay      float64 `json:"symbol_decay"`

	// Memory.
	EpisodicCap          int     `json:"episodic_cap"`
	SemanticCap          int     `json:"semantic_cap"`
	GeneralCap           int     `json:"general_cap"`
	ConsolidationBatch   int     `json:"consolidation_batch"`
	ConsolidationShare   float64 `json:"consolidation_share"`
	ForgettingDecay      float64 `json:"forgetting_decay"`
	ForgettingFloor      float64 `json:"forgetting_floor"`
	StalenessWindowSecs  int     `json:"staleness_window_secs"`
	SnapshotRecordsLimit int     `json:"snapshot_records_limit"`

	// Patterns.
	ResonanceThreshold  float64 `json:"resonance_threshold"`
	LinkFloor           float64 `json:"link_floor"`
	ReinforcementFactor float64 `json:"reinforcement_factor"`
	BaseStrength        float64 `json:"base_strength"`
	NoveltyBonus        float64 `json:"novelty_bonus"`
	SingleShotBar       float64 `json:"single_shot_bar"`
	PatternDecay        float64 `json:"pattern_decay"`
	PatternFloor        float64 `json:"pattern_floor"`
	HierarchyLevels     int     `json:"hierarchy_levels"`

	// Behavior loops.
	CrystallizeThreshold float64 `json:"crystallize_threshold"`
	TriggerBar           float64 `json:"trigger_bar"`
	ActiveLoopCap        int     `json:"active_loop_cap"`
	ReinforceBonus       float64 `json:"reinforce_bonus"`
	LoopDecay            float64 `json:"loop_decay"`
	LoopFloor            float64 `json:"loop_floor"`

	// Curiosity.
	NoveltyThreshold float64 `json:"novelty_threshold"`
	CooldownSecs     int     `json:"cooldown_secs"`
	QueueCap         int     `json:"queue_cap"`
	CuriosityBoost   float64 `json:"curiosity_boost"`
	CuriosityFloor   float64 `json:"curiosity_floor"`
	CuriosityDecay   float64 `json:"curiosity_decay"`
	RecursionCap     int     `json:"recursion_cap"`

	// Identity.
	NarrativeCap    int     `json:"narrative_cap"`
	SignificanceBar float64 `json:"significance_bar"`

	// Sweep intervals.
	TickInterval        Duration `json:"tick_interval"`
	SymbolSweepEvery    Duration `json:"symbol_sweep_every"`
	ConsolidateEvery    Duration `json:"consolidate_every"`
	ForgetEvery         Duration `json:"forget_every"`
	PatternSweepEvery   Duration `json:"pattern_sweep_every"`
	LoopSweepEvery      Duration `json:"loop_sweep_every"`
	CuriositySweepEvery Duration `json:"curiosity_sweep_every"`
	ReflectEvery        Duration `json:"reflect_every"`

	// RNG seed for creative variation; 0 means time-derived.
	Seed int64 `json:"seed"`
}

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Cognition.Normalize()
	return &cfg, nil
}

// DefaultCognition returns the cognition tunables with all defaults applied.
func DefaultCognition() CognitionConfig {
	var c CognitionConfig
	c.Normalize()
	return c
}

// Normalize fills zero-valued tunables with their defaults.
func (c *CognitionConfig) Normalize() {
	def := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	defi := func(v *int, d int) {
		if *v == 0 {
			*v = d
		}
	}
	defd := func(v *Duration, d time.Duration) {
		if *v == 0 {
			*v = Duration(d)
		}
	}

	defi(&c.VectorDimension, 64)
	defi(&c.VectorSparsity, 8)
	// A vector cannot hold more non-zero components than it has dimensions.
	if c.VectorSparsity > c.VectorDimension {
		c.VectorSparsity = c.VectorDimension
	}
	def(&c.BindingIncrement, 0.1)
	def(&c.BindingFloor, 0.05)
	def(&c.SymbolDecay, 0.99)

	defi(&c.EpisodicCap, 500)
	defi(&c.SemanticCap, 1000)
	defi(&c.GeneralCap, 200)
	defi(&c.ConsolidationBatch, 50)
	def(&c.ConsolidationShare, 0.3)
	def(&c.ForgettingDecay, 0.95)
	def(&c.ForgettingFloor, 0.05)
	defi(&c.StalenessWindowSecs, 600)
	defi(&c.SnapshotRecordsLimit, 100)

	def(&c.ResonanceThreshold, 0.45)
	def(&c.LinkFloor, 0.25)
	def(&c.ReinforcementFactor, 1.1)
	def(&c.BaseStrength, 0.3)
	def(&c.NoveltyBonus, 0.2)
	def(&c.SingleShotBar, 0.8)
	def(&c.PatternDecay, 0.98)
	def(&c.PatternFloor, 0.05)
	defi(&c.HierarchyLevels, 3)

	def(&c.CrystallizeThreshold, 0.7)
	def(&c.TriggerBar, 0.6)
	defi(&c.ActiveLoopCap, 5)
	def(&c.ReinforceBonus, 0.05)
	def(&c.LoopDecay, 0.98)
	def(&c.LoopFloor, 0.05)

	def(&c.NoveltyThreshold, 0.5)
	defi(&c.CooldownSecs, 30)
	defi(&c.QueueCap, 20)
	def(&c.CuriosityBoost, 0.1)
	def(&c.CuriosityFloor, 0.2)
	def(&c.CuriosityDecay, 0.98)
	defi(&c.RecursionCap, 3)

	defi(&c.NarrativeCap, 50)
	def(&c.SignificanceBar, 0.5)

	defd(&c.TickInterval, time.Second)
	defd(&c.SymbolSweepEvery, 30*time.Second)
	defd(&c.ConsolidateEvery, time.Minute)
	defd(&c.ForgetEvery, time.Minute)
	defd(&c.PatternSweepEvery, time.Minute)
	defd(&c.LoopSweepEvery, time.Minute)
	defd(&c.CuriositySweepEvery, 15*time.Second)
	defd(&c.ReflectEvery, 2*time.Minute)
}
