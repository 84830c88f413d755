package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	ClickHouse   ClickHouseConfig   `yaml:"clickhouse"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Cycles       CyclesConfig       `yaml:"cycles"`
	Autonomy     AutonomyConfig     `yaml:"autonomy"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Neural       NeuralConfig       `yaml:"neural"`
}

type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

type KafkaConfig struct {
	Brokers       []string          `yaml:"brokers"`
	Topics        map[string]string `yaml:"topics"`
	ConsumerGroup string            `yaml:"consumer_group"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type TelemetryConfig struct {
	InteractionCap  int           `yaml:"interaction_cap"`
	EngagementCap   int           `yaml:"engagement_cap"`
	PerformanceCap  int           `yaml:"performance_cap"`
	AnalysisWindow  time.Duration `yaml:"analysis_window"`
	HeatmapGridSize int           `yaml:"heatmap_grid_size"`
}

type CyclesConfig struct {
	Fast     time.Duration `yaml:"fast"`
	Standard time.Duration `yaml:"standard"`
	Deep     time.Duration `yaml:"deep"`
}

type AutonomyConfig struct {
	Level string `yaml:"level"`
}

type CollaboratorConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	MaxChangesPerHour int `yaml:"max_changes_per_hour"`
	HistoryCap        int `yaml:"history_cap"`
}

type NeuralConfig struct {
	PlasticityRate float64       `yaml:"plasticity_rate"`
	DecayRate      float64       `yaml:"decay_rate"`
	TickInterval   time.Duration `yaml:"tick_interval"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns a config with every default applied, for embedding
// the controller without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with production defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8090
	}
	if cfg.Telemetry.InteractionCap == 0 {
		cfg.Telemetry.InteractionCap = 10000
	}
	if cfg.Telemetry.EngagementCap == 0 {
		cfg.Telemetry.EngagementCap = 10000
	}
	if cfg.Telemetry.PerformanceCap == 0 {
		cfg.Telemetry.PerformanceCap = 5000
	}
	if cfg.Telemetry.AnalysisWindow == 0 {
		cfg.Telemetry.AnalysisWindow = 5 * time.Minute
	}
	if cfg.Telemetry.HeatmapGridSize == 0 {
		cfg.Telemetry.HeatmapGridSize = 50
	}
	if cfg.Cycles.Fast == 0 {
		cfg.Cycles.Fast = 5 * time.Minute
	}
	if cfg.Cycles.Standard == 0 {
		cfg.Cycles.Standard = 30 * time.Minute
	}
	if cfg.Cycles.Deep == 0 {
		cfg.Cycles.Deep = 24 * time.Hour
	}
	if cfg.Autonomy.Level == "" {
		cfg.Autonomy.Level = "medium"
	}
	if cfg.Collaborator.Model == "" {
		cfg.Collaborator.Model = "gpt-4o-mini"
	}
	if cfg.Collaborator.Timeout == 0 {
		cfg.Collaborator.Timeout = 30 * time.Second
	}
	if cfg.RateLimit.MaxChangesPerHour == 0 {
		cfg.RateLimit.MaxChangesPerHour = 3
	}
	if cfg.RateLimit.HistoryCap == 0 {
		cfg.RateLimit.HistoryCap = 100
	}
	if cfg.Neural.PlasticityRate == 0 {
		cfg.Neural.PlasticityRate = 0.1
	}
	if cfg.Neural.DecayRate == 0 {
		cfg.Neural.DecayRate = 0.05
	}
	if cfg.Neural.TickInterval == 0 {
		cfg.Neural.TickInterval = 30 * time.Second
	}
	if cfg.ClickHouse.MaxOpenConns == 0 {
		cfg.ClickHouse.MaxOpenConns = 10
	}
	if cfg.ClickHouse.MaxIdleConns == 0 {
		cfg.ClickHouse.MaxIdleConns = 5
	}
}
