package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

const (
	BodyShapeFlat   = "flat"
	BodyShapeNested = "nested"

	DedupeMemory = "memory"
	DedupeRedis  = "redis"

	AgentIDPlaceholder = "{agent_id}"
)

// ---- Root ----

type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Routing     RoutingConfig     `mapstructure:"routing"`
	Dedupe      DedupeConfig      `mapstructure:"dedupe"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Cloud       CloudConfig       `mapstructure:"cloud"`
	Bootstrap   BootstrapConfig   `mapstructure:"bootstrap"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // optional, appended to stdout
}

type CredentialsConfig struct {
	KeysFile string `mapstructure:"keys_file"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type AgentConfig struct {
	Endpoint    string        `mapstructure:"endpoint"` // must contain {agent_id}
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BodyShape   string        `mapstructure:"body_shape"` // flat | nested
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

// RoutingConfig holds the message prefix of each of the three agents.
type RoutingConfig struct {
	Winston string `mapstructure:"winston"`
	Gates   string `mapstructure:"gates"`
	Lexia   string `mapstructure:"lexia"`
}

type DedupeConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Backend    string        `mapstructure:"backend"` // memory | redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	CommandsTopic  string        `mapstructure:"commands_topic"`
	GroupID        string        `mapstructure:"group_id"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether the command queue is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

type RelayConfig struct {
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CloudConfig endpoints are API base paths ending in "/"; empty means the
// client library default.
type CloudConfig struct {
	CalendarEndpoint string        `mapstructure:"calendar_endpoint"`
	DriveEndpoint    string        `mapstructure:"drive_endpoint"`
	GmailEndpoint    string        `mapstructure:"gmail_endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type BootstrapConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Pause    time.Duration `mapstructure:"pause"`
}

// Load reads embedded defaults, merges user YAML (if the file exists), and applies env overrides (APIHUB_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.MergeInConfig(); err != nil {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	// env override (APIHUB_AGENT_TIMEOUT -> agent.timeout)
	v.SetEnvPrefix("APIHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate returns the first invalid setting it finds.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return errors.New("http.addr is required")
	}
	if !strings.Contains(c.Agent.Endpoint, AgentIDPlaceholder) {
		return fmt.Errorf("agent.endpoint must contain %s", AgentIDPlaceholder)
	}
	if c.Agent.Timeout <= 0 {
		return errors.New("agent.timeout must be positive")
	}
	if c.Agent.MaxAttempts < 1 {
		return errors.New("agent.max_attempts must be at least 1")
	}
	switch c.Agent.BodyShape {
	case BodyShapeFlat, BodyShapeNested:
	default:
		return fmt.Errorf("agent.body_shape %q is not one of flat, nested", c.Agent.BodyShape)
	}
	if c.Dedupe.Enabled {
		switch c.Dedupe.Backend {
		case DedupeMemory, DedupeRedis:
		default:
			return fmt.Errorf("dedupe.backend %q is not one of memory, redis", c.Dedupe.Backend)
		}
	}
	if c.Kafka.Enabled() && strings.TrimSpace(c.Kafka.CommandsTopic) == "" {
		return errors.New("kafka.commands_topic is required when brokers are set")
	}
	return nil
}
