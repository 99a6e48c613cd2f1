package config

import (
	"fmt"
	"os"
	"time"

	"codearena/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:8080"
	DefaultTimeout        = 10 * time.Second
	DefaultTokenStatePath = "configs/arena_state.json"
	DefaultCodePath       = "configs/arena_code.zst"
	DefaultDebounce       = 2 * time.Second
	DefaultRedirectDelay  = 3 * time.Second
	DefaultProblemTTL     = 10 * time.Minute
	DefaultEmptyTTL       = 30 * time.Second
	DefaultLocalCacheSize = 256
	DefaultRelayAddr      = ":8090"

	StorageFile  = "file"
	StorageRedis = "redis"

	NotifyMemory    = "memory"
	NotifyWebSocket = "websocket"
	NotifyKafka     = "kafka"
)

// Config holds the arena client configuration.
type Config struct {
	Logger     logger.Config `yaml:"logger"`
	Judge      JudgeConfig   `yaml:"judge"`
	Storage    StorageConfig `yaml:"storage"`
	Problems   ProblemConfig `yaml:"problems"`
	Notify     NotifyConfig  `yaml:"notify"`
	Session    SessionConfig `yaml:"session"`
	Relay      RelayConfig   `yaml:"relay"`
	PrettyJSON *bool         `yaml:"prettyJSON"`
}

// JudgeConfig points at the judge backend.
type JudgeConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	TokenStatePath string        `yaml:"tokenStatePath"`
}

// StorageConfig selects where drafts are kept.
type StorageConfig struct {
	Driver   string        `yaml:"driver"` // file, redis
	FilePath string        `yaml:"filePath"`
	Debounce time.Duration `yaml:"debounce"`
	Redis    RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProblemConfig controls the problem statement cache. Redis storage caches in redis,
// file storage in an in-process LRU of LocalSize entries.
type ProblemConfig struct {
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	EmptyTTL  time.Duration `yaml:"emptyTTL"`
	LocalSize int           `yaml:"localSize"`
}

// NotifyConfig selects the match notification channel.
type NotifyConfig struct {
	Driver       string        `yaml:"driver"` // memory, websocket, kafka
	WebSocketURL string        `yaml:"websocketURL"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupPrefix  string        `yaml:"groupPrefix"`
	EventTTL     time.Duration `yaml:"eventTTL"`
}

type SessionConfig struct {
	RedirectDelay time.Duration `yaml:"redirectDelay"`
}

type RelayConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file failed: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// Validate checks driver selections and their required settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageFile:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Notify.Driver {
	case NotifyMemory:
	case NotifyWebSocket:
		if c.Notify.WebSocketURL == "" {
			return fmt.Errorf("notify.websocketURL is required")
		}
	case NotifyKafka:
		if len(c.Notify.Brokers) == 0 {
			return fmt.Errorf("notify.brokers is required")
		}
	default:
		return fmt.Errorf("unknown notify driver %q", c.Notify.Driver)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "console"
	}
	if cfg.Judge.BaseURL == "" {
		cfg.Judge.BaseURL = DefaultBaseURL
	}
	if cfg.Judge.Timeout == 0 {
		cfg.Judge.Timeout = DefaultTimeout
	}
	if cfg.Judge.TokenStatePath == "" {
		cfg.Judge.TokenStatePath = DefaultTokenStatePath
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageFile
	}
	if cfg.Storage.FilePath == "" {
		cfg.Storage.FilePath = DefaultCodePath
	}
	if cfg.Storage.Debounce == 0 {
		cfg.Storage.Debounce = DefaultDebounce
	}
	if cfg.Problems.CacheTTL == 0 {
		cfg.Problems.CacheTTL = DefaultProblemTTL
	}
	if cfg.Problems.EmptyTTL == 0 {
		cfg.Problems.EmptyTTL = DefaultEmptyTTL
	}
	if cfg.Problems.LocalSize <= 0 {
		cfg.Problems.LocalSize = DefaultLocalCacheSize
	}
	if cfg.Notify.Driver == "" {
		cfg.Notify.Driver = NotifyMemory
	}
	if cfg.Session.RedirectDelay == 0 {
		cfg.Session.RedirectDelay = DefaultRedirectDelay
	}
	if cfg.Relay.Addr == "" {
		cfg.Relay.Addr = DefaultRelayAddr
	}
	if cfg.PrettyJSON == nil {
		value := true
		cfg.PrettyJSON = &value
	}
}
