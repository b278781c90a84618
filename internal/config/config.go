// Package config loads process settings: built-in defaults, an optional YAML
// file, .env files, then CHEMLAB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"chemlab/internal/blob"
	"chemlab/internal/store"
)

const EnvPrefix = "CHEMLAB_"

// DotEnvFiles are read in order; values already in the environment win.
var DotEnvFiles = []string{".env", "chemlab.env"}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Blob   BlobConfig   `yaml:"blob"`
	Log    LogConfig    `yaml:"log"`
	Chat   ChatConfig   `yaml:"chat"`
	Timer  TimerConfig  `yaml:"timer"`
	Upload UploadConfig `yaml:"upload"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Engine string `yaml:"engine" validate:"oneof=memory json sqlite postgres"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn" validate:"required_if=Engine postgres"`
}

type BlobConfig struct {
	Engine string         `yaml:"engine" validate:"oneof=local cos"`
	Dir    string         `yaml:"dir"`
	COS    blob.COSConfig `yaml:"cos"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type ChatConfig struct {
	EmbedURL  string          `yaml:"embed_url" validate:"omitempty,url"`
	Assistant AssistantConfig `yaml:"assistant"`
}

type AssistantConfig struct {
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Enabled reports whether the remote assistant should be wired in.
func (a AssistantConfig) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

type TimerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" validate:"min=1"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Store:  StoreConfig{Engine: store.EngineSQLite},
		Blob:   BlobConfig{Engine: blob.EngineLocal, Dir: "data/uploads"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Chat: ChatConfig{
			Assistant: AssistantConfig{Timeout: 20 * time.Second},
		},
		Timer:  TimerConfig{TickInterval: time.Second},
		Upload: UploadConfig{MaxBytes: 10 << 20},
	}
}

// Load builds the config. path may be empty; CHEMLAB_CONFIG is consulted
// after the .env files are read.
func Load(path string) (Config, error) {
	if err := loadDotEnv(DotEnvFiles...); err != nil {
		return Config{}, err
	}
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("HOST", &c.Server.Host)
	num("PORT", &c.Server.Port)
	str("STORE", &c.Store.Engine)
	str("DATA_FILE", &c.Store.Path)
	str("POSTGRES_DSN", &c.Store.DSN)
	str("BLOB", &c.Blob.Engine)
	str("BLOB_DIR", &c.Blob.Dir)
	str("COS_SECRET_ID", &c.Blob.COS.SecretID)
	str("COS_SECRET_KEY", &c.Blob.COS.SecretKey)
	str("COS_BUCKET", &c.Blob.COS.Bucket)
	str("COS_REGION", &c.Blob.COS.Region)
	str("COS_PREFIX", &c.Blob.COS.Prefix)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("CHAT_EMBED_URL", &c.Chat.EmbedURL)
	str("LLM_BASE_URL", &c.Chat.Assistant.BaseURL)
	str("LLM_API_KEY", &c.Chat.Assistant.APIKey)
	str("LLM_MODEL", &c.Chat.Assistant.Model)
	dur("LLM_TIMEOUT", &c.Chat.Assistant.Timeout)
	dur("TIMER_TICK", &c.Timer.TickInterval)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	return errors.Join(errs...)
}

func (c *Config) fillDerived() {
	c.Store.Engine = strings.ToLower(strings.TrimSpace(c.Store.Engine))
	c.Blob.Engine = strings.ToLower(strings.TrimSpace(c.Blob.Engine))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Store.Path == "" {
		c.Store.Path = DefaultDataFile(c.Store.Engine)
	}
	if c.Timer.TickInterval <= 0 {
		c.Timer.TickInterval = time.Second
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr joins host and port for net/http.
func (c Config) Addr() string {
	if c.Server.Host == "" {
		return fmt.Sprintf(":%d", c.Server.Port)
	}
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func DefaultDataFile(engine string) string {
	switch engine {
	case store.EngineJSON:
		return "data/chemlab.json"
	default:
		return "data/chemlab.db"
	}
}
