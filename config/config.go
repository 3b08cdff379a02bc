package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Blobs     BlobConfig      `yaml:"blobs" toml:"blobs"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Users     []User          `yaml:"users" toml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port" toml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, text
}

// StoreConfig selects the record backend: memory, file or sqlite.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// BlobConfig selects where document payloads live: memory or minio.
type BlobConfig struct {
	Driver string      `yaml:"driver" toml:"driver"`
	Minio  MinioConfig `yaml:"minio" toml:"minio"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	AccessKey  string `yaml:"access_key" toml:"access_key"`
	SecretKey  string `yaml:"secret_key" toml:"secret_key"`
	Bucket     string `yaml:"bucket" toml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl" toml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days" toml:"expire_days"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours" toml:"token_expire_hours"`
}

type RateLimitConfig struct {
	Requests      int `yaml:"requests" toml:"requests"`
	WindowSeconds int `yaml:"window_seconds" toml:"window_seconds"`
}

// User roles
const (
	RoleEditor   = "editor"
	RoleReviewer = "reviewer"
)

type User struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	Role     string `yaml:"role" toml:"role"`
}

// Load reads a YAML or TOML file (chosen by extension) and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration suitable for local use: everything in memory.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Path == "" {
		switch c.Store.Driver {
		case "file":
			c.Store.Path = "data/contratos.json"
		case "sqlite":
			c.Store.Path = "data/contratos.db"
		}
	}
	if c.Blobs.Driver == "" {
		c.Blobs.Driver = "memory"
	}
	if c.Blobs.Minio.ExpireDays == 0 {
		c.Blobs.Minio.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = RoleEditor
		}
	}
}

// Validate rejects unknown drivers and incomplete minio settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "sqlite":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Blobs.Driver {
	case "memory":
	case "minio":
		if c.Blobs.Minio.Endpoint == "" || c.Blobs.Minio.Bucket == "" {
			return fmt.Errorf("minio blobs need endpoint and bucket")
		}
	default:
		return fmt.Errorf("unknown blobs driver %q", c.Blobs.Driver)
	}
	for _, u := range c.Users {
		if u.Role != RoleEditor && u.Role != RoleReviewer {
			return fmt.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
