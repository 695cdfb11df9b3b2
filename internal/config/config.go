// Package config loads the gostego server configuration from TOML.
//
// Values are layered: built-in defaults, then keys present in the file,
// then environment overrides. Keys absent from the file leave defaults
// untouched.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override file values.
const (
	EnvSealKey   = "GOSTEGO_SEAL_KEY"
	EnvJWTSecret = "GOSTEGO_JWT_SECRET"
)

// Roles understood by the server.
const (
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
	RoleUser   = "user"
)

// Config is the resolved server configuration.
type Config struct {
	Listen      string
	JWTSecret   string
	TokenTTL    time.Duration
	SealKey     string // hex, 32 bytes
	MaxUploadMB int64
	Log         LogConfig
	Users       []User
}

// LogConfig controls logger output.
type LogConfig struct {
	Level      string
	File       string // empty logs to the console
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// User is a statically configured account.
type User struct {
	Username     string
	PasswordHash string // bcrypt
	Role         string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:      ":8080",
		TokenTTL:    12 * time.Hour,
		MaxUploadMB: 20,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

type fileConfig struct {
	Listen      string     `toml:"listen"`
	JWTSecret   string     `toml:"jwt_secret"`
	TokenTTL    string     `toml:"token_ttl"`
	SealKey     string     `toml:"seal_key"`
	MaxUploadMB int64      `toml:"max_upload_mb"`
	Log         fileLog    `toml:"log"`
	Users       []fileUser `toml:"users"`
}

type fileLog struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type fileUser struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
	Role         string `toml:"role"`
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("jwt_secret") {
		cfg.JWTSecret = raw.JWTSecret
	}
	if meta.IsDefined("token_ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TokenTTL))
		if err != nil {
			return fmt.Errorf("parse token_ttl: %w", err)
		}
		cfg.TokenTTL = d
	}
	if meta.IsDefined("seal_key") {
		cfg.SealKey = strings.TrimSpace(raw.SealKey)
	}
	if meta.IsDefined("max_upload_mb") {
		cfg.MaxUploadMB = raw.MaxUploadMB
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
	}

	for _, u := range raw.Users {
		cfg.Users = append(cfg.Users, User{
			Username:     strings.TrimSpace(u.Username),
			PasswordHash: strings.TrimSpace(u.PasswordHash),
			Role:         strings.ToLower(strings.TrimSpace(u.Role)),
		})
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvSealKey); ok {
		cfg.SealKey = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvJWTSecret); ok {
		cfg.JWTSecret = v
	}
}

// Validate checks invariants that do not depend on secrets being present;
// the server checks for a seal key and JWT secret when it starts.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("users[%d]: username is empty", i)
		}
		if _, dup := seen[u.Username]; dup {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = struct{}{}
		if !ValidRole(u.Role) {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		if u.PasswordHash == "" {
			return fmt.Errorf("users[%d]: password_hash is empty", i)
		}
	}
	return nil
}

// ValidRole reports whether role is one the server recognizes.
func ValidRole(role string) bool {
	switch role {
	case RoleDoctor, RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}
