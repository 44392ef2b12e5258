// Package config holds viewd's per-concern option structs and the JSON
// loader that builds them from a config file, following the teacher's
// "UserXConfig overrides defaults" idiom (internal/config/provider.go):
// every field a user didn't set keeps its zero-downtime default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StoreOptions configures the Versioned Store Client.
type StoreOptions struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	DB           int    `json:"db"`
	PoolSize     int    `json:"pool_size"`
	MinIdleConns int    `json:"min_idle_conns"`
	DialTimeout  int    `json:"dial_timeout_seconds"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// PoolOptions configures the Worker Pool.
type PoolOptions struct {
	Capacity           int `json:"capacity"`
	CallTimeoutSeconds int `json:"call_timeout_seconds"`
}

// LogOptions configures structured logging.
type LogOptions struct {
	Level        string `json:"level"`
	FilePath     string `json:"file_path"`
	EnableCaller bool   `json:"enable_caller"`
	MaxSizeMB    int    `json:"max_size_mb"`
	MaxBackups   int    `json:"max_backups"`
	MaxAgeDays   int    `json:"max_age_days"`
}

// AppConfig is the full set of user-overridable options, as loaded from a
// JSON config file by Load.
type AppConfig struct {
	Store *StoreOptions `json:"store"`
	Pool  *PoolOptions  `json:"pool"`
	Log   *LogOptions   `json:"log"`
}

// Options is the fully resolved, defaults-applied configuration the rest
// of the service is built from.
type Options struct {
	Store StoreOptions
	Pool  PoolOptions
	Log   LogOptions
}

// New merges user into the default options, leaving every field user
// didn't set at its default. user may be nil.
func New(user *AppConfig) *Options {
	opts := &Options{
		Store: StoreOptions{
			Addr:         "localhost:6379",
			DB:           0,
			PoolSize:     20,
			MinIdleConns: 5,
			DialTimeout:  5,
			ReadTimeout:  3,
			WriteTimeout: 3,
		},
		Pool: PoolOptions{
			Capacity:           10,
			CallTimeoutSeconds: 5,
		},
		Log: LogOptions{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}

	if user == nil {
		return opts
	}
	if user.Store != nil {
		applyStoreOverrides(&opts.Store, user.Store)
	}
	if user.Pool != nil {
		applyPoolOverrides(&opts.Pool, user.Pool)
	}
	if user.Log != nil {
		applyLogOverrides(&opts.Log, user.Log)
	}
	return opts
}

func applyStoreOverrides(dst *StoreOptions, src *StoreOptions) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	dst.DB = src.DB
	if src.PoolSize > 0 {
		dst.PoolSize = src.PoolSize
	}
	if src.MinIdleConns > 0 {
		dst.MinIdleConns = src.MinIdleConns
	}
	if src.DialTimeout > 0 {
		dst.DialTimeout = src.DialTimeout
	}
	if src.ReadTimeout > 0 {
		dst.ReadTimeout = src.ReadTimeout
	}
	if src.WriteTimeout > 0 {
		dst.WriteTimeout = src.WriteTimeout
	}
}

func applyPoolOverrides(dst *PoolOptions, src *PoolOptions) {
	if src.Capacity > 0 {
		dst.Capacity = src.Capacity
	}
	if src.CallTimeoutSeconds > 0 {
		dst.CallTimeoutSeconds = src.CallTimeoutSeconds
	}
}

func applyLogOverrides(dst *LogOptions, src *LogOptions) {
	if src.Level != "" {
		dst.Level = src.Level
	}
	if src.FilePath != "" {
		dst.FilePath = src.FilePath
	}
	dst.EnableCaller = src.EnableCaller
	if src.MaxSizeMB > 0 {
		dst.MaxSizeMB = src.MaxSizeMB
	}
	if src.MaxBackups > 0 {
		dst.MaxBackups = src.MaxBackups
	}
	if src.MaxAgeDays > 0 {
		dst.MaxAgeDays = src.MaxAgeDays
	}
}

// CallTimeout returns Pool.CallTimeoutSeconds as a time.Duration.
func (o *Options) CallTimeout() time.Duration {
	return time.Duration(o.Pool.CallTimeoutSeconds) * time.Second
}

// Load reads path as JSON and returns fully-resolved Options. A missing
// path is not an error: it returns pure defaults, matching a first-run
// deployment with no config file yet.
func Load(path string) (*Options, error) {
	if path == "" {
		return New(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var user AppConfig
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return New(&user), nil
}
