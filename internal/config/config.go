package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	HTTPAddr          string        `mapstructure:"http_addr" yaml:"http_addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxClients        int           `mapstructure:"max_clients" yaml:"max_clients"`
	MaxChannels       int           `mapstructure:"max_channels" yaml:"max_channels"`
	DefaultChannel    string        `mapstructure:"default_channel" yaml:"default_channel"`
	WriteAttempts     int           `mapstructure:"write_attempts" yaml:"write_attempts"`
	WriteRetryBackoff time.Duration `mapstructure:"write_retry_backoff" yaml:"write_retry_backoff"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	OutboundQueue     int           `mapstructure:"outbound_queue" yaml:"outbound_queue"`
	KickDisconnects   bool          `mapstructure:"kick_disconnects" yaml:"kick_disconnects"`
	RateLimitPerSec   float64       `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	MaxLineBytes      int           `mapstructure:"max_line_bytes" yaml:"max_line_bytes"`
	AuditDBPath       string        `mapstructure:"audit_db_path" yaml:"audit_db_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":1234",
		HTTPAddr:          ":8080",
		LogLevel:          "info",
		MaxClients:        10,
		MaxChannels:       10,
		DefaultChannel:    "&default",
		WriteAttempts:     5,
		WriteRetryBackoff: 10 * time.Millisecond,
		WriteTimeout:      10 * time.Second,
		OutboundQueue:     64,
		RateLimitPerSec:   20,
		RateLimitBurst:    40,
		MaxLineBytes:      4096,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.HTTPAddr != "" {
		c.HTTPAddr = other.HTTPAddr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxClients != 0 {
		c.MaxClients = other.MaxClients
	}
	if other.MaxChannels != 0 {
		c.MaxChannels = other.MaxChannels
	}
	if other.DefaultChannel != "" {
		c.DefaultChannel = other.DefaultChannel
	}
	if other.WriteAttempts != 0 {
		c.WriteAttempts = other.WriteAttempts
	}
	if other.WriteRetryBackoff != 0 {
		c.WriteRetryBackoff = other.WriteRetryBackoff
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.OutboundQueue != 0 {
		c.OutboundQueue = other.OutboundQueue
	}
	if other.KickDisconnects {
		c.KickDisconnects = true
	}
	if other.RateLimitPerSec != 0 {
		c.RateLimitPerSec = other.RateLimitPerSec
	}
	if other.RateLimitBurst != 0 {
		c.RateLimitBurst = other.RateLimitBurst
	}
	if other.MaxLineBytes != 0 {
		c.MaxLineBytes = other.MaxLineBytes
	}
	if other.AuditDBPath != "" {
		c.AuditDBPath = other.AuditDBPath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}

// Validate rejects values the hub cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxClients < 2 {
		errs = append(errs, fmt.Errorf("max_clients must be at least 2, got %d", c.MaxClients))
	}
	if c.MaxChannels < 1 {
		errs = append(errs, fmt.Errorf("max_channels must be at least 1, got %d", c.MaxChannels))
	}
	if c.WriteAttempts < 1 {
		errs = append(errs, fmt.Errorf("write_attempts must be at least 1, got %d", c.WriteAttempts))
	}
	if c.OutboundQueue < 1 {
		errs = append(errs, fmt.Errorf("outbound_queue must be at least 1, got %d", c.OutboundQueue))
	}
	if c.MaxLineBytes < 64 {
		errs = append(errs, fmt.Errorf("max_line_bytes must be at least 64, got %d", c.MaxLineBytes))
	}
	if !core.ValidChannelName(c.DefaultChannel) {
		errs = append(errs, fmt.Errorf("default_channel %q is not a valid channel name", c.DefaultChannel))
	}
	return errors.Join(errs...)
}
