package main

import (
	"fmt"
	"net"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultPort = "5000"

// Config holds the application configuration loaded from environment variables.
// All settings have defaults and can be overridden via env vars.
type Config struct {
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	Port      string `envconfig:"PORT" default:"5000"`
	StaticDir string `envconfig:"STATIC_DIR" default:"."`

	// Redis relay is disabled while RedisAddr is empty.
	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisDB      int    `envconfig:"REDIS_DB" default:"0"`
	RedisChannel string `envconfig:"REDIS_CHANNEL" default:"esp32_readings"`
}

// loadConfig reads the configuration from the environment.
func loadConfig() (Config, error) {
	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}
	// An exported but empty PORT still means the default.
	if conf.Port == "" {
		conf.Port = defaultPort
	}
	return conf, nil
}

// ListenAddr is the bind address: all interfaces on the configured port.
func (c Config) ListenAddr() string {
	return net.JoinHostPort("0.0.0.0", c.Port)
}

// RedisEnabled reports whether the Redis relay should be started.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// newLogger builds the process logger. Debug output is only emitted when
// debug mode is enabled.
func newLogger(debug bool) (*zap.Logger, error) {
	logConf := zap.NewProductionConfig()
	logConf.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logConf.DisableCaller = true
	if debug {
		logConf.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return logConf.Build()
}
