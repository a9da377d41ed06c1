package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration. Defaults suit a single-process
// deployment; every field can be overridden through the environment.
type Config struct {
	HTTP      HTTPConfig      `envPrefix:"RACEWAY_HTTP_"`
	WebSocket WebSocketConfig `envPrefix:"RACEWAY_WS_"`
	Match     MatchConfig     `envPrefix:"RACEWAY_MATCH_"`
	Database  DatabaseConfig  `envPrefix:"RACEWAY_DB_"`
	Log       LogConfig       `envPrefix:"RACEWAY_LOG_"`
}

type HTTPConfig struct {
	Host         string        `env:"HOST" envDefault:"0.0.0.0"`
	Port         int           `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`

	// AllowedOrigins is matched against the Origin header of upgrade and
	// API requests. Empty means allow any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
}

type WebSocketConfig struct {
	PingInterval time.Duration `env:"PING_INTERVAL" envDefault:"30s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"5s"`
	BufferSize   int           `env:"BUFFER_SIZE" envDefault:"100"`
}

// MatchConfig holds the matchmaking and room lifecycle tunables.
type MatchConfig struct {
	// MinPlayersToStart is how many queued players form a room.
	MinPlayersToStart int `env:"MIN_PLAYERS_TO_START" envDefault:"2"`

	// MinPlayersReady is how many ready members the join-timeout needs to
	// force-start the countdown instead of failing the match.
	MinPlayersReady int `env:"MIN_PLAYERS_READY" envDefault:"2"`

	// JoinWait is the deadline after room creation for members to ready up.
	JoinWait time.Duration `env:"JOIN_WAIT" envDefault:"60s"`

	// Countdown is the pre-race countdown length.
	Countdown time.Duration `env:"COUNTDOWN" envDefault:"10s"`

	// RaceDuration is the hard limit on race length; the room is torn down
	// when it elapses.
	RaceDuration time.Duration `env:"RACE_DURATION" envDefault:"120s"`

	// MinMapID and MaxMapID bound the inclusive range a map is picked from.
	MinMapID int `env:"MIN_MAP_ID" envDefault:"2"`
	MaxMapID int `env:"MAX_MAP_ID" envDefault:"4"`
}

type DatabaseConfig struct {
	// Path is the SQLite file backing the race history audit log.
	Path    string        `env:"PATH" envDefault:"./raceway.db"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

// Load builds the configuration from defaults overridden by the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with no environment applied. Used by
// tests and as the baseline for documentation.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 5 * time.Second,
			BufferSize:   100,
		},
		Match: MatchConfig{
			MinPlayersToStart: 2,
			MinPlayersReady:   2,
			JoinWait:          60 * time.Second,
			Countdown:         10 * time.Second,
			RaceDuration:      120 * time.Second,
			MinMapID:          2,
			MaxMapID:          4,
		},
		Database: DatabaseConfig{
			Path:    "./raceway.db",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate rejects configurations that would misbehave at runtime rather
// than failing at the point of use.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Match.MinPlayersToStart < 2 {
		return fmt.Errorf("min players to start must be at least 2")
	}
	if c.Match.MinPlayersReady < 1 {
		return fmt.Errorf("min ready players must be at least 1")
	}
	if c.Match.MinPlayersReady > c.Match.MinPlayersToStart {
		return fmt.Errorf("min ready players cannot exceed min players to start")
	}
	if c.Match.JoinWait <= 0 {
		return fmt.Errorf("join wait must be positive")
	}
	if c.Match.Countdown <= 0 {
		return fmt.Errorf("countdown must be positive")
	}
	if c.Match.RaceDuration <= c.Match.Countdown {
		return fmt.Errorf("race duration must exceed the countdown")
	}
	if c.Match.MinMapID > c.Match.MaxMapID {
		return fmt.Errorf("map id range is inverted")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	return nil
}
