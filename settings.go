// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gogama/httpq/timeout"
	"gopkg.in/yaml.v3"
)

// Default configuration values applied by Settings when the
// corresponding field is zero.
const (
	DefaultMaxConnections      = 8
	DefaultMaxHostConnections  = 2
	DefaultMaxTotalConnections = 4
	DefaultPollTimeout         = 100 * time.Millisecond
	DefaultSpeedTrackWindow    = 128
)

// Settings configures a Client. The zero value is a valid
// configuration using the package defaults.
//
// Settings is a plain value: it is copied into the Client at
// construction, and later changes to the original have no effect.
type Settings struct {
	// MaxConnections is the upper bound on concurrently active
	// transfers: the capacity of the engine's concurrency semaphore.
	// New also passes it to the default transport driver, which does
	// not apply it to its connection pool. The default is
	// DefaultMaxConnections.
	MaxConnections int `yaml:"max_connections" validate:"gte=0"`

	// MaxHostConnections caps concurrent transfers per origin in the
	// transport driver. The default is DefaultMaxHostConnections.
	MaxHostConnections int `yaml:"max_host_connections" validate:"gte=0"`

	// MaxTotalConnections is the transport driver's pool-wide
	// connection advisory. The default is DefaultMaxTotalConnections.
	MaxTotalConnections int `yaml:"max_total_connections" validate:"gte=0"`

	// PollTimeout is the ceiling on the worker's poll, and therefore
	// the worst-case latency between a lifecycle command and the
	// engine acting on it. The default is DefaultPollTimeout.
	PollTimeout time.Duration `yaml:"poll_timeout" validate:"gte=0"`

	// SpeedTrackWindow is the capacity, in samples, of the sliding
	// windows behind the engine's speed aggregates. The default is
	// DefaultSpeedTrackWindow.
	SpeedTrackWindow int `yaml:"speed_track_window" validate:"gte=0"`

	// BufferSize is the transport driver's default I/O buffer size,
	// used when a request policy does not specify one. Zero means the
	// driver default.
	BufferSize int `yaml:"buffer_size" validate:"gte=0"`

	// TimeoutPolicy, if non-nil, directs how the engine sets the
	// attempt timeout when re-arming a retry. When nil, every attempt
	// uses the scalar timeout from the request policy.
	TimeoutPolicy timeout.Policy `yaml:"-"`

	// Handlers allows custom handler chains to be invoked when
	// designated events occur during a transfer. If nil, no custom
	// handlers are run.
	Handlers *HandlerGroup `yaml:"-"`

	// Logger receives the engine's structured diagnostics, for
	// example detection of a completion for an unknown handle. If
	// nil, slog.Default() is used.
	Logger *slog.Logger `yaml:"-"`
}

func (s Settings) withDefaults() Settings {
	if s.MaxConnections == 0 {
		s.MaxConnections = DefaultMaxConnections
	}
	if s.MaxHostConnections == 0 {
		s.MaxHostConnections = DefaultMaxHostConnections
	}
	if s.MaxTotalConnections == 0 {
		s.MaxTotalConnections = DefaultMaxTotalConnections
	}
	if s.PollTimeout == 0 {
		s.PollTimeout = DefaultPollTimeout
	}
	if s.SpeedTrackWindow == 0 {
		s.SpeedTrackWindow = DefaultSpeedTrackWindow
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

var validate = validator.New()

// UnmarshalYAML decodes Settings from YAML. Durations are given as
// strings in Go syntax, for example "250ms" or "1m30s".
func (s *Settings) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MaxConnections      int    `yaml:"max_connections"`
		MaxHostConnections  int    `yaml:"max_host_connections"`
		MaxTotalConnections int    `yaml:"max_total_connections"`
		PollTimeout         string `yaml:"poll_timeout"`
		SpeedTrackWindow    int    `yaml:"speed_track_window"`
		BufferSize          int    `yaml:"buffer_size"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.MaxConnections = raw.MaxConnections
	s.MaxHostConnections = raw.MaxHostConnections
	s.MaxTotalConnections = raw.MaxTotalConnections
	s.SpeedTrackWindow = raw.SpeedTrackWindow
	s.BufferSize = raw.BufferSize
	if raw.PollTimeout != "" {
		d, err := time.ParseDuration(raw.PollTimeout)
		if err != nil {
			return fmt.Errorf("httpq: invalid poll_timeout: %w", err)
		}
		s.PollTimeout = d
	}
	return nil
}

// ParseSettings decodes Settings from YAML data and validates them.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("httpq: invalid settings: %w", err)
	}
	return s, nil
}

// LoadSettings reads and decodes Settings from a YAML file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return ParseSettings(data)
}
