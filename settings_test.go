// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package httpq

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.withDefaults()
	assert.Equal(t, DefaultMaxConnections, s.MaxConnections)
	assert.Equal(t, DefaultMaxHostConnections, s.MaxHostConnections)
	assert.Equal(t, DefaultMaxTotalConnections, s.MaxTotalConnections)
	assert.Equal(t, DefaultPollTimeout, s.PollTimeout)
	assert.Equal(t, DefaultSpeedTrackWindow, s.SpeedTrackWindow)
	assert.NotNil(t, s.Logger)
}

func TestSettingsExplicitValuesKept(t *testing.T) {
	s := Settings{
		MaxConnections:   3,
		PollTimeout:      20 * time.Millisecond,
		SpeedTrackWindow: 16,
	}.withDefaults()
	assert.Equal(t, 3, s.MaxConnections)
	assert.Equal(t, 20*time.Millisecond, s.PollTimeout)
	assert.Equal(t, 16, s.SpeedTrackWindow)
}

func TestParseSettings(t *testing.T) {
	data := []byte(`
max_connections: 16
max_host_connections: 4
max_total_connections: 8
poll_timeout: 250ms
speed_track_window: 64
buffer_size: 32768
`)
	s, err := ParseSettings(data)
	require.NoError(t, err)
	assert.Equal(t, 16, s.MaxConnections)
	assert.Equal(t, 4, s.MaxHostConnections)
	assert.Equal(t, 8, s.MaxTotalConnections)
	assert.Equal(t, 250*time.Millisecond, s.PollTimeout)
	assert.Equal(t, 64, s.SpeedTrackWindow)
	assert.Equal(t, 32768, s.BufferSize)
}

func TestParseSettingsEmpty(t *testing.T) {
	s, err := ParseSettings([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s)
}

func TestParseSettingsBadDuration(t *testing.T) {
	_, err := ParseSettings([]byte("poll_timeout: soonish"))
	assert.Error(t, err)
}

func TestParseSettingsNegative(t *testing.T) {
	_, err := ParseSettings([]byte("max_connections: -2"))
	assert.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "httpq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_timeout: 50ms\n"), 0o644))
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, s.PollTimeout)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
