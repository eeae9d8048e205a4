package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultConfig_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wslogd.json")

	require.NoError(t, writeDefaultConfig(path))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "/", cfg.Routes[0].RoutePrefix)
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
