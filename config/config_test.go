package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, DefaultAcceptTimeout, cfg.AcceptTimeout)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg, err := Load(WithPort(12000), WithQueueSize(10))
	require.NoError(t, err)
	assert.Equal(t, 12000, cfg.Port)
	assert.Equal(t, 10, cfg.QueueSize)
}

func TestPortOutOfRangeIsConfigError(t *testing.T) {
	_, err := Load(WithPort(80))
	assert.Error(t, err)

	_, err = Load(WithPort(70000))
	assert.Error(t, err)
}

func TestQueueSizeOutOfRangeIsConfigError(t *testing.T) {
	_, err := Load(WithQueueSize(0))
	assert.Error(t, err)

	_, err = Load(WithQueueSize(2_000_000_000))
	assert.Error(t, err)
}
