package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 2, cfg.MaxContexts)
}

func TestNewPool_AppliesDefaults(t *testing.T) {
	p := NewPool(Config{})
	assert.Equal(t, 2, cap(p.sem))
	assert.Equal(t, 30*time.Second, p.NavigationTimeout())
}

func TestClose_WithoutLaunchIsNoOp(t *testing.T) {
	p := NewPool(DefaultConfig())
	assert.NoError(t, p.Close())
	// Idempotent.
	assert.NoError(t, p.Close())
}
