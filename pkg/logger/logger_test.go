package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	require.NoError(t, Init("development"))
	assert.NotNil(t, Logger)
	assert.Same(t, Logger, Get())

	require.NoError(t, Init("production"))
	assert.NotNil(t, Logger)
}

func TestGet_BeforeInit(t *testing.T) {
	saved := Logger
	Logger = nil
	t.Cleanup(func() { Logger = saved })

	assert.NotNil(t, Get())
}
