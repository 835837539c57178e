package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFullVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
	assert.Contains(t, GetFullVersion(), "litedev version "+Version)
}

func TestRootFlags(t *testing.T) {
	for _, name := range []string{"config", "verbosity", "tool", "max-parallel", "adapter", "tracing"} {
		require.NotNil(t, Root().PersistentFlags().Lookup(name), name)
	}
}
