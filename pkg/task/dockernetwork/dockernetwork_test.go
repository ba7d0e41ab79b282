package dockernetwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamokano/web_deployer/pkg/task"
)

func TestParseOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := parseOptions("demo-shop", nil)
		require.NoError(t, err)

		assert.Equal(t, "demo-shop-net", opts.network)
		assert.Equal(t, "bridge", opts.driver)
		assert.False(t, opts.remove)
	})

	t.Run("overrides", func(t *testing.T) {
		opts, err := parseOptions("demo-shop", map[string]interface{}{
			"network": "backend",
			"remove":  true,
		})
		require.NoError(t, err)

		assert.Equal(t, "backend", opts.network)
		assert.True(t, opts.remove)
	})

	t.Run("reserved_names_are_rejected", func(t *testing.T) {
		for _, name := range []string{"bridge", "host", "none"} {
			t.Run(name, func(t *testing.T) {
				_, err := parseOptions("demo-shop", map[string]interface{}{
					"network": name,
				})
				require.ErrorIs(t, err, task.ErrInvalidConfig)
				assert.ErrorContains(t, err, "reserved by docker")
			})
		}
	})
}
