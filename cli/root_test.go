package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should register every subcommand", func(t *testing.T) {
		root := RootCmd()

		names := make([]string, 0, len(root.Commands()))
		for _, sub := range root.Commands() {
			names = append(names, sub.Name())
		}
		assert.Contains(t, names, "submit")
		assert.Contains(t, names, "resume")
		assert.Contains(t, names, "batch")
		assert.Contains(t, names, "status")
	})

	t.Run("Should expose the shared logging and output flags", func(t *testing.T) {
		root := RootCmd()
		flags := root.PersistentFlags()

		require.NotNil(t, flags.Lookup("log-level"))
		require.NotNil(t, flags.Lookup("log-json"))
		require.NotNil(t, flags.Lookup("log-source"))
		require.NotNil(t, flags.Lookup("output"))

		level, err := flags.GetString("log-level")
		require.NoError(t, err)
		assert.Equal(t, "info", level)
	})
}
