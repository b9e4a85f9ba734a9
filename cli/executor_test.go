package cli

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castnote/castnote/engine/ledger"
	"github.com/castnote/castnote/pkg/config"
)

func newTestRuntime() *runtime {
	return &runtime{
		cfg:   config.Default(),
		store: ledger.NewStore(afero.NewMemMapFs(), "/jobs"),
	}
}

func generatingCommands() map[string]*cobra.Command {
	return map[string]*cobra.Command{
		"submit": SubmitCmd(),
		"resume": ResumeCmd(),
		"batch":  BatchCmd(),
	}
}

func TestFlagResolution(t *testing.T) {
	t.Run("Should resolve kinds and streaming on every generating command", func(t *testing.T) {
		rt := newTestRuntime()
		for name, cmd := range generatingCommands() {
			require.NoError(t, cmd.ParseFlags(nil), name)

			kinds, err := resolveKinds(cmd, rt)
			require.NoError(t, err, name)
			assert.Equal(t, rt.cfg.Spikes.Kinds, kinds, name)

			streaming, err := resolveStreaming(cmd, rt)
			require.NoError(t, err, name)
			assert.True(t, streaming, name)
		}
	})

	t.Run("Should honor --no-stream on every generating command", func(t *testing.T) {
		rt := newTestRuntime()
		for name, cmd := range generatingCommands() {
			require.NoError(t, cmd.ParseFlags([]string{"--no-stream"}), name)

			streaming, err := resolveStreaming(cmd, rt)
			require.NoError(t, err, name)
			assert.False(t, streaming, name)
		}
	})

	t.Run("Should override kinds from --spikes", func(t *testing.T) {
		rt := newTestRuntime()
		cmd := SubmitCmd()
		require.NoError(t, cmd.ParseFlags([]string{"--spikes", "summary,chapters"}))

		kinds, err := resolveKinds(cmd, rt)
		require.NoError(t, err)
		assert.Equal(t, []string{"summary", "chapters"}, kinds)
	})

	t.Run("Should fall back to the configured language when the flag is empty", func(t *testing.T) {
		rt := newTestRuntime()
		for name, cmd := range map[string]*cobra.Command{"submit": SubmitCmd(), "batch": BatchCmd()} {
			require.NoError(t, cmd.ParseFlags(nil), name)

			language, err := resolveLanguage(cmd, rt)
			require.NoError(t, err, name)
			assert.Equal(t, rt.cfg.Spikes.Language, language, name)
		}
	})

	t.Run("Should keep streaming off when disabled in configuration", func(t *testing.T) {
		rt := newTestRuntime()
		rt.cfg.Stream.Enabled = false
		cmd := SubmitCmd()
		require.NoError(t, cmd.ParseFlags(nil))

		streaming, err := resolveStreaming(cmd, rt)
		require.NoError(t, err)
		assert.False(t, streaming)
	})
}

func TestLoadOrCreateRecord(t *testing.T) {
	t.Run("Should return the stored record when present", func(t *testing.T) {
		rt := newTestRuntime()
		rec := ledger.NewJobRecord("job-1", "https://feeds.example.com/ep1.mp3", "en")
		sp := rec.AppendSpike("spk-1", "summary")
		require.NoError(t, sp.Advance(ledger.SpikeComplete))
		require.NoError(t, rt.store.Save(t.Context(), rec))

		got := rt.loadOrCreateRecord(t.Context(), "job-1", "https://feeds.example.com/ep1.mp3", "en")

		require.NotNil(t, got.Spike("summary"))
		assert.Equal(t, ledger.SpikeComplete, got.Spike("summary").Status)
	})

	t.Run("Should start fresh when no record exists", func(t *testing.T) {
		rt := newTestRuntime()

		got := rt.loadOrCreateRecord(t.Context(), "job-2", "https://feeds.example.com/ep2.mp3", "de")

		assert.Equal(t, "https://feeds.example.com/ep2.mp3", got.SourceRef)
		assert.Equal(t, "de", got.Language)
		assert.Empty(t, got.Spikes)
	})

	t.Run("Should degrade to a fresh record when the stored one is unreadable", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		rt := newTestRuntime()
		rt.store = ledger.NewStore(fs, "/jobs")
		require.NoError(t, afero.WriteFile(fs, "/jobs/job-3.json", []byte("{not json"), 0o644))

		got := rt.loadOrCreateRecord(t.Context(), "job-3", "https://feeds.example.com/ep3.mp3", "en")

		require.NotNil(t, got)
		assert.Equal(t, "https://feeds.example.com/ep3.mp3", got.SourceRef)
		assert.Empty(t, got.Spikes)
	})
}
