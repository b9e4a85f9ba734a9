package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSourceList(t *testing.T) {
	t.Run("Should skip blank lines and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sources.txt")
		content := "# morning shows\nhttps://a.example.com/1.mp3\n\n  https://a.example.com/2.mp3  \n#skip\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		sources, err := readSourceList(path)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://a.example.com/1.mp3",
			"https://a.example.com/2.mp3",
		}, sources)
	})

	t.Run("Should fail when the file does not exist", func(t *testing.T) {
		_, err := readSourceList(filepath.Join(t.TempDir(), "missing.txt"))
		require.Error(t, err)
	})

	t.Run("Should return an empty list for a comment-only file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sources.txt")
		require.NoError(t, os.WriteFile(path, []byte("# nothing here\n"), 0o644))

		sources, err := readSourceList(path)
		require.NoError(t, err)
		assert.Empty(t, sources)
	})
}
