package pipeline

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic_Verbatim(t *testing.T) {
	for _, text := range []string{"no newline", "one newline\n", "# Heading\n\nbody\n\n"} {
		fs := afero.NewMemMapFs()
		require.NoError(t, writeAtomic(fs, "/out/digest.md", text))

		data, err := afero.ReadFile(fs, "/out/digest.md")
		require.NoError(t, err)
		assert.Equal(t, text, string(data))
	}
}

func TestWriteAtomic_ReplacesAndCleansUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/digest.md", []byte("old"), 0o600))
	require.NoError(t, writeAtomic(fs, "/out/digest.md", "new"))

	data, err := afero.ReadFile(fs, "/out/digest.md")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := fs.Stat("/out/digest.md")
	require.NoError(t, err)
	assert.Equal(t, "-rw-r--r--", info.Mode().Perm().String())

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}
