package csn_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xeptore/csndl/csn"
)

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"Song: Part 1/2":   "Song_ Part 1_2",
		"  many   spaces ": "many spaces",
		"trailing...":      "trailing",
		"..":               "_",
		"":                 "_",
		"Nơi này có anh":   "Nơi này có anh",
	} {
		assert.Equal(t, want, csn.SanitizeFileName(in), in)
	}
}

func TestOutputLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := csn.OutputDir(root).Album("AC/DC", "Back in Black")
	assert.Equal(t, filepath.Join(root, "AC_DC", "Back in Black"), dir.Path())

	qdir := dir.Quality(csn.QualityFLAC)
	assert.Equal(t, filepath.Join(root, "AC_DC", "Back in Black", "flac", "Hells Bells.flac"), qdir.File("Hells Bells", "flac"))
}

func TestQuality(t *testing.T) {
	t.Parallel()

	assert.True(t, csn.Quality320.IsKnown())
	assert.False(t, csn.Quality("64").IsKnown())
	assert.True(t, csn.Quality128.IsFree())
	assert.True(t, csn.Quality32.IsFree())
	assert.False(t, csn.QualityFLAC.IsFree())
	assert.Len(t, csn.Qualities(), 5)
}
