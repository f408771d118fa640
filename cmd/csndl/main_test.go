package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/xeptore/csndl/config"
)

func loadConfigFromArgs(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	var (
		cfg    *config.Config
		cfgErr error
	)
	app := newApp()
	app.Action = func(cliCtx *cli.Context) error {
		cfg, cfgErr = loadConfig(cliCtx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"csndl"}, args...)))
	return cfg, cfgErr
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfigFromArgs(t, "https://chiasenhac.vn/album.html")
		require.NoError(t, err)
		assert.Equal(t, config.Default(), *cfg)
	})

	t.Run("flags_override_file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "csndl.yaml")
		require.NoError(t, os.WriteFile(path, []byte("quality: flac\nthreads: 2\noutput_dir: from-file\n"), 0o600))

		cfg, err := loadConfigFromArgs(t, "-c", path, "-t", "5", "https://chiasenhac.vn/album.html")
		require.NoError(t, err)
		assert.Equal(t, "flac", cfg.Quality)
		assert.Equal(t, 5, cfg.Threads)
		assert.Equal(t, "from-file", cfg.OutputDir)
	})

	t.Run("invalid_threads", func(t *testing.T) {
		_, err := loadConfigFromArgs(t, "-t", "0", "https://chiasenhac.vn/album.html")
		require.Error(t, err)
	})
}
