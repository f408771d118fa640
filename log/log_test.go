package log_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/log"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("packed_json", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := log.New(&buf, log.FormatPacked, "debug")
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

		logger.Info().Str("k", "v").Msg("hello")
		line := buf.Bytes()
		require.True(t, gjson.ValidBytes(line))
		assert.Equal(t, "hello", gjson.GetBytes(line, "message").String())
		assert.Equal(t, "v", gjson.GetBytes(line, "k").String())
		assert.True(t, gjson.GetBytes(line, "app.version").Exists())
	})

	t.Run("empty_level_defaults_to_info", func(t *testing.T) {
		t.Parallel()

		logger, err := log.New(&bytes.Buffer{}, log.FormatPretty, "")
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("invalid_level", func(t *testing.T) {
		t.Parallel()

		_, err := log.New(&bytes.Buffer{}, log.FormatPacked, "loud")
		require.Error(t, err)
	})

	t.Run("invalid_format", func(t *testing.T) {
		t.Parallel()

		_, err := log.New(&bytes.Buffer{}, "xml", "info")
		require.Error(t, err)
	})
}

func TestFlaw(t *testing.T) {
	t.Parallel()

	t.Run("flaw_fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := log.NewPacked(&buf)
		err := flaw.From(errors.New("boom")).Append(flaw.P{"url": "https://example.com"})
		logger.Error().Func(log.Flaw(err)).Msg("failed")

		line := buf.Bytes()
		assert.Equal(t, "boom", gjson.GetBytes(line, "error.message").String())
		assert.Contains(t, gjson.GetBytes(line, "records.#.payload.url").String(), "https://example.com")
	})

	t.Run("plain_error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := log.NewPacked(&buf)
		logger.Error().Func(log.Flaw(errors.New("plain"))).Msg("failed")
		assert.Equal(t, "plain", gjson.GetBytes(buf.Bytes(), "error").String())
	})
}

func TestPanic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := log.NewPacked(&buf)
	func() {
		defer func() {
			if r := recover(); nil != r {
				logger.Error().Func(log.Panic(r)).Msg("recovered")
			}
		}()
		panic("worker exploded")
	}()

	line := buf.Bytes()
	assert.Equal(t, "worker exploded", gjson.GetBytes(line, "panic.content").String())
	assert.Equal(t, "string", gjson.GetBytes(line, "panic.type_name").String())
}
