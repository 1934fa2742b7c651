package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Settings{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Info().Str("component", "test").Msg("hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["message"])
	require.Equal(t, "test", line["component"])
}

func TestNewLogger_TextHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Settings{Format: "text"}, &buf)
	require.NoError(t, err)
	logger.Info().Msg("plain")
	require.Contains(t, buf.String(), "plain")
	require.NotContains(t, buf.String(), "\x1b[")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := NewLogger(Settings{Format: "json", File: path}, &bytes.Buffer{})
	require.NoError(t, err)
	logger.Warn().Msg("to file")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "to file")
}

func TestNewLogger_Rejects(t *testing.T) {
	_, err := NewLogger(Settings{Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
	_, err = NewLogger(Settings{Format: "xml"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unknown log format")
}
