package logger_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quillnotes/quill/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.NotNil(t, templogger.Logger)
	// Get Stats Before
	require.Equal(t, buff.Len(), 0)
	templogger.Logger.Info().Msg("Test")
	// Get Stats After
	require.Contains(t, buff.String(), "Test")
}

func TestLogLevelFiltersBelowThreshold(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.New().FromBuffer(buff).WithLevel(zerolog.WarnLevel).Make()
	require.NoError(t, err)

	templogger.Logger.Info().Msg("quiet")
	require.Equal(t, 0, buff.Len())

	templogger.Logger.Warn().Msg("loud")
	require.Contains(t, buff.String(), "loud")
}
