package utils_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/simmigrate/internal/utils"
)

const (
	testInvalidLogLevelConstant  = "invalid"
	testInvalidLogFormatConstant = "invalid"
	testLogMessageConstant       = "migration_progress_message"
)

// captureDiagnosticOutput builds a logger while standard error is redirected, logs one
// message through it, and returns what reached standard error.
func captureDiagnosticOutput(testInstance *testing.T, level utils.LogLevel, format utils.LogFormat) ([]byte, error) {
	testInstance.Helper()

	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)
	defer pipeReader.Close()

	originalStderr := os.Stderr
	os.Stderr = pipeWriter
	logger, creationError := utils.NewLoggerFactory().CreateLogger(level, format)
	os.Stderr = originalStderr

	if creationError != nil {
		require.Nil(testInstance, logger)
		require.NoError(testInstance, pipeWriter.Close())
		return nil, creationError
	}

	logger.Info(testLogMessageConstant)
	if syncError := logger.Sync(); syncError != nil {
		require.True(testInstance, errors.Is(syncError, syscall.ENOTSUP) || errors.Is(syncError, syscall.EINVAL))
	}
	require.NoError(testInstance, pipeWriter.Close())

	capturedOutput, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	return bytes.TrimSpace(capturedOutput), nil
}

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name         string
		level        utils.LogLevel
		format       utils.LogFormat
		expectError  bool
		expectedJSON bool
	}{
		{name: "debug_structured", level: utils.LogLevelDebug, format: utils.LogFormatStructured, expectedJSON: true},
		{name: "warn_structured_drops_info", level: utils.LogLevelWarn, format: utils.LogFormatStructured},
		{name: "info_console", level: utils.LogLevelInfo, format: utils.LogFormatConsole},
		{name: "unsupported_level", level: utils.LogLevel(testInvalidLogLevelConstant), format: utils.LogFormatStructured, expectError: true},
		{name: "unsupported_format", level: utils.LogLevelInfo, format: utils.LogFormat(testInvalidLogFormatConstant), expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			output, creationError := captureDiagnosticOutput(testInstance, testCase.level, testCase.format)
			if testCase.expectError {
				require.Error(testInstance, creationError)
				return
			}
			require.NoError(testInstance, creationError)

			if testCase.level == utils.LogLevelWarn {
				require.Empty(testInstance, output)
				return
			}
			require.Contains(testInstance, string(output), testLogMessageConstant)
			require.Equal(testInstance, testCase.expectedJSON, json.Valid(output))
		})
	}
}

func TestLoggerFactoryCreateLoggerOutputs(testInstance *testing.T) {
	testCases := []struct {
		name                 string
		requestedLogFormat   utils.LogFormat
		expectSharedLogger   bool
		expectConsoleMessage bool
	}{
		{name: "structured_shares_diagnostic_logger", requestedLogFormat: utils.LogFormatStructured, expectSharedLogger: true},
		{name: "console_writes_bare_messages", requestedLogFormat: utils.LogFormatConsole, expectConsoleMessage: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			var consoleBuffer bytes.Buffer
			loggerFactory := utils.NewLoggerFactoryWithConsoleWriter(&consoleBuffer)

			outputs, creationError := loggerFactory.CreateLoggerOutputs(utils.LogLevelInfo, testCase.requestedLogFormat)
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, outputs.DiagnosticLogger)
			require.NotNil(testInstance, outputs.ConsoleLogger)

			if testCase.expectSharedLogger {
				require.Same(testInstance, outputs.DiagnosticLogger, outputs.ConsoleLogger)
				return
			}

			outputs.ConsoleLogger.Info(testLogMessageConstant)
			outputs.ConsoleLogger.Debug("suppressed below info")
			require.Equal(testInstance, testLogMessageConstant+"\n", consoleBuffer.String())
		})
	}
}

func TestLoggerFactoryCreateLoggerOutputsRejectsUnknownLevel(testInstance *testing.T) {
	_, creationError := utils.NewLoggerFactory().CreateLoggerOutputs(utils.LogLevel(testInvalidLogLevelConstant), utils.LogFormatConsole)
	require.Error(testInstance, creationError)
}
