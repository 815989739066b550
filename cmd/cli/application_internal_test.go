package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testInternalConfigurationFileNameConstant = "simmigrate.yaml"
	testInternalConfigurationContentConstant  = "common:\n  log_level: warn\n  log_format: structured\nmigration:\n  destination_org_id: \"42\"\n  rate_limit:\n    window: 250ms\n"
)

func TestInitializeConfigurationAttachesConfigurationFilePath(t *testing.T) {
	configurationPath := filepath.Join(t.TempDir(), testInternalConfigurationFileNameConstant)
	require.NoError(t, os.WriteFile(configurationPath, []byte(testInternalConfigurationContentConstant), 0o600))

	application := NewApplication()
	application.environmentLoader = func(...string) error {
		return &fs.PathError{Op: "open", Path: dotenvFileNameConstant, Err: fs.ErrNotExist}
	}
	application.configurationFilePath = configurationPath

	rootCommand := application.rootCommand
	rootCommand.SetContext(context.Background())
	require.NoError(t, rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "debug"))

	require.NoError(t, application.initializeConfiguration(rootCommand))

	configurationFilePath, available := application.commandContextAccessor.ConfigurationFilePath(rootCommand.Context())
	require.True(t, available)
	require.Equal(t, configurationPath, configurationFilePath)

	configuration := application.Configuration()
	require.Equal(t, "debug", configuration.Common.LogLevel)
	require.Equal(t, "structured", configuration.Common.LogFormat)
	require.Equal(t, "42", configuration.Migration.DestinationOrganization)
	require.Equal(t, 250*time.Millisecond, configuration.Migration.RateLimit.Window)
	require.Equal(t, 2, configuration.Migration.RateLimit.Requests)
	require.False(t, application.humanReadableLoggingEnabled())
	require.Same(t, application.logger, application.consoleLogger)
}

func TestInitializeConfigurationRejectsUnknownLogFormat(t *testing.T) {
	application := NewApplication()
	application.environmentLoader = nil
	application.configurationFilePath = filepath.Join(t.TempDir(), testInternalConfigurationFileNameConstant)
	require.NoError(t, os.WriteFile(application.configurationFilePath, []byte(testInternalConfigurationContentConstant), 0o600))
	require.NoError(t, application.rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, "xml"))

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.Error(t, initializationError)
	require.ErrorContains(t, initializationError, "unsupported log format")
}

func TestLoadEnvironmentFile(t *testing.T) {
	loaderFailure := errors.New("malformed line 3")

	testCases := []struct {
		name          string
		loader        func(...string) error
		expectedError error
	}{
		{
			name: "Loaded",
			loader: func(...string) error {
				return nil
			},
		},
		{
			name: "MissingFileIgnored",
			loader: func(...string) error {
				return fmt.Errorf("open .env: %w", fs.ErrNotExist)
			},
		},
		{
			name: "ParseFailureReported",
			loader: func(...string) error {
				return loaderFailure
			},
			expectedError: loaderFailure,
		},
		{
			name: "NoLoader",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			application := &Application{environmentLoader: testCase.loader}
			loadError := application.loadEnvironmentFile()
			if testCase.expectedError == nil {
				require.NoError(t, loadError)
				return
			}
			require.ErrorIs(t, loadError, testCase.expectedError)
		})
	}
}

func TestVersionRequested(t *testing.T) {
	testCases := []struct {
		name      string
		arguments []string
		expected  bool
	}{
		{name: "NoArguments", arguments: nil, expected: false},
		{name: "VersionFlag", arguments: []string{"--version"}, expected: true},
		{name: "VersionAfterCommand", arguments: []string{"migrate", "--version"}, expected: true},
		{name: "VersionAfterTerminator", arguments: []string{"migrate", "--", "--version"}, expected: false},
		{name: "OtherFlags", arguments: []string{"migrate", "--dry-run"}, expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expected, versionRequested(testCase.arguments))
		})
	}
}

func TestResolveVersionPrefersInjectedVersion(t *testing.T) {
	originalVersion := Version
	t.Cleanup(func() {
		Version = originalVersion
	})

	Version = " v1.4.0 "
	require.Equal(t, "v1.4.0", resolveVersion(context.Background()))

	Version = ""
	require.NotEmpty(t, resolveVersion(context.Background()))
}
