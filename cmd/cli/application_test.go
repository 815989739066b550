package cli_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/simmigrate/cmd/cli"
	"github.com/temirov/simmigrate/internal/migrate"
)

const (
	testConfigurationFileNameConstant         = "config.yaml"
	testMigrateCommandNameConstant            = "migrate"
	testWorkingDirectoryConfigurationConstant = "migration:\n  destination_org_id: \"77\"\n  imsi_files:\n    - imsis.csv\n  max_in_flight: 3\n"
	testDryRunEnvironmentNameConstant         = "SIMMIGRATE_MIGRATION_DRY_RUN"
	testRateEnvironmentNameConstant           = "SIMMIGRATE_MIGRATION_RATE_LIMIT_REQUESTS"
)

type embeddedDefaultsDocument struct {
	Common struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"common"`
	Migration struct {
		APIURL                string   `yaml:"api_url"`
		DestinationOrgID      string   `yaml:"destination_org_id"`
		DryRun                bool     `yaml:"dry_run"`
		MasterTokenSource     string   `yaml:"master_token_source"`
		EnterpriseTokenSource string   `yaml:"enterprise_token_source"`
		IMSIFiles             []string `yaml:"imsi_files"`
		RateLimit             struct {
			Requests int    `yaml:"requests"`
			Window   string `yaml:"window"`
		} `yaml:"rate_limit"`
		MaxInFlight int    `yaml:"max_in_flight"`
		MetricsFile string `yaml:"metrics_file"`
		Tracing     bool   `yaml:"tracing"`
	} `yaml:"migration"`
}

func TestEmbeddedDefaultsMatchMigrationDefaults(t *testing.T) {
	configurationData, configurationType := cli.EmbeddedDefaultConfiguration()
	require.Equal(t, "yaml", configurationType)

	var document embeddedDefaultsDocument
	require.NoError(t, yaml.Unmarshal(configurationData, &document))

	defaults := migrate.DefaultCommandConfiguration()
	require.Equal(t, "info", document.Common.LogLevel)
	require.Equal(t, "console", document.Common.LogFormat)
	require.Equal(t, defaults.APIURL, document.Migration.APIURL)
	require.Empty(t, document.Migration.DestinationOrgID)
	require.False(t, document.Migration.DryRun)
	require.Equal(t, defaults.MasterTokenSource, document.Migration.MasterTokenSource)
	require.Equal(t, defaults.EnterpriseTokenSource, document.Migration.EnterpriseTokenSource)
	require.Empty(t, document.Migration.IMSIFiles)
	require.Equal(t, defaults.RateLimit.Requests, document.Migration.RateLimit.Requests)
	require.Equal(t, defaults.MaxInFlight, document.Migration.MaxInFlight)
	require.Empty(t, document.Migration.MetricsFile)
	require.False(t, document.Migration.Tracing)

	window, parseError := time.ParseDuration(document.Migration.RateLimit.Window)
	require.NoError(t, parseError)
	require.Equal(t, defaults.RateLimit.Window, window)
}

func TestApplicationRegistersMigrateCommand(t *testing.T) {
	application := cli.NewApplication()
	require.Contains(t, application.CommandNames(), testMigrateCommandNameConstant)
}

func TestApplicationLayersWorkingDirectoryConfigurationAndEnvironment(t *testing.T) {
	workingDirectory := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workingDirectory, testConfigurationFileNameConstant), []byte(testWorkingDirectoryConfigurationConstant), 0o600))
	t.Chdir(workingDirectory)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(testDryRunEnvironmentNameConstant, "true")
	t.Setenv(testRateEnvironmentNameConstant, "9")

	application := cli.NewApplication()
	require.NoError(t, application.InitializeForCommand(testMigrateCommandNameConstant))

	migration := application.Configuration().Migration
	require.Equal(t, "77", migration.DestinationOrganization)
	require.Equal(t, []string{"imsis.csv"}, migration.IMSIFiles)
	require.Equal(t, 3, migration.MaxInFlight)
	require.True(t, migration.DryRun)
	require.Equal(t, 9, migration.RateLimit.Requests)
	require.Equal(t, time.Second, migration.RateLimit.Window)
	require.Equal(t, migrate.DefaultCommandConfiguration().APIURL, migration.APIURL)
}

func TestApplicationDefaultsWithoutConfigurationFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	application := cli.NewApplication()
	require.NoError(t, application.InitializeForCommand(testMigrateCommandNameConstant))

	configuration := application.Configuration()
	require.Equal(t, "info", configuration.Common.LogLevel)
	require.Equal(t, "console", configuration.Common.LogFormat)
	require.Equal(t, migrate.DefaultCommandConfiguration().Sanitize(), configuration.Migration.Sanitize())
}
