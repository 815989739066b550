package migrate

import (
	"strings"
	"time"

	"github.com/temirov/simmigrate/internal/batch"
	"github.com/temirov/simmigrate/internal/emnify"
	"github.com/temirov/simmigrate/internal/ratelimit"
)

const (
	defaultMasterTokenSourceConstant     = "env:EMNIFY_APP_TOKEN"
	defaultEnterpriseTokenSourceConstant = "env:EMNIFY_ENTERPRISE_APP_TOKEN"
)

// RateLimitConfiguration captures the shared request ceiling.
type RateLimitConfiguration struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// CommandConfiguration captures persisted configuration for the migrate command.
type CommandConfiguration struct {
	APIURL                  string                 `mapstructure:"api_url"`
	DestinationOrganization string                 `mapstructure:"destination_org_id"`
	DryRun                  bool                   `mapstructure:"dry_run"`
	MasterTokenSource       string                 `mapstructure:"master_token_source"`
	EnterpriseTokenSource   string                 `mapstructure:"enterprise_token_source"`
	IMSIFiles               []string               `mapstructure:"imsi_files"`
	RateLimit               RateLimitConfiguration `mapstructure:"rate_limit"`
	MaxInFlight             int                    `mapstructure:"max_in_flight"`
	MetricsFile             string                 `mapstructure:"metrics_file"`
	TracingEnabled          bool                   `mapstructure:"tracing"`
}

// DefaultCommandConfiguration returns baseline configuration values for the migrate command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		APIURL:                emnify.DefaultBaseURL,
		MasterTokenSource:     defaultMasterTokenSourceConstant,
		EnterpriseTokenSource: defaultEnterpriseTokenSourceConstant,
		RateLimit: RateLimitConfiguration{
			Requests: ratelimit.DefaultRequestsPerWindow,
			Window:   ratelimit.DefaultWindow,
		},
		MaxInFlight: batch.DefaultMaxInFlight,
	}
}

// Sanitize trims configured values and replaces unusable ones with defaults.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.APIURL = strings.TrimSpace(configuration.APIURL)
	if len(sanitized.APIURL) == 0 {
		sanitized.APIURL = defaults.APIURL
	}
	sanitized.DestinationOrganization = strings.TrimSpace(configuration.DestinationOrganization)
	sanitized.MasterTokenSource = strings.TrimSpace(configuration.MasterTokenSource)
	if len(sanitized.MasterTokenSource) == 0 {
		sanitized.MasterTokenSource = defaults.MasterTokenSource
	}
	sanitized.EnterpriseTokenSource = strings.TrimSpace(configuration.EnterpriseTokenSource)
	if len(sanitized.EnterpriseTokenSource) == 0 {
		sanitized.EnterpriseTokenSource = defaults.EnterpriseTokenSource
	}

	sanitized.IMSIFiles = make([]string, 0, len(configuration.IMSIFiles))
	for _, filePath := range configuration.IMSIFiles {
		if trimmed := strings.TrimSpace(filePath); len(trimmed) > 0 {
			sanitized.IMSIFiles = append(sanitized.IMSIFiles, trimmed)
		}
	}

	if sanitized.RateLimit.Requests <= 0 {
		sanitized.RateLimit.Requests = defaults.RateLimit.Requests
	}
	if sanitized.RateLimit.Window <= 0 {
		sanitized.RateLimit.Window = defaults.RateLimit.Window
	}
	if sanitized.MaxInFlight <= 0 {
		sanitized.MaxInFlight = defaults.MaxInFlight
	}
	sanitized.MetricsFile = strings.TrimSpace(configuration.MetricsFile)

	return sanitized
}

// RateLimiterConfiguration converts the persisted ceiling into limiter settings.
func (configuration CommandConfiguration) RateLimiterConfiguration() ratelimit.Configuration {
	return ratelimit.Configuration{
		RequestsPerWindow: configuration.RateLimit.Requests,
		Window:            configuration.RateLimit.Window,
	}
}
