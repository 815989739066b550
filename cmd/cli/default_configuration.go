package cli

import (
	"bytes"
	_ "embed"
)

// defaultConfigurationYAML mirrors migrate.DefaultCommandConfiguration so a fresh
// install documents every key it reads.
//
//go:embed default_config.yaml
var defaultConfigurationYAML []byte

// EmbeddedDefaultConfiguration returns a copy of the bundled configuration and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return bytes.Clone(defaultConfigurationYAML), configurationTypeConstant
}
