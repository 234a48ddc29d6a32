package app

import "fmt"

// Config holds everything an App instance needs to run.
type Config struct {
	// ConfigPath locates the HCL file describing the configured transformers.
	ConfigPath string

	// HostURL overrides the host url from the config file when non-empty.
	HostURL string

	// Plugin is the name announced to the host; shown in its dialogs.
	Plugin string

	HealthcheckPort int
	LogFormat       string
	LogLevel        string
}

// NewConfig validates and normalizes a Config.
func NewConfig(c Config) (*Config, error) {
	if c.ConfigPath == "" {
		return nil, fmt.Errorf("a configuration file path is required")
	}
	if c.Plugin == "" {
		c.Plugin = "tableflow"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return &c, nil
}
