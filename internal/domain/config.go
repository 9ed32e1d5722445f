// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config holds the runtime configuration unmarshaled from config.toml
// and environment overrides.
type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	DataDir string `mapstructure:"dataDir"`

	// Debrid API access. The token is required for the serve command.
	DebridBaseURL string `mapstructure:"debridBaseUrl"`
	DebridToken   string `mapstructure:"debridToken"`

	// Browser engine tuning.
	PageSize            int `mapstructure:"pageSize"`
	BulkWorkers         int `mapstructure:"bulkWorkers"`
	BulkItemTimeoutSecs int `mapstructure:"bulkItemTimeoutSeconds"`
	RecoveryMaxAttempts int `mapstructure:"recoveryMaxAttempts"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`
}
