package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Settings is the client-provided server configuration, delivered through
// initializationOptions or workspace/didChangeConfiguration.
type Settings struct {
	EnableLintOnSave      bool     `json:"enableLintOnSave"`
	EnableCodeAction      bool     `json:"enableCodeAction"`
	LintTargets           []string `json:"lintTargets"`
	FormatTargets         []string `json:"formatTargets"`
	ToolPath              string   `json:"toolPath"`
	AnalysisTimeoutSec    int      `json:"analysisTimeoutSeconds"`
	MaxConcurrentAnalyses int      `json:"maxConcurrentAnalyses"`
	DocumentSync          string   `json:"documentSync"` // "incremental" or "full"
}

var defaultSettings = Settings{
	EnableLintOnSave:      true,
	EnableCodeAction:      true,
	LintTargets:           []string{"lint"},
	FormatTargets:         []string{"format", "lint"},
	ToolPath:              "pysen",
	AnalysisTimeoutSec:    60,
	MaxConcurrentAnalyses: 4,
	DocumentSync:          "incremental",
}

// DefaultSettings returns a copy of the built-in defaults.
func DefaultSettings() Settings {
	return defaultSettings
}

// LoadSettings merges the given value over the defaults.
func LoadSettings(v any) (Settings, error) {
	cfg := defaultSettings

	data, err := json.Marshal(v)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal into Settings: %w", err)
	}

	return cfg, nil
}

// Timeout returns the analysis timeout as a duration.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.AnalysisTimeoutSec) * time.Second
}

// Configuration is the resolved project configuration handed to every
// analysis run. It is replaced wholesale on reload, never patched.
type Configuration struct {
	ResolvedAt  time.Time
	Root        string
	ProjectFile string
	BaseDir     string
	Settings    Settings
}
