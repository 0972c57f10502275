// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the Weft server configuration.
type Config struct {
	// DataDir overrides the storage location.
	DataDir string `json:"dataDir,omitempty" yaml:"dataDir"`

	// Port is the HTTP listen port.
	Port int `json:"port,omitempty" yaml:"port"`

	// DefaultAgent selects the default agent id.
	DefaultAgent string `json:"defaultAgent,omitempty" yaml:"defaultAgent"`

	// Model is a global default model, consulted when a plugin declares
	// none.
	Model string `json:"model,omitempty" yaml:"model"`

	// LogLevel is the minimum log level (DEBUG|INFO|WARN|ERROR).
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel"`

	// EnableCORS allows cross-origin requests to the API.
	EnableCORS *bool `json:"enableCORS,omitempty" yaml:"enableCORS"`
}

// Load reads configuration from, in ascending priority: the global config
// dir, the working directory, a WEFT_CONFIG override file, and environment
// variables. JSONC and YAML files are both accepted.
func Load(directory string) (*Config, error) {
	config := &Config{Port: 8080}

	candidates := []string{
		filepath.Join(GetPaths().Config, "weft.json"),
		filepath.Join(GetPaths().Config, "weft.jsonc"),
		filepath.Join(GetPaths().Config, "weft.yaml"),
	}
	if directory != "" {
		candidates = append(candidates,
			filepath.Join(directory, "weft.json"),
			filepath.Join(directory, "weft.jsonc"),
			filepath.Join(directory, "weft.yaml"),
		)
	}
	if override := os.Getenv("WEFT_CONFIG"); override != "" {
		candidates = append(candidates, override)
	}

	for _, path := range candidates {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	if config.DataDir == "" {
		config.DataDir = GetPaths().StoragePath()
	}

	return config, nil
}

// loadFile merges one config file into config. A missing file is skipped; a
// malformed one is an error.
func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var fileConfig Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	merge(config, &fileConfig)
	return nil
}

func merge(target, source *Config) {
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.DefaultAgent != "" {
		target.DefaultAgent = source.DefaultAgent
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.EnableCORS != nil {
		target.EnableCORS = source.EnableCORS
	}
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("WEFT_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("WEFT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	if v := os.Getenv("WEFT_AGENT"); v != "" {
		config.DefaultAgent = v
	}
	if v := os.Getenv("WEFT_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("WEFT_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}
