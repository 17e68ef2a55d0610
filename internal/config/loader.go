package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"musicd/pkg/types"
)

// Config holds runtime parameters shared by the musicd server and the
// musicgen CLI. Zero values mean "unspecified" and will be replaced by
// defaults in main.
type Config struct {
	Addr                   string          `json:"addr" yaml:"addr" toml:"addr"`
	OutputDir              string          `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	BackendURL             string          `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	BackendAPIKey          string          `json:"backend_api_key" yaml:"backend_api_key" toml:"backend_api_key"`
	Device                 string          `json:"device" yaml:"device" toml:"device"`
	MaxQueueDepth          int             `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds         int             `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	LoadTimeoutSeconds     int             `json:"load_timeout_seconds" yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	GenerateTimeoutSeconds int             `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	MaxTokensLimit         int             `json:"max_tokens_limit" yaml:"max_tokens_limit" toml:"max_tokens_limit"`
	Preload                []string        `json:"preload" yaml:"preload" toml:"preload"`
	LogLevel               string          `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat              string          `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSEnabled            bool            `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins            []string        `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	Variants               []types.Variant `json:"variants" yaml:"variants" toml:"variants"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
