package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	// Managed llama-server process.
	ServerBin string `json:"server_bin" yaml:"server_bin" toml:"server_bin"`
	ServerDir string `json:"server_dir" yaml:"server_dir" toml:"server_dir"`
	Host      string `json:"host" yaml:"host" toml:"host"`
	Port      string `json:"port" yaml:"port" toml:"port"`
	CtxSize   int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`

	// Accelerator selection. MainGPU is a pointer because ordinal 0 is a
	// valid explicit choice; nil selects the primary automatically.
	NoGPU      bool  `json:"no_gpu" yaml:"no_gpu" toml:"no_gpu"`
	GPUDevices []int `json:"gpu_devices" yaml:"gpu_devices" toml:"gpu_devices"`
	MainGPU    *int  `json:"main_gpu" yaml:"main_gpu" toml:"main_gpu"`
	StrictGPU  bool  `json:"strict_gpu" yaml:"strict_gpu" toml:"strict_gpu"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
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
