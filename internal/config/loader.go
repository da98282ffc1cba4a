package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigDir is the project-relative directory holding config.yml.
const ConfigDir = ".linkgraph"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (LINKGRAPH_*)
// 2. Config file (.linkgraph/config.yml or .linkgraph/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, ConfigDir))

	// LINKGRAPH_ANALYSIS_WORKERS -> analysis.workers
	v.SetEnvPrefix("LINKGRAPH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - defaults + env vars apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// Analysis configuration
	v.BindEnv("analysis.workers")
	v.BindEnv("analysis.unoptimized")
	v.BindEnv("analysis.filter_file")
	v.BindEnv("analysis.clone_path")

	// Weights configuration
	v.BindEnv("weights.move")
	v.BindEnv("weights.copy")
	v.BindEnv("weights.constant")
	v.BindEnv("weights.scale_by_call_kind")

	// Workspace configuration
	v.BindEnv("workspace.ir_dir")
	v.BindEnv("workspace.cache_dir")
	v.BindEnv("workspace.merged_file")
	v.BindEnv("workspace.cache_capacity")

	// Storage configuration
	v.BindEnv("storage.db_path")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("analysis.workers", defaults.Analysis.Workers)
	v.SetDefault("analysis.unoptimized", defaults.Analysis.Unoptimized)
	v.SetDefault("analysis.filter_file", defaults.Analysis.FilterFile)
	v.SetDefault("analysis.runtime_units", defaults.Analysis.RuntimeUnits)
	v.SetDefault("analysis.toolchain_units", defaults.Analysis.ToolchainUnits)
	v.SetDefault("analysis.clone_path", defaults.Analysis.ClonePath)
	v.SetDefault("analysis.call_paths", defaults.Analysis.CallPaths)

	v.SetDefault("weights.move", defaults.Weights.Move)
	v.SetDefault("weights.copy", defaults.Weights.Copy)
	v.SetDefault("weights.constant", defaults.Weights.Constant)
	v.SetDefault("weights.calls", defaults.Weights.Calls)
	v.SetDefault("weights.scale_by_call_kind", defaults.Weights.ScaleByCallKind)

	v.SetDefault("workspace.ir_dir", defaults.Workspace.IRDir)
	v.SetDefault("workspace.cache_dir", defaults.Workspace.CacheDir)
	v.SetDefault("workspace.merged_file", defaults.Workspace.MergedFile)
	v.SetDefault("workspace.include", defaults.Workspace.Include)
	v.SetDefault("workspace.cache_capacity", defaults.Workspace.CacheCapacity)

	v.SetDefault("storage.db_path", defaults.Storage.DBPath)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
