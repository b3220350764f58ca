// Package config resolves backlogd configuration from defaults, an
// optional JSON config file, environment variables, and CLI overrides, in
// that order of precedence (highest last).
//
// The config file is JSON with comments and trailing commas allowed
// (parsed through hujson), so it can carry inline notes:
//
//	{
//	  // Where the products tree lives.
//	  "products_root": "_kano/backlog/products",
//	  "port": 8787,
//	}
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".backlogd.json"

// Environment variables honored when flags and config file are silent.
const (
	EnvProductsRoot = "KANO_BACKLOG_PRODUCTS_ROOT"
	EnvPort         = "KANO_WEBVIEW_PORT"
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrPortOutOfRange     = errors.New("port must be between 1 and 65535")
	ErrProductsRootEmpty  = errors.New("products_root cannot be empty")
)

// Config holds all configuration options.
type Config struct {
	ProductsRoot string `json:"products_root"`
	Port         int    `json:"port"`
	LogFile      string `json:"log_file,omitempty"`
}

// Overrides carries CLI flag values. Only fields whose Has* flag is set
// take effect, so an explicit flag always beats file and environment.
type Overrides struct {
	ProductsRoot    string
	HasProductsRoot bool
	Port            int
	HasPort         bool
	LogFile         string
	HasLogFile      bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ProductsRoot: filepath.Join("_kano", "backlog", "products"),
		Port:         8787,
	}
}

// Load resolves the effective configuration.
//
// Precedence, lowest to highest: defaults, project config file
// (.backlogd.json in workDir, or an explicit configPath which must exist),
// environment, CLI overrides.
func Load(workDir, configPath string, overrides Overrides, env map[string]string) (Config, error) {
	cfg := DefaultConfig()

	fileCfg, loaded, err := loadConfigFile(workDir, configPath)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = mergeConfig(cfg, fileCfg)
	}

	if root := env[EnvProductsRoot]; root != "" {
		cfg.ProductsRoot = root
	}

	if portStr := env[EnvPort]; portStr != "" {
		port, convErr := strconv.Atoi(portStr)
		if convErr != nil {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrConfigInvalid, EnvPort, portStr)
		}

		cfg.Port = port
	}

	if overrides.HasProductsRoot {
		cfg.ProductsRoot = overrides.ProductsRoot
	}

	if overrides.HasPort {
		cfg.Port = overrides.Port
	}

	if overrides.HasLogFile {
		cfg.LogFile = overrides.LogFile
	}

	err = validate(cfg)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save writes cfg to path atomically, pretty-printed. Used by backlogd init
// to drop a starter config file.
func Save(fsys fs.FS, path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	data = append(data, '\n')

	err = fsys.WriteFileAtomic(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// loadConfigFile reads the project config file. The default file is
// optional; an explicitly named one must exist.
func loadConfigFile(workDir, configPath string) (Config, bool, error) {
	var (
		cfgFile   string
		mustExist bool
	)

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
	}

	data, err := os.ReadFile(cfgFile) //nolint:gosec // path is resolved from workDir
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
			}

			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("read config %s: %w", cfgFile, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, cfgFile, err)
	}

	return cfg, true, nil
}

// mergeConfig overlays non-zero fields of overlay onto base.
func mergeConfig(base, overlay Config) Config {
	if overlay.ProductsRoot != "" {
		base.ProductsRoot = overlay.ProductsRoot
	}

	if overlay.Port != 0 {
		base.Port = overlay.Port
	}

	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}

	return base
}

func validate(cfg Config) error {
	if cfg.ProductsRoot == "" {
		return ErrProductsRootEmpty
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrPortOutOfRange, cfg.Port)
	}

	return nil
}
