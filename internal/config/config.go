// Package config loads application configuration with layered
// precedence: built-in defaults, then epmforge.yaml, then EPMFORGE_
// environment variables, then explicitly set command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default configuration values.
const (
	DefaultPort        = 8000
	DefaultStateFile   = "epmforge.db"
	DefaultEnv         = "dev"
	DefaultOutput      = "table"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gemma3:4b"
)

// Config holds the resolved application configuration.
type Config struct {
	Port        int    `koanf:"port"`
	StatePath   string `koanf:"state_path"`
	Environment string `koanf:"environment"`
	OllamaURL   string `koanf:"ollama_url"`
	OllamaModel string `koanf:"ollama_model"`
	Verbose     bool   `koanf:"verbose"`
	Output      string `koanf:"output"`
}

// findConfigFile finds the config file to use.
// Priority: explicit path > epmforge.yaml > epmforge.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("epmforge.yaml"); err == nil {
		return "epmforge.yaml"
	}
	if _, err := os.Stat("epmforge.yml"); err == nil {
		return "epmforge.yml"
	}
	return ""
}

// Load builds the configuration from all layers. cfgFile may be empty
// to search the working directory; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"port":         DefaultPort,
		"state_path":   DefaultStateFile,
		"environment":  DefaultEnv,
		"ollama_url":   DefaultOllamaURL,
		"ollama_model": DefaultOllamaModel,
		"verbose":      false,
		"output":       DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// 3. Environment variables (EPMFORGE_ prefix)
	// Transform: EPMFORGE_STATE_PATH -> state_path
	if err := k.Load(env.Provider("EPMFORGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "EPMFORGE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses --state for brevity, the config key is state_path
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}
