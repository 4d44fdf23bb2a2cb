package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces analystd environment variables.
	envPrefix = "ANALYSTD_"
)

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ANALYSTD_DATABASE_PATH, ANALYSTD_SERVER_PORT, ...)
//  2. YAML config file (configPath; skipped when empty or missing)
//  3. Defaults from Default()
//
// Environment variable mapping splits on the first underscore after the
// prefix: ANALYSTD_ORCHESTRATOR_MAX_REPAIRS -> orchestrator.max_repairs.
//
// Config files larger than 1MB or group/world-readable are rejected:
// they carry API keys.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", ErrInvalidConfig, configPath, maxConfigFileSize)
			}
			if info.Mode().Perm()&0o077 != 0 {
				return nil, fmt.Errorf("%w: config file %s must have 0600 permissions, has %04o", ErrInvalidConfig, configPath, info.Mode().Perm())
			}

			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("opening config file: %w", err)
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}

			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// ANALYSTD_SECTION_FIELD_NAME -> section.field_name
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
