package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load assembles the configuration: built-in defaults, then the config file
// per the search order, then environment overrides. A missing file at the
// well-known locations is fine; a file that exists but cannot be parsed is
// an error.
func Load(path string) (*Config, error) {
	// Pick up a local .env first so the overrides below can see it. A
	// missing .env is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", resolved, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Notify.SMTP.Host != "" && cfg.Notify.SMTP.Port == 0 {
		cfg.Notify.SMTP.Port = 587
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePath picks the config file: the explicit path, $CLASSBOOK_CONFIG,
// ./classbook.yaml, then ~/.classbook/config.yaml. Only the well-known
// locations are allowed to be absent.
func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv("CLASSBOOK_CONFIG"); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", fmt.Errorf("config file %s: %w", env, err)
		}
		return env, nil
	}

	if _, err := os.Stat("classbook.yaml"); err == nil {
		return "classbook.yaml", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", nil
	}
	path := filepath.Join(home, ".classbook", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", nil
}

// applyEnv overlays the CLASSBOOK_* variables on top of whatever the file
// set. CI lockdown happens later, when BuildBrowser renders the options.
func (c *Config) applyEnv() error {
	if v := os.Getenv("CLASSBOOK_CLASS"); v != "" {
		c.Target.Class = v
	}
	if v := os.Getenv("CLASSBOOK_TIME"); v != "" {
		c.Target.Time = v
	}
	if v := os.Getenv("CLASSBOOK_LOCATION"); v != "" {
		c.Target.Location = v
	}
	if v := os.Getenv("CLASSBOOK_DAYS_AHEAD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CLASSBOOK_DAYS_AHEAD %q: %w", v, err)
		}
		c.Target.DaysAhead = n
	}
	if v := os.Getenv("CLASSBOOK_HEADLESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CLASSBOOK_HEADLESS %q: %w", v, err)
		}
		c.Browser.Headless = b
	}
	return nil
}
