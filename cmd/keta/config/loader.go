// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the keta CLI configuration.
//
// # Description
//
//	Configuration lives at ~/.keta/keta.yaml and is created with
//	defaults on first run. Values can be overridden per-invocation by
//	flags and environment variables; the file only provides the base.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".keta"
	configFileName = "keta.yaml"

	// DefaultBackendURL is used when no config, env, or flag supplies one
	DefaultBackendURL = "http://localhost:8000"
)

var (
	loadedConfig *Config
	loadErr      error
	loadOnce     sync.Once
	validate     = validator.New()
)

// Load returns the process-wide configuration, reading the config file
// on first call and creating it with defaults if absent.
func Load() (*Config, error) {
	loadOnce.Do(func() {
		loadedConfig, loadErr = loadFromDisk()
	})
	return loadedConfig, loadErr
}

// LoadFile reads and validates a config from an explicit path, bypassing
// the cached singleton. Missing files are not created.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Path returns the config file location
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Dir returns the keta state directory (~/.keta)
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

func loadFromDisk() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Defaults returns a Config populated with default values
func Defaults() *Config {
	return &Config{
		Backend: Backend{
			URL:            DefaultBackendURL,
			TimeoutSeconds: 120,
		},
		Chat: Chat{
			HistoryLimit:    0,
			PersistSessions: true,
		},
		Upload: Upload{
			MaxSizeMB:         50,
			AllowedExtensions: []string{".pdf", ".docx", ".txt", ".md"},
		},
		Logging: Logging{
			Level: "info",
			Dir:   "~/.keta/logs",
		},
		UX: UX{
			Personality:    "full",
			ShowDisclaimer: true,
		},
	}
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return err
	}

	header := []byte("# keta CLI configuration\n# Values here are overridden by KETA_* environment variables and flags.\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
