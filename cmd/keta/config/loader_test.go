// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, 120, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, 50, cfg.Upload.MaxSizeMB)
	assert.ElementsMatch(t, []string{".pdf", ".docx", ".txt", ".md"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Chat.PersistSessions)
	assert.True(t, cfg.UX.ShowDisclaimer)

	require.NoError(t, validate.Struct(cfg), "defaults must pass their own validation")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keta.yaml")

	content := `backend:
  url: https://api.example.org
  timeout_seconds: 30
upload:
  max_size_mb: 10
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org", cfg.Backend.URL)
	assert.Equal(t, 30, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Upload.MaxSizeMB)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unspecified fields keep their defaults.
	assert.ElementsMatch(t, []string{".pdf", ".docx", ".txt", ".md"}, cfg.Upload.AllowedExtensions)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keta.yaml")

	tests := []struct {
		name    string
		content string
	}{
		{"bad url", "backend:\n  url: not-a-url\n"},
		{"bad level", "logging:\n  level: verbose\n"},
		{"timeout too large", "backend:\n  url: http://localhost:8000\n  timeout_seconds: 9000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCreateDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "keta.yaml")

	require.NoError(t, createDefault(path))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}
