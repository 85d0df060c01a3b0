// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

// Config is the root configuration for the keta CLI
type Config struct {
	Backend Backend `yaml:"backend" validate:"required"`
	Chat    Chat    `yaml:"chat"`
	Upload  Upload  `yaml:"upload"`
	Logging Logging `yaml:"logging"`
	UX      UX      `yaml:"ux"`
}

// Backend holds connection settings for the therapy API server
type Backend struct {
	// URL is the base URL of the backend, no trailing slash
	URL string `yaml:"url" validate:"required,url"`

	// TimeoutSeconds bounds each HTTP request. Chat answers can take a
	// while on local models, so the default is generous.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=1,lte=600"`
}

// Chat holds conversation behavior settings
type Chat struct {
	// HistoryLimit caps how many messages are kept in a session
	// transcript. Zero means unlimited.
	HistoryLimit int `yaml:"history_limit" validate:"gte=0"`

	// PersistSessions writes session transcripts to disk so a later
	// invocation can resume them.
	PersistSessions bool `yaml:"persist_sessions"`
}

// Upload holds document upload settings
type Upload struct {
	// MaxSizeMB rejects files larger than this before any request is made
	MaxSizeMB int `yaml:"max_size_mb" validate:"gte=1,lte=1024"`

	// AllowedExtensions lists acceptable file suffixes, with leading dot
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// Logging holds log output settings
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
}

// UX holds presentation settings
type UX struct {
	// Personality is one of full, standard, minimal, machine
	Personality string `yaml:"personality" validate:"oneof=full standard minimal machine"`

	// ShowDisclaimer prints the educational-use notice in chat headers
	ShowDisclaimer bool `yaml:"show_disclaimer"`
}
