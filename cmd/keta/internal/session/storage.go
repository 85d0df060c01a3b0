// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the persistence port for session credentials.
//
// # Description
//
//	Two durable entries back a session: the bearer token and the
//	serialized identity record. The Store is the only writer; other
//	components read credentials through the Store, never through
//	Storage directly.
type Storage interface {
	// Get returns the value for key and whether it was present
	Get(key string) (string, bool, error)

	// Set writes the value for key, creating it if absent
	Set(key, value string) error

	// Delete removes the entry for key. Deleting an absent key is not
	// an error.
	Delete(key string) error
}

// Storage keys. Matched to the names long-time users may find on disk.
const (
	KeyToken    = "token"
	KeyIdentity = "user"
)

// ====== File Storage ======

// FileStorage persists entries as individual files under a directory,
// typically ~/.keta. The token file is created user-readable only.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a FileStorage rooted at dir
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (f *FileStorage) path(key string) string {
	name := key
	if key == KeyIdentity {
		name = "user.json"
	}
	return filepath.Join(f.dir, name)
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (f *FileStorage) Set(key, value string) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path(key), []byte(value), 0o600)
}

func (f *FileStorage) Delete(key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ====== Memory Storage ======

// MemoryStorage is an in-process Storage used in tests
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
