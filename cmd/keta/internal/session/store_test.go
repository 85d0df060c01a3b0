// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
)

// mockBackend implements Backend with scripted responses
type mockBackend struct {
	loginToken    string
	loginErr      error
	registerErr   error
	meIdentity    *api.Identity
	meErr         error
	loginCalls    int
	registerCalls int
}

func (m *mockBackend) Login(_ context.Context, username, password string) (string, error) {
	m.loginCalls++
	if m.loginErr != nil {
		return "", m.loginErr
	}
	return m.loginToken, nil
}

func (m *mockBackend) Register(_ context.Context, _ api.RegisterRequest) error {
	m.registerCalls++
	return m.registerErr
}

func (m *mockBackend) Me(_ context.Context, token string) (*api.Identity, error) {
	if m.meErr != nil {
		return nil, m.meErr
	}
	return m.meIdentity, nil
}

func aliceIdentity() *api.Identity {
	return &api.Identity{ID: "1", Email: "alice@example.org", Username: "alice", Role: "user"}
}

func TestLoginEstablishesSession(t *testing.T) {
	backend := &mockBackend{loginToken: "T", meIdentity: aliceIdentity()}
	storage := NewMemoryStorage()
	store := NewStore(backend, storage)

	require.NoError(t, store.Login(context.Background(), "alice", "secret"))

	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, StateAuthenticated, store.State())
	assert.Equal(t, "T", store.Token())
	assert.Equal(t, "alice", store.Identity().Username)

	persisted, ok, _ := storage.Get(KeyToken)
	require.True(t, ok)
	assert.Equal(t, "T", persisted)

	rawIdentity, ok, _ := storage.Get(KeyIdentity)
	require.True(t, ok)
	var identity api.Identity
	require.NoError(t, json.Unmarshal([]byte(rawIdentity), &identity))
	assert.Equal(t, *aliceIdentity(), identity)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	backend := &mockBackend{loginErr: errors.New("bad credentials")}
	storage := NewMemoryStorage()
	store := NewStore(backend, storage)
	store.Restore()

	err := store.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.Token())
	assert.Equal(t, 0, storage.Len(), "nothing may be persisted on failure")
}

func TestLoginIdentityLookupFailurePersistsNothing(t *testing.T) {
	backend := &mockBackend{loginToken: "T", meErr: errors.New("me failed")}
	storage := NewMemoryStorage()
	store := NewStore(backend, storage)
	store.Restore()

	err := store.Login(context.Background(), "alice", "secret")
	require.Error(t, err)

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 0, storage.Len(), "no partial credential without a matching identity")
}

func TestRestoreRoundTrip(t *testing.T) {
	backend := &mockBackend{loginToken: "T", meIdentity: aliceIdentity()}
	storage := NewMemoryStorage()

	first := NewStore(backend, storage)
	require.NoError(t, first.Login(context.Background(), "alice", "secret"))

	// A fresh process restores from the same storage.
	second := NewStore(backend, storage)
	assert.Equal(t, StateUnknown, second.State())
	second.Restore()

	assert.True(t, second.IsAuthenticated())
	assert.Equal(t, "T", second.Token())
	assert.Equal(t, *aliceIdentity(), *second.Identity())
}

func TestRestoreCorruptedIdentity(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Set(KeyToken, "T")
	storage.Set(KeyIdentity, "{not json")

	store := NewStore(&mockBackend{}, storage)
	store.Restore()

	assert.Equal(t, StateAnonymous, store.State())
	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, 0, storage.Len(), "corrupted entries must be cleared")

	// Restoring again from the now-empty storage stays anonymous.
	store.Restore()
	assert.Equal(t, StateAnonymous, store.State())
	assert.Equal(t, 0, storage.Len())
}

func TestRestoreMissingPieces(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *MemoryStorage)
	}{
		{"empty storage", func(m *MemoryStorage) {}},
		{"token only", func(m *MemoryStorage) { m.Set(KeyToken, "T") }},
		{"identity only", func(m *MemoryStorage) {
			raw, _ := json.Marshal(aliceIdentity())
			m.Set(KeyIdentity, string(raw))
		}},
		{"identity without id", func(m *MemoryStorage) {
			m.Set(KeyToken, "T")
			m.Set(KeyIdentity, `{"username":"alice"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			tt.setup(storage)

			store := NewStore(&mockBackend{}, storage)
			store.Restore()

			assert.Equal(t, StateAnonymous, store.State())
			assert.Equal(t, 0, storage.Len())
		})
	}
}

func TestLogout(t *testing.T) {
	backend := &mockBackend{loginToken: "T", meIdentity: aliceIdentity()}
	storage := NewMemoryStorage()
	store := NewStore(backend, storage)
	require.NoError(t, store.Login(context.Background(), "alice", "secret"))

	store.Logout()

	assert.Equal(t, StateAnonymous, store.State())
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.Token())
	assert.Nil(t, store.Identity())
	assert.Equal(t, 0, storage.Len())
}

func TestRegisterLogsInAfterSuccess(t *testing.T) {
	backend := &mockBackend{loginToken: "T", meIdentity: aliceIdentity()}
	storage := NewMemoryStorage()
	store := NewStore(backend, storage)

	err := store.Register(context.Background(), api.RegisterRequest{
		Email:    "alice@example.org",
		Username: "alice",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.registerCalls)
	assert.Equal(t, 1, backend.loginCalls)
	assert.True(t, store.IsAuthenticated())
}

func TestRegisterFailureSkipsLogin(t *testing.T) {
	backend := &mockBackend{registerErr: errors.New("email already registered")}
	store := NewStore(backend, NewMemoryStorage())

	err := store.Register(context.Background(), api.RegisterRequest{Username: "alice", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, backend.loginCalls)
	assert.False(t, store.IsAuthenticated())
}

func TestIsAdmin(t *testing.T) {
	admin := aliceIdentity()
	admin.Role = "admin"
	backend := &mockBackend{loginToken: "T", meIdentity: admin}
	store := NewStore(backend, NewMemoryStorage())
	require.NoError(t, store.Login(context.Background(), "alice", "secret"))

	assert.True(t, store.IsAdmin())
}

func TestFileStorage(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	_, ok, err := fs.Get(KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Set(KeyToken, "T"))
	require.NoError(t, fs.Set(KeyIdentity, `{"id":"1"}`))

	v, ok, err := fs.Get(KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T", v)

	require.NoError(t, fs.Delete(KeyToken))
	require.NoError(t, fs.Delete(KeyToken), "deleting an absent key is not an error")

	_, ok, err = fs.Get(KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
