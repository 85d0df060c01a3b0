// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session owns the authenticated-identity lifecycle.
//
// # Description
//
//	The Store holds the current session, either anonymous or bound to a
//	user identity plus bearer token, and is the sole writer of the
//	persisted credential pair. A session is never partial: either both
//	token and identity are held, or neither is.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
	"github.com/ketahealth/keta/pkg/logging"
)

// State is the session lifecycle state
type State int

const (
	// StateUnknown means Restore has not yet run
	StateUnknown State = iota

	// StateAnonymous means no credential is held
	StateAnonymous

	// StateAuthenticated means both token and identity are held
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Backend is the subset of the API client the Store needs
type Backend interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Me(ctx context.Context, token string) (*api.Identity, error)
}

// Store owns session state and its persistence.
//
// # Assumptions
//
//	Safe for concurrent reads; mutations are serialized internally.
type Store struct {
	mu       sync.RWMutex
	state    State
	token    string
	identity *api.Identity

	backend Backend
	storage Storage
	logger  *logging.Logger
}

// NewStore creates a Store in the Unknown state. Call Restore before
// relying on IsAuthenticated.
func NewStore(backend Backend, storage Storage) *Store {
	return &Store{
		state:   StateUnknown,
		backend: backend,
		storage: storage,
		logger:  logging.Default().With("component", "session"),
	}
}

// Restore loads the persisted credential pair.
//
// # Description
//
//	If both token and identity are present and the identity parses,
//	the session becomes authenticated. Any missing or malformed entry
//	clears the persisted pair and leaves the session anonymous.
//	Restore never fails; the worst outcome is anonymous.
func (s *Store) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, tokenOK, err := s.storage.Get(KeyToken)
	if err != nil {
		s.logger.Warn("reading persisted token", "error", err)
		s.resetLocked()
		return
	}

	raw, identOK, err := s.storage.Get(KeyIdentity)
	if err != nil {
		s.logger.Warn("reading persisted identity", "error", err)
		s.resetLocked()
		return
	}

	if !tokenOK || !identOK || token == "" {
		s.resetLocked()
		return
	}

	var identity api.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.ID == "" {
		s.logger.Warn("persisted identity is malformed, clearing session")
		s.resetLocked()
		return
	}

	s.state = StateAuthenticated
	s.token = token
	s.identity = &identity
	s.logger.Info("session restored", "username", identity.Username)
}

// Login authenticates and persists the resulting session.
//
// # Limitations
//
//	Nothing is persisted until both the token exchange and the
//	identity lookup succeed, so a failed login leaves both memory and
//	disk exactly as they were.
func (s *Store) Login(ctx context.Context, username, password string) error {
	token, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return err
	}

	identity, err := s.backend.Me(ctx, token)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(KeyToken, token); err != nil {
		s.logger.Warn("persisting token", "error", err)
	}
	if err := s.storage.Set(KeyIdentity, string(raw)); err != nil {
		s.logger.Warn("persisting identity", "error", err)
	}

	s.state = StateAuthenticated
	s.token = token
	s.identity = identity
	return nil
}

// Register creates an account, then logs in with the same credentials
// to establish the session. A registration failure is returned without
// attempting login.
func (s *Store) Register(ctx context.Context, req api.RegisterRequest) error {
	if err := s.backend.Register(ctx, req); err != nil {
		return err
	}
	return s.Login(ctx, req.Username, req.Password)
}

// Logout clears the session and its persisted entries. It has no
// failure mode; storage errors are logged and swallowed.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.logger.Info("logged out")
}

func (s *Store) resetLocked() {
	if err := s.storage.Delete(KeyToken); err != nil {
		s.logger.Warn("clearing persisted token", "error", err)
	}
	if err := s.storage.Delete(KeyIdentity); err != nil {
		s.logger.Warn("clearing persisted identity", "error", err)
	}
	s.state = StateAnonymous
	s.token = ""
	s.identity = nil
}

// ====== Reads ======

// State returns the current lifecycle state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether an identity is currently held
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated && s.identity != nil
}

// Token returns the bearer credential, empty when anonymous
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns a copy of the held identity, nil when anonymous
func (s *Store) Identity() *api.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// IsAdmin reports whether the session belongs to an administrator
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.IsAdmin()
}
