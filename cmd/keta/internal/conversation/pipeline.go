// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation drives the chat message pipeline for one session.
//
// # Description
//
//	The Pipeline owns an ordered, append-only message list and the
//	send/receive cycle against the inference endpoint. User messages
//	are appended optimistically before the backend answers; the
//	assistant reply (or a fixed fallback on failure) is appended when
//	the exchange resolves. Sends are single-flight per pipeline.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ketahealth/keta/pkg/logging"
)

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Fixed reply texts. Kept identical across clients so transcripts are
// comparable regardless of which surface produced them.
const (
	// NoResponseFallback stands in for an empty answer payload
	NoResponseFallback = "No response from AI"

	// ErrorFallback is appended as the assistant turn on any send failure
	ErrorFallback = "Sorry, I encountered an error. Please try again."

	// AlertText is passed to the alert hook on transport failure
	AlertText = "An error occurred while processing your request."
)

// AnonymousUserID marks unauthenticated chat requests on the wire
const AnonymousUserID = "anonymous"

// Message is one turn in a conversation. Messages are never mutated
// after creation.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Session is the read-side of the session store the pipeline needs
type Session interface {
	IsAuthenticated() bool
	Token() string
}

// Asker sends one chat query and returns the raw answer text
type Asker interface {
	Ask(ctx context.Context, token, userID, query string) (string, error)
}

// AlertFunc receives user-facing alert notifications raised on
// transport failure, independent of the message appended to the list
type AlertFunc func(text string)

// Pipeline owns one conversation's message list and send cycle
type Pipeline struct {
	mu       sync.Mutex
	messages []Message
	busy     bool

	session Session
	asker   Asker
	alert   AlertFunc
	limit   int
	logger  *logging.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithAlertFunc installs the alert hook called on send failure
func WithAlertFunc(f AlertFunc) Option {
	return func(p *Pipeline) { p.alert = f }
}

// WithHistoryLimit caps how many messages are retained; the oldest
// are dropped once the cap is exceeded. Zero means unlimited.
func WithHistoryLimit(n int) Option {
	return func(p *Pipeline) { p.limit = n }
}

// NewPipeline creates a Pipeline bound to a session and asker
func NewPipeline(session Session, asker Asker, opts ...Option) *Pipeline {
	p := &Pipeline{
		session: session,
		asker:   asker,
		logger:  logging.Default().With("component", "conversation"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send submits one user turn and waits for the assistant reply.
//
// # Description
//
//	Empty or whitespace-only content is ignored, as is a call while a
//	prior send is still in flight. Otherwise the user message is
//	appended immediately, then the exchange runs: a successful answer
//	appends an assistant message (with a fixed placeholder when the
//	payload is empty); any failure appends a fixed apologetic
//	assistant message, fires the alert hook, and returns the error.
//	The busy flag is cleared on every path.
//
// # Outputs
//
//	The send error, nil on success and on ignored calls.
func (p *Pipeline) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		return nil
	}
	p.busy = true
	p.appendLocked(Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	})
	p.mu.Unlock()

	token, userID := "", AnonymousUserID
	if p.session.IsAuthenticated() {
		token, userID = p.session.Token(), ""
	}

	answer, err := p.asker.Ask(ctx, token, userID, content)

	if err != nil {
		p.logger.Warn("send failed", "error", err)
		answer = ErrorFallback
	} else if answer == "" {
		answer = NoResponseFallback
	}

	p.mu.Lock()
	p.busy = false
	p.appendLocked(Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now(),
	})
	p.mu.Unlock()

	// Fired outside the lock so a hook may inspect the pipeline.
	if err != nil && p.alert != nil {
		p.alert(AlertText)
	}
	return err
}

func (p *Pipeline) appendLocked(m Message) {
	p.messages = append(p.messages, m)
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = p.messages[len(p.messages)-p.limit:]
	}
}

// Messages returns a copy of the ordered message list
func (p *Pipeline) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Len returns the current message count
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// Busy reports whether a send is currently in flight
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// Last returns the most recent message and whether one exists
func (p *Pipeline) Last() (Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return Message{}, false
	}
	return p.messages[len(p.messages)-1], true
}
