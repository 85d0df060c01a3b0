// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ketahealth/keta/cmd/keta/internal/conversation"
	"github.com/ketahealth/keta/pkg/ux"
)

// InputReader abstracts reading user input for testability
type InputReader interface {
	// ReadLine reads one line of input, io.EOF when input is exhausted
	ReadLine() (string, error)
}

// StdinReader reads lines from standard input
type StdinReader struct {
	scanner *bufio.Scanner
}

// NewStdinReader creates a reader over os.Stdin
func NewStdinReader() *StdinReader {
	return &StdinReader{scanner: bufio.NewScanner(os.Stdin)}
}

func (r *StdinReader) ReadLine() (string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// MockInputReader replays scripted lines, used in tests
type MockInputReader struct {
	Lines []string
	pos   int
}

func (r *MockInputReader) ReadLine() (string, error) {
	if r.pos >= len(r.Lines) {
		return "", io.EOF
	}
	line := r.Lines[r.pos]
	r.pos++
	return line, nil
}

// ChatRunner drives a line-oriented chat loop over a conversation
// pipeline. Used for piped input and for terminals where the full
// screen UI is not wanted.
type ChatRunner struct {
	pipeline      *conversation.Pipeline
	ui            ux.ChatUI
	input         InputReader
	username      string
	transcriptDir string
}

// NewChatRunner creates a runner over stdin and stdout
func NewChatRunner(pipeline *conversation.Pipeline, username string) *ChatRunner {
	return NewChatRunnerWithDeps(pipeline, ux.NewChatUI(), NewStdinReader(), username)
}

// NewChatRunnerWithDeps creates a runner with injected UI and input.
// Used in tests.
func NewChatRunnerWithDeps(pipeline *conversation.Pipeline, ui ux.ChatUI, input InputReader, username string) *ChatRunner {
	return &ChatRunner{
		pipeline: pipeline,
		ui:       ui,
		input:    input,
		username: username,
	}
}

// PersistTranscripts enables writing the session transcript under dir
// when the loop ends.
func (cr *ChatRunner) PersistTranscripts(dir string) {
	cr.transcriptDir = dir
}

// exit commands accepted at the prompt
func isExitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "/exit", "/quit", "bye":
		return true
	}
	return false
}

// Run executes the chat loop until exit or end of input
func (cr *ChatRunner) Run(ctx context.Context) error {
	cr.ui.Header(cr.username)

	for {
		cr.ui.Prompt()
		line, err := cr.input.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if isExitCommand(line) {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cr.ui.UserEcho(strings.TrimSpace(line))
		cr.ui.Thinking()

		// The pipeline appends the fallback assistant turn itself on
		// failure, so the reply is always the last message. Transport
		// alerts arrive through the pipeline's alert hook.
		_ = cr.pipeline.Send(ctx, line)
		if last, ok := cr.pipeline.Last(); ok && last.Role == conversation.RoleAssistant {
			cr.ui.Response(last.Content)
		}
	}

	cr.ui.SessionEnd(cr.pipeline.Len())

	if cr.transcriptDir != "" && cr.pipeline.Len() > 0 {
		if err := saveTranscript(cr.transcriptDir, cr.pipeline.Messages()); err != nil {
			return fmt.Errorf("saving transcript: %w", err)
		}
	}
	return nil
}

// saveTranscript writes a conversation as plain text, one file per
// session named by end time.
func saveTranscript(dir string, msgs []conversation.Message) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	name := fmt.Sprintf("session-%s.txt", time.Now().Format("20060102-150405"))

	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), m.Role, m.Content)
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0o644)
}
