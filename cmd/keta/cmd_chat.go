// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ketahealth/keta/cmd/keta/config"
	"github.com/ketahealth/keta/cmd/keta/internal/conversation"
	"github.com/ketahealth/keta/pkg/ux"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	username := ""
	if identity := app.sessions.Identity(); identity != nil {
		username = identity.Username
	}

	// Full-screen UI only on a real terminal; piped sessions get the
	// line-oriented loop so transcripts stay machine-readable.
	if ux.IsInteractive() && isatty.IsTerminal(os.Stdin.Fd()) {
		pipeline := newPipeline(app, nil)
		program := tea.NewProgram(newChatModel(pipeline, username), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			exitWith(err)
		}
		persistTranscript(app.cfg, pipeline)
		return
	}

	ui := ux.NewChatUI()
	pipeline := newPipeline(app, ui.Error)
	runner := NewChatRunnerWithDeps(pipeline, ui, NewStdinReader(), username)
	if dir := transcriptDir(app.cfg); dir != "" {
		runner.PersistTranscripts(dir)
	}
	if err := runner.Run(context.Background()); err != nil {
		exitWith(err)
	}
}

func runAskCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		exitWith(fmt.Errorf("usage: keta ask [question]"))
	}

	pipeline := newPipeline(app, nil)

	spinner := ux.NewSpinner(ux.SpinnerDots, "Asking the assistant")
	spinner.Start()
	sendErr := pipeline.Send(context.Background(), question)
	spinner.Stop()

	if last, ok := pipeline.Last(); ok && last.Role == conversation.RoleAssistant {
		fmt.Println(last.Content)
	}
	if sendErr != nil {
		fmt.Println(ux.Error(conversation.AlertText))
		os.Exit(1)
	}
}

// newPipeline builds a conversation pipeline wired to the session and
// backend, with the optional alert sink.
func newPipeline(app *app, alert func(string)) *conversation.Pipeline {
	opts := []conversation.Option{
		conversation.WithHistoryLimit(app.cfg.Chat.HistoryLimit),
	}
	if alert != nil {
		opts = append(opts, conversation.WithAlertFunc(alert))
	}
	return conversation.NewPipeline(app.sessions, app.client, opts...)
}

func transcriptDir(cfg *config.Config) string {
	if !cfg.Chat.PersistSessions {
		return ""
	}
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sessions")
}

// persistTranscript writes the finished TUI session the same way the
// line runner does.
func persistTranscript(cfg *config.Config, pipeline *conversation.Pipeline) {
	dir := transcriptDir(cfg)
	if dir == "" || pipeline.Len() == 0 {
		return
	}
	if err := saveTranscript(dir, pipeline.Messages()); err != nil {
		fmt.Println(ux.Warning("could not save transcript: " + err.Error()))
	}
}
