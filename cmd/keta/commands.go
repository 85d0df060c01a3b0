// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ketahealth/keta/cmd/keta/config"
	"github.com/ketahealth/keta/cmd/keta/internal/api"
	"github.com/ketahealth/keta/cmd/keta/internal/registry"
	"github.com/ketahealth/keta/cmd/keta/internal/session"
	"github.com/ketahealth/keta/cmd/keta/internal/upload"
	"github.com/ketahealth/keta/pkg/logging"
	"github.com/ketahealth/keta/pkg/ux"
)

// --- Global Command Variables ---
var (
	backendURL       string // CLI override for backend.url
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	docsFilter       string
	loginUsername    string
	loginPassword    string

	rootCmd = &cobra.Command{
		Use:   "keta",
		Short: "A cli client for the Ketamine Therapy AI assistant",
		Long: `keta is the terminal client for the Ketamine Therapy AI assistant.
				It lets you chat with the assistant, manage your account, and
				upload reference documents into the knowledge base.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session with the assistant",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks the assistant a single question and prints the answer",
		Run:   runAskCommand, // Defined in cmd_chat.go
	}

	// --- Account ---
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Sign in and save your session on this machine",
		Run:   runLoginCommand, // Defined in cmd_auth.go
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the saved session",
		Run:   runLogoutCommand, // Defined in cmd_auth.go
	}
	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Create a new account and sign in",
		Run:   runRegisterCommand, // Defined in cmd_auth.go
	}
	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the saved session",
		Run:   runWhoamiCommand, // Defined in cmd_auth.go
	}

	// --- Documents ---
	docsCmd = &cobra.Command{
		Use:   "docs",
		Short: "Manage reference documents in the knowledge base",
	}
	docsUploadCmd = &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a document (.pdf, .docx, .txt, .md)",
		Args:  cobra.ExactArgs(1),
		Run:   runDocsUpload, // Defined in cmd_docs.go
	}
	docsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Run:   runDocsList, // Defined in cmd_docs.go
	}

	// --- Admin ---
	adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Administrator operations on the shared knowledge base",
	}
	adminUploadCmd = &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a document into the shared knowledge base",
		Args:  cobra.ExactArgs(1),
		Run:   runAdminUpload, // Defined in cmd_docs.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), standard, minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "",
		"Backend base URL (overrides KETA_BACKEND_URL and the config file)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)

	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "Username (prompted when omitted)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted; prefer the prompt)")
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsUploadCmd)
	docsCmd.AddCommand(docsListCmd)
	docsListCmd.Flags().StringVar(&docsFilter, "filter", "all",
		"Relevance filter: all, relevant, or non-relevant")

	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminUploadCmd)
}

// ====== App Wiring ======

// app bundles the long-lived collaborators every command needs.
type app struct {
	cfg      *config.Config
	client   *api.Client
	sessions *session.Store
	registry *registry.Registry
	uploads  *upload.Coordinator
	logger   *logging.Logger
}

// newApp loads config, builds the API client, and restores the saved
// session. Every command goes through here so credential handling
// stays in one place.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Configure(logging.Config{
		Level:   logging.Level(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "keta",
	})

	// Flag and environment already set the level in PersistentPreRun;
	// the config file only contributes what they left unset.
	p := ux.GetPersonality()
	p.ShowDisclaimer = cfg.UX.ShowDisclaimer
	// Machine mode (set by flag, env, or a non-TTY) is never upgraded
	// by the config file.
	if personalityLevel == "" && os.Getenv("KETA_PERSONALITY") == "" &&
		cfg.UX.Personality != "" && p.Level != ux.PersonalityMachine {
		p.Level = ux.ParsePersonalityLevel(cfg.UX.Personality)
	}
	ux.SetPersonality(p)

	base := api.ResolveBaseURL(backendURL, cfg.Backend.URL)
	client := api.NewClient(base, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	store := session.NewStore(client, session.NewFileStorage(dir))
	store.Restore()

	reg := registry.NewRegistry(store, client)

	a := &app{
		cfg:      cfg,
		client:   client,
		sessions: store,
		registry: reg,
		logger:   logger,
	}
	a.uploads = upload.NewCoordinator(store, client, func() {
		// Refresh is best-effort after an upload; a listing failure
		// must not demote the upload result.
		ctx, cancel := docsContext(cfg)
		defer cancel()
		if err := reg.Refresh(ctx, registry.FilterAll); err != nil {
			a.logger.Warn("post-upload refresh failed", "error", err)
		}
	})
	return a, nil
}
