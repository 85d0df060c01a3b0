// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
	"github.com/ketahealth/keta/pkg/ux"
)

var fieldValidate = validator.New()

func runLoginCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	username, password := loginUsername, loginPassword
	if username == "" || password == "" {
		if !ux.IsInteractive() {
			exitWith(errors.New("no terminal available; pass --username and --password"))
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Username").
					Value(&username).
					Validate(requiredField("username")),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(requiredField("password")),
			),
		)
		if err := form.Run(); err != nil {
			exitWith(err)
		}
	}

	if err := app.sessions.Login(context.Background(), username, password); err != nil {
		fmt.Println(ux.Error("Sign-in failed: " + userMessage(err)))
		os.Exit(1)
	}

	identity := app.sessions.Identity()
	fmt.Println(ux.Success(fmt.Sprintf("Signed in as %s (%s)", identity.Username, identity.Email)))
}

func runRegisterCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}
	if !ux.IsInteractive() {
		exitWith(errors.New("register requires an interactive terminal"))
	}

	var req api.RegisterRequest
	var confirm string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&req.Email).
				Validate(func(s string) error {
					if err := fieldValidate.Var(s, "required,email"); err != nil {
						return errors.New("enter a valid email address")
					}
					return nil
				}),
			huh.NewInput().
				Title("Username").
				Value(&req.Username).
				Validate(requiredField("username")),
			huh.NewInput().
				Title("Full name (optional)").
				Value(&req.FullName),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&req.Password).
				Validate(func(s string) error {
					if len(s) < 8 {
						return errors.New("password must be at least 8 characters")
					}
					return nil
				}),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		exitWith(err)
	}
	if confirm != req.Password {
		exitWith(errors.New("passwords do not match"))
	}

	if err := app.sessions.Register(context.Background(), req); err != nil {
		fmt.Println(ux.Error("Registration failed: " + userMessage(err)))
		os.Exit(1)
	}

	fmt.Println(ux.Success(fmt.Sprintf("Account created; signed in as %s", req.Username)))
}

func runLogoutCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	if !app.sessions.IsAuthenticated() {
		fmt.Println(ux.Muted("Not signed in."))
		return
	}

	app.sessions.Logout()
	fmt.Println(ux.Success("Signed out."))
}

func runWhoamiCommand(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	identity := app.sessions.Identity()
	if identity == nil {
		fmt.Println(ux.Muted("Not signed in. Use 'keta login'."))
		return
	}

	fmt.Println(ux.Title(identity.Username))
	fmt.Println(ux.Muted("email: " + identity.Email))
	if identity.FullName != "" {
		fmt.Println(ux.Muted("name:  " + identity.FullName))
	}
	fmt.Println(ux.Muted("role:  " + identity.Role))
	if identity.LastLoginAt != "" {
		fmt.Println(ux.Muted("last login: " + identity.LastLoginAt))
	}
}

// ====== Helpers ======

func requiredField(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// userMessage flattens an error to something safe to show directly
func userMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Remediation != "" {
			msg += " " + apiErr.Remediation
		}
		return msg
	}
	return err.Error()
}

func exitWith(err error) {
	fmt.Println(ux.Error(err.Error()))
	os.Exit(1)
}
