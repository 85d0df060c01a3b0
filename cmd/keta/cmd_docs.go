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
	"time"

	"github.com/spf13/cobra"

	"github.com/ketahealth/keta/cmd/keta/config"
	"github.com/ketahealth/keta/cmd/keta/internal/registry"
	"github.com/ketahealth/keta/cmd/keta/internal/upload"
	"github.com/ketahealth/keta/pkg/ux"
)

// Status labels for the admin listing. Matched to the web surface so
// both clients describe documents the same way.
const (
	labelRelevant    = "Active Training"
	labelNonRelevant = "Non-Ketamine Content"
)

func docsContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
}

func runDocsUpload(cmd *cobra.Command, args []string) {
	runUpload(args[0], false)
}

func runAdminUpload(cmd *cobra.Command, args []string) {
	runUpload(args[0], true)
}

func runUpload(path string, admin bool) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}

	if !app.sessions.IsAuthenticated() {
		exitWith(errors.New("sign in with 'keta login' before uploading documents"))
	}
	if admin && !app.sessions.IsAdmin() {
		exitWith(errors.New("'keta admin upload' requires an administrator account"))
	}

	sel, err := upload.SelectFile(path)
	if err != nil {
		exitWith(err)
	}
	if err := upload.CheckAcceptable(sel, app.cfg.Upload.MaxSizeMB, app.cfg.Upload.AllowedExtensions); err != nil {
		exitWith(err)
	}

	app.uploads.UseAdminEndpoint(admin)
	if !app.uploads.Select(sel) {
		exitWith(errors.New("another upload is already in progress"))
	}

	spinner := ux.NewSpinner(ux.SpinnerDots, fmt.Sprintf("Uploading %s", sel.Name))
	spinner.Start()
	ctx, cancel := docsContext(app.cfg)
	defer cancel()
	err = app.uploads.Upload(ctx)
	spinner.Stop()

	if err != nil {
		fmt.Println(ux.Error(app.uploads.Detail()))
		fmt.Println(ux.Muted("The selection is kept; run the command again to retry."))
		return
	}

	target := "your documents"
	if admin {
		target = "the shared knowledge base"
	}
	fmt.Println(ux.Success(fmt.Sprintf("%s uploaded to %s", sel.Name, target)))
}

func runDocsList(cmd *cobra.Command, args []string) {
	app, err := newApp()
	if err != nil {
		exitWith(err)
	}
	if !app.sessions.IsAuthenticated() {
		exitWith(errors.New("sign in with 'keta login' to list documents"))
	}

	filter, err := parseFilter(docsFilter)
	if err != nil {
		exitWith(err)
	}

	ctx, cancel := docsContext(app.cfg)
	defer cancel()
	if err := app.registry.Refresh(ctx, filter); err != nil {
		exitWith(err)
	}

	records := app.registry.View(filter)
	if len(records) == 0 {
		fmt.Println(ux.Muted("No documents."))
		return
	}

	fmt.Println(ux.Title(fmt.Sprintf("Documents (%s)", filter.String())))
	for _, rec := range records {
		label := labelNonRelevant
		if rec.Relevant {
			label = labelRelevant
		}
		when := ""
		if !rec.UploadedAt.IsZero() {
			when = rec.UploadedAt.Format("2006-01-02")
		}
		fmt.Printf("%s %-40s %-22s %s\n", ux.IconDoc.Render(), rec.Filename, ux.Muted(label), ux.Muted(when))
	}
}

func parseFilter(s string) (registry.Filter, error) {
	switch s {
	case "all", "":
		return registry.FilterAll, nil
	case "relevant":
		return registry.FilterRelevant, nil
	case "non-relevant", "nonrelevant":
		return registry.FilterNonRelevant, nil
	default:
		return registry.FilterAll, fmt.Errorf("unknown filter %q (use all, relevant, or non-relevant)", s)
	}
}
