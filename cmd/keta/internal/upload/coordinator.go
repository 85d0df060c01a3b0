// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package upload coordinates single-file upload tasks.
//
// # Description
//
//	A Coordinator owns at most one upload task at a time: a file is
//	selected, uploaded, and the task settles as succeeded or failed.
//	Failed selections stay held so the upload can be retried without
//	re-selecting. A successful upload triggers a registry refresh via
//	the injected hook.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
	"github.com/ketahealth/keta/pkg/logging"
)

// Status is the lifecycle state of the current upload task
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSelected  Status = "selected"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// GenericFailureText is shown when the backend gives no structured detail
const GenericFailureText = "Upload failed. Please try again."

// Selection is a file chosen for upload
type Selection struct {
	// Name is the base filename sent to the backend
	Name string

	// Size in bytes, used for advisory acceptance checks
	Size int64

	// Open yields the file content. Called once per upload attempt so
	// retries re-read from the start.
	Open func() (io.ReadCloser, error)
}

// SelectFile builds a Selection from a filesystem path
func SelectFile(path string) (Selection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Selection{}, err
	}
	if info.IsDir() {
		return Selection{}, fmt.Errorf("%s is a directory", path)
	}
	return Selection{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// CheckAcceptable applies the advisory client-side acceptance rules:
// extension must be in exts and size must not exceed maxMB mebibytes.
// The backend remains the authority; this only catches obvious
// mistakes before any bytes move.
func CheckAcceptable(sel Selection, maxMB int, exts []string) error {
	ext := strings.ToLower(filepath.Ext(sel.Name))
	ok := false
	for _, allowed := range exts {
		if ext == strings.ToLower(allowed) {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("file type %q not supported (accepted: %s)", ext, strings.Join(exts, ", "))
	}
	if maxMB > 0 && sel.Size > int64(maxMB)<<20 {
		return fmt.Errorf("file is %d bytes, above the %d MB limit", sel.Size, maxMB)
	}
	return nil
}

// Session is the read-side of the session store the coordinator needs
type Session interface {
	IsAuthenticated() bool
	Token() string
	IsAdmin() bool
}

// Uploader sends one file to the backend
type Uploader interface {
	UploadDocument(ctx context.Context, token string, admin bool, filename string, r io.Reader) error
}

// RefreshFunc is invoked after each successful upload so the document
// registry can pick up the new record
type RefreshFunc func()

// Coordinator owns the lifecycle of a single upload task
type Coordinator struct {
	mu        sync.Mutex
	status    Status
	selection *Selection
	detail    string
	adminDest bool

	session  Session
	uploader Uploader
	onDone   RefreshFunc
	logger   *logging.Logger
}

// NewCoordinator creates an idle Coordinator
func NewCoordinator(session Session, uploader Uploader, onDone RefreshFunc) *Coordinator {
	return &Coordinator{
		status:   StatusIdle,
		session:  session,
		uploader: uploader,
		onDone:   onDone,
		logger:   logging.Default().With("component", "upload"),
	}
}

// UseAdminEndpoint routes uploads to the shared knowledge base.
// Which endpoint to use is the calling surface's decision; the role
// guard in Upload still applies.
func (c *Coordinator) UseAdminEndpoint(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adminDest = v
}

// Select adopts a file for the next upload, replacing any prior
// selection. Returns false while an upload is in flight; a selection
// during upload is ignored rather than interrupting it.
func (c *Coordinator) Select(sel Selection) bool {
	if sel.Name == "" || sel.Open == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusUploading {
		return false
	}

	c.selection = &sel
	c.status = StatusSelected
	c.detail = ""
	return true
}

// Clear discards the current selection. Ignored while uploading.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusUploading {
		return
	}
	c.selection = nil
	c.status = StatusIdle
	c.detail = ""
}

// Upload sends the current selection to the backend.
//
// # Description
//
//	A no-op without a selection or an authenticated session. Admin
//	destination routing requires both UseAdminEndpoint and an
//	administrator session. On success the selection is cleared and
//	the refresh hook fires; on failure the selection is kept so
//	Upload can be called again.
func (c *Coordinator) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.selection == nil || c.status == StatusUploading || !c.session.IsAuthenticated() {
		c.mu.Unlock()
		return nil
	}
	sel := *c.selection
	c.status = StatusUploading
	c.detail = ""
	token := c.session.Token()
	admin := c.adminDest && c.session.IsAdmin()
	c.mu.Unlock()

	err := c.send(ctx, token, admin, sel)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.status = StatusFailed
		c.detail = failureDetail(err)
		c.logger.Warn("upload failed", "filename", sel.Name, "error", err)
		return err
	}

	c.status = StatusSucceeded
	c.selection = nil
	c.detail = ""
	c.logger.Info("upload succeeded", "filename", sel.Name, "admin", admin)

	if c.onDone != nil {
		c.onDone()
	}
	return nil
}

func (c *Coordinator) send(ctx context.Context, token string, admin bool, sel Selection) error {
	r, err := sel.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", sel.Name, err)
	}
	defer r.Close()
	return c.uploader.UploadDocument(ctx, token, admin, sel.Name, r)
}

// failureDetail prefers the backend's structured message over the
// generic fallback.
func failureDetail(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericFailureText
}

// ====== Reads ======

// Status returns the current task status
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SelectionName returns the held filename, empty when none
func (c *Coordinator) SelectionName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return ""
	}
	return c.selection.Name
}

// Detail returns the failure detail for the last attempt, empty
// unless the task is failed
func (c *Coordinator) Detail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detail
}
