// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package upload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
)

type fakeSession struct {
	authenticated bool
	admin         bool
	token         string
}

func (f *fakeSession) IsAuthenticated() bool { return f.authenticated }
func (f *fakeSession) Token() string         { return f.token }
func (f *fakeSession) IsAdmin() bool         { return f.admin }

type fakeUploader struct {
	mu       sync.Mutex
	err      error
	calls    int
	token    string
	admin    bool
	filename string
	content  string
	release  chan struct{} // when non-nil, blocks until closed
}

func (f *fakeUploader) UploadDocument(_ context.Context, token string, admin bool, filename string, r io.Reader) error {
	data, _ := io.ReadAll(r)

	f.mu.Lock()
	f.calls++
	f.token, f.admin, f.filename, f.content = token, admin, filename, string(data)
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	return f.err
}

func (f *fakeUploader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func memSelection(name, content string) Selection {
	return Selection{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func authedSession() *fakeSession {
	return &fakeSession{authenticated: true, token: "T"}
}

func TestSelectAndClear(t *testing.T) {
	c := NewCoordinator(authedSession(), &fakeUploader{}, nil)
	assert.Equal(t, StatusIdle, c.Status())

	require.True(t, c.Select(memSelection("notes.pdf", "x")))
	assert.Equal(t, StatusSelected, c.Status())
	assert.Equal(t, "notes.pdf", c.SelectionName())

	// A new selection replaces the old one.
	require.True(t, c.Select(memSelection("other.txt", "y")))
	assert.Equal(t, "other.txt", c.SelectionName())

	c.Clear()
	assert.Equal(t, StatusIdle, c.Status())
	assert.Empty(t, c.SelectionName())
}

func TestSelectRejectsEmpty(t *testing.T) {
	c := NewCoordinator(authedSession(), &fakeUploader{}, nil)
	assert.False(t, c.Select(Selection{}))
	assert.Equal(t, StatusIdle, c.Status())
}

func TestUploadWithoutSelectionIsNoOp(t *testing.T) {
	uploader := &fakeUploader{}
	c := NewCoordinator(authedSession(), uploader, nil)

	require.NoError(t, c.Upload(context.Background()))

	assert.Equal(t, 0, uploader.callCount(), "no request may be issued")
	assert.Equal(t, StatusIdle, c.Status(), "status must be unchanged")
}

func TestUploadUnauthenticatedIsNoOp(t *testing.T) {
	uploader := &fakeUploader{}
	c := NewCoordinator(&fakeSession{authenticated: false}, uploader, nil)
	c.Select(memSelection("notes.pdf", "x"))

	require.NoError(t, c.Upload(context.Background()))

	assert.Equal(t, 0, uploader.callCount())
	assert.Equal(t, StatusSelected, c.Status())
}

func TestUploadSuccess(t *testing.T) {
	uploader := &fakeUploader{}
	refreshed := 0
	c := NewCoordinator(authedSession(), uploader, func() { refreshed++ })
	c.Select(memSelection("notes.pdf", "file content"))

	require.NoError(t, c.Upload(context.Background()))

	assert.Equal(t, StatusSucceeded, c.Status())
	assert.Empty(t, c.SelectionName(), "selection cleared on success")
	assert.Equal(t, 1, refreshed, "registry refresh triggered")
	assert.Equal(t, "T", uploader.token)
	assert.False(t, uploader.admin)
	assert.Equal(t, "notes.pdf", uploader.filename)
	assert.Equal(t, "file content", uploader.content)
}

func TestUploadAdminDestination(t *testing.T) {
	uploader := &fakeUploader{}
	c := NewCoordinator(&fakeSession{authenticated: true, admin: true, token: "T"}, uploader, nil)
	c.UseAdminEndpoint(true)
	c.Select(memSelection("kb.md", "x"))

	require.NoError(t, c.Upload(context.Background()))
	assert.True(t, uploader.admin)
}

func TestUploadAdminDestinationRequiresAdminRole(t *testing.T) {
	uploader := &fakeUploader{}
	c := NewCoordinator(authedSession(), uploader, nil)
	c.UseAdminEndpoint(true)
	c.Select(memSelection("kb.md", "x"))

	require.NoError(t, c.Upload(context.Background()))
	assert.False(t, uploader.admin, "non-admin sessions fall back to the user endpoint")
}

func TestUploadFailureRetainsSelection(t *testing.T) {
	uploader := &fakeUploader{err: &api.APIError{Type: api.ErrorTypeValidation, Message: "file too large"}}
	refreshed := 0
	c := NewCoordinator(authedSession(), uploader, func() { refreshed++ })
	c.Select(memSelection("big.pdf", "x"))

	err := c.Upload(context.Background())
	require.Error(t, err)

	assert.Equal(t, StatusFailed, c.Status())
	assert.Equal(t, "file too large", c.Detail(), "backend detail preferred")
	assert.Equal(t, "big.pdf", c.SelectionName(), "selection retained for retry")
	assert.Equal(t, 0, refreshed)

	// Manual retry succeeds without re-selecting.
	uploader.err = nil
	require.NoError(t, c.Upload(context.Background()))
	assert.Equal(t, StatusSucceeded, c.Status())
	assert.Equal(t, 2, uploader.callCount())
	assert.Equal(t, 1, refreshed)
}

func TestUploadFailureGenericDetail(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("eof")}
	c := NewCoordinator(authedSession(), uploader, nil)
	c.Select(memSelection("notes.pdf", "x"))

	require.Error(t, c.Upload(context.Background()))
	assert.Equal(t, GenericFailureText, c.Detail())
}

func TestSelectDuringUploadIgnored(t *testing.T) {
	release := make(chan struct{})
	uploader := &fakeUploader{release: release}
	c := NewCoordinator(authedSession(), uploader, nil)
	c.Select(memSelection("first.pdf", "x"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Upload(context.Background())
	}()

	for c.Status() != StatusUploading {
		time.Sleep(time.Millisecond)
	}

	assert.False(t, c.Select(memSelection("second.pdf", "y")))
	c.Clear() // also ignored mid-flight
	assert.Equal(t, StatusUploading, c.Status())

	close(release)
	<-done

	assert.Equal(t, StatusSucceeded, c.Status())
	assert.Equal(t, "first.pdf", uploader.filename)
}

func TestCheckAcceptable(t *testing.T) {
	exts := []string{".pdf", ".docx", ".txt", ".md"}

	assert.NoError(t, CheckAcceptable(memSelection("a.pdf", "x"), 50, exts))
	assert.NoError(t, CheckAcceptable(memSelection("A.MD", "x"), 50, exts))
	assert.Error(t, CheckAcceptable(memSelection("a.exe", "x"), 50, exts))
	assert.Error(t, CheckAcceptable(Selection{Name: "a.pdf", Size: 51 << 20}, 50, exts))
	assert.NoError(t, CheckAcceptable(Selection{Name: "a.pdf", Size: 50 << 20}, 50, exts))
}

func TestSelectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	sel, err := SelectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", sel.Name)
	assert.Equal(t, int64(5), sel.Size)

	r, err := sel.Open()
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = SelectFile(dir)
	assert.Error(t, err, "directories are not selectable")

	_, err = SelectFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
