// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
)

type fakeSession struct{ token string }

func (f *fakeSession) Token() string { return f.token }

type fakeLister struct {
	payloads []api.DocumentPayload
	err      error
	calls    int
	token    string
	relevant *bool
}

func (f *fakeLister) ListDocuments(_ context.Context, token string, relevant *bool) ([]api.DocumentPayload, error) {
	f.calls++
	f.token = token
	f.relevant = relevant
	if f.err != nil {
		return nil, f.err
	}
	return f.payloads, nil
}

func boolPtr(v bool) *bool { return &v }

func samplePayloads() []api.DocumentPayload {
	return []api.DocumentPayload{
		{ID: "d1", Filename: "protocol.pdf", Relevant: boolPtr(true), UploadDate: "2026-03-01T10:00:00Z"},
		{DocID: "d2", FileNameJS: "intake.docx", Relevant: boolPtr(true), CreatedAt: "2026-03-02"},
		{ID: "d3", Filename: "menu.txt", Relevant: boolPtr(false), UploadedAt: "2026-03-03 09:30:00"},
		{ID: "d4", Filename: "dosing.md", Relevant: boolPtr(true)},
		{ID: "d5", Filename: "misc.pdf"},
	}
}

func TestRefreshReplacesList(t *testing.T) {
	lister := &fakeLister{payloads: samplePayloads()}
	reg := NewRegistry(&fakeSession{token: "T"}, lister)

	require.NoError(t, reg.Refresh(context.Background(), FilterAll))

	assert.Equal(t, 5, reg.Len())
	assert.Equal(t, "T", lister.token)
	assert.Nil(t, lister.relevant, "all filter adds no server-side predicate")

	// Second refresh replaces wholesale.
	lister.payloads = samplePayloads()[:2]
	require.NoError(t, reg.Refresh(context.Background(), FilterAll))
	assert.Equal(t, 2, reg.Len())
}

func TestRefreshSendsRelevancePredicate(t *testing.T) {
	tests := []struct {
		filter Filter
		want   *bool
	}{
		{FilterAll, nil},
		{FilterRelevant, boolPtr(true)},
		{FilterNonRelevant, boolPtr(false)},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			lister := &fakeLister{}
			reg := NewRegistry(&fakeSession{}, lister)
			require.NoError(t, reg.Refresh(context.Background(), tt.filter))

			if tt.want == nil {
				assert.Nil(t, lister.relevant)
			} else {
				require.NotNil(t, lister.relevant)
				assert.Equal(t, *tt.want, *lister.relevant)
			}
		})
	}
}

func TestRefreshRelevantOnly(t *testing.T) {
	// Backend honors the predicate and returns 2 of 5 records.
	all := samplePayloads()
	lister := &fakeLister{payloads: []api.DocumentPayload{all[0], all[1]}}
	reg := NewRegistry(&fakeSession{token: "T"}, lister)

	require.NoError(t, reg.Refresh(context.Background(), FilterRelevant))

	held := reg.View(FilterAll)
	require.Len(t, held, 2)
	assert.Equal(t, "d1", held[0].ID)
	assert.Equal(t, "d2", held[1].ID)
}

func TestRefreshFailureKeepsPriorList(t *testing.T) {
	lister := &fakeLister{payloads: samplePayloads()}
	reg := NewRegistry(&fakeSession{}, lister)
	require.NoError(t, reg.Refresh(context.Background(), FilterAll))

	lister.err = errors.New("backend down")
	err := reg.Refresh(context.Background(), FilterAll)
	require.Error(t, err)

	assert.Equal(t, 5, reg.Len(), "prior list stays intact on failure")
}

func TestViewPartition(t *testing.T) {
	lister := &fakeLister{payloads: samplePayloads()}
	reg := NewRegistry(&fakeSession{}, lister)
	require.NoError(t, reg.Refresh(context.Background(), FilterAll))

	all := reg.View(FilterAll)
	relevant := reg.View(FilterRelevant)
	nonRelevant := reg.View(FilterNonRelevant)

	assert.Len(t, all, 5)
	assert.Len(t, relevant, 3)
	assert.Len(t, nonRelevant, 2)

	// The two subsets are disjoint and together partition the whole.
	seen := map[string]int{}
	for _, r := range relevant {
		seen[r.ID]++
		assert.True(t, r.Relevant)
	}
	for _, r := range nonRelevant {
		seen[r.ID]++
		assert.False(t, r.Relevant)
	}
	assert.Len(t, seen, len(all))
	for id, n := range seen {
		assert.Equal(t, 1, n, "record %s must appear in exactly one subset", id)
	}

	// View never mutates the held list.
	assert.Equal(t, 5, reg.Len())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		payload api.DocumentPayload
		want    Record
	}{
		{
			name:    "canonical fields",
			payload: api.DocumentPayload{ID: "d1", Filename: "a.pdf", Relevant: boolPtr(true), UploadDate: "2026-03-01T10:00:00Z"},
			want:    Record{ID: "d1", Filename: "a.pdf", Relevant: true, UploadedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
		{
			name:    "camelCase filename and doc_id",
			payload: api.DocumentPayload{DocID: "d2", FileNameJS: "b.docx"},
			want:    Record{ID: "d2", Filename: "b.docx"},
		},
		{
			name:    "snake_case upload_date",
			payload: api.DocumentPayload{ID: "d3", Filename: "c.txt", UploadedAt: "2026-03-03 09:30:00"},
			want:    Record{ID: "d3", Filename: "c.txt", UploadedAt: time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)},
		},
		{
			name:    "created_at date only",
			payload: api.DocumentPayload{ID: "d4", Filename: "d.md", CreatedAt: "2026-03-02"},
			want:    Record{ID: "d4", Filename: "d.md", UploadedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:    "canonical wins over variant",
			payload: api.DocumentPayload{ID: "d5", Filename: "real.pdf", FileNameJS: "ignored.pdf"},
			want:    Record{ID: "d5", Filename: "real.pdf"},
		},
		{
			name:    "missing relevance defaults false",
			payload: api.DocumentPayload{ID: "d6", Filename: "e.pdf"},
			want:    Record{ID: "d6", Filename: "e.pdf"},
		},
		{
			name:    "unparseable timestamp left zero",
			payload: api.DocumentPayload{ID: "d7", Filename: "f.pdf", UploadDate: "yesterday"},
			want:    Record{ID: "d7", Filename: "f.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.payload))
		})
	}
}
