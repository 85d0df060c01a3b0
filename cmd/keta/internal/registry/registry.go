// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry holds a filtered view of ingested knowledge documents.
//
// # Description
//
//	The backend's document records arrive with inconsistent field
//	spellings across versions. The registry normalizes them into one
//	Record shape at the ingestion boundary; the raw wire shape never
//	leaves this package's Refresh path. The held list is replaced
//	wholesale on each successful refresh and kept intact on failure.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/ketahealth/keta/cmd/keta/internal/api"
	"github.com/ketahealth/keta/pkg/logging"
)

// Filter selects a relevance subset of the held documents
type Filter int

const (
	// FilterAll passes every record through
	FilterAll Filter = iota

	// FilterRelevant keeps records marked relevant to the subject domain
	FilterRelevant

	// FilterNonRelevant keeps records marked not relevant
	FilterNonRelevant
)

func (f Filter) String() string {
	switch f {
	case FilterRelevant:
		return "relevant"
	case FilterNonRelevant:
		return "non-relevant"
	default:
		return "all"
	}
}

// relevantParam maps a Filter to the server-side relevance predicate;
// nil means no constraint.
func (f Filter) relevantParam() *bool {
	switch f {
	case FilterRelevant:
		v := true
		return &v
	case FilterNonRelevant:
		v := false
		return &v
	default:
		return nil
	}
}

// Record is the normalized shape of an ingested document
type Record struct {
	ID         string
	Filename   string
	Relevant   bool
	UploadedAt time.Time
}

// Session is the read-side of the session store the registry needs
type Session interface {
	Token() string
}

// Lister fetches raw document records from the backend
type Lister interface {
	ListDocuments(ctx context.Context, token string, relevant *bool) ([]api.DocumentPayload, error)
}

// Registry owns the held document list
type Registry struct {
	mu      sync.RWMutex
	records []Record

	session Session
	lister  Lister
	logger  *logging.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(session Session, lister Lister) *Registry {
	return &Registry{
		session: session,
		lister:  lister,
		logger:  logging.Default().With("component", "registry"),
	}
}

// Refresh replaces the held list from the backend, constrained
// server-side by the filter's relevance predicate. On failure the
// prior list is kept and the error returned for observability.
func (r *Registry) Refresh(ctx context.Context, filter Filter) error {
	payloads, err := r.lister.ListDocuments(ctx, r.session.Token(), filter.relevantParam())
	if err != nil {
		r.logger.Warn("document refresh failed", "filter", filter.String(), "error", err)
		return err
	}

	records := make([]Record, 0, len(payloads))
	for _, p := range payloads {
		records = append(records, Normalize(p))
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	r.logger.Info("documents refreshed", "count", len(records), "filter", filter.String())
	return nil
}

// View applies the filter to the held list client-side. Pure with
// respect to the registry: the held list is never modified.
func (r *Registry) View(filter Filter) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		switch filter {
		case FilterRelevant:
			if !rec.Relevant {
				continue
			}
		case FilterNonRelevant:
			if rec.Relevant {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// Len returns the held record count
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// ====== Normalization ======

// Timestamp layouts observed across backend versions, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize collapses a raw wire payload into a Record, resolving the
// field-spelling variants: filename/fileName and
// uploadDate/upload_date/created_at. First non-empty variant wins.
func Normalize(p api.DocumentPayload) Record {
	rec := Record{
		ID:       firstNonEmpty(p.ID, p.DocID),
		Filename: firstNonEmpty(p.Filename, p.FileNameJS),
	}
	if p.Relevant != nil {
		rec.Relevant = *p.Relevant
	}
	if raw := firstNonEmpty(p.UploadDate, p.UploadedAt, p.CreatedAt); raw != "" {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				rec.UploadedAt = t
				break
			}
		}
	}
	return rec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
