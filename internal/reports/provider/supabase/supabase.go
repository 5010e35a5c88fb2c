// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wneessen/incident-ar/internal/http"
	"github.com/wneessen/incident-ar/internal/reports"
)

const (
	name         = "supabase"
	restPath     = "/rest/v1/reports"
	selectFields = "*,validations:report_validations(count)"
	orderBy      = "created_at.desc"
)

var (
	ErrHTTPClientRequired = errors.New("http client is required")
	ErrURLRequired        = errors.New("supabase project URL is required")
	ErrAPIKeyRequired     = errors.New("supabase API key is required")
	ErrUnauthorized       = errors.New("supabase rejected the API key")
)

// Supabase reads reports from the PostgREST endpoint of a Supabase project.
type Supabase struct {
	http     *http.Client
	endpoint string
	apikey   string
}

// New returns a Supabase source for the project at projectURL authenticated with apikey.
func New(client *http.Client, projectURL, apikey string) (*Supabase, error) {
	if client == nil {
		return nil, ErrHTTPClientRequired
	}
	if projectURL == "" {
		return nil, ErrURLRequired
	}
	if apikey == "" {
		return nil, ErrAPIKeyRequired
	}
	base, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid supabase project URL: %w", err)
	}
	return &Supabase{
		http:     client,
		endpoint: base.JoinPath(restPath).String(),
		apikey:   apikey,
	}, nil
}

func (s *Supabase) Name() string {
	return name
}

// List returns all reports, newest first, including their validation counts.
func (s *Supabase) List(ctx context.Context) ([]reports.Report, error) {
	query := url.Values{}
	query.Set("select", selectFields)
	query.Set("order", orderBy)
	headers := map[string]string{
		"apikey":        s.apikey,
		"Authorization": "Bearer " + s.apikey,
	}

	var records []reports.Record
	if _, err := s.http.Get(ctx, s.endpoint, &records, query, headers); err != nil {
		if errors.Is(err, http.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}
	return reports.FromRecords(records)
}
