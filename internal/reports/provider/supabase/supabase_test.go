// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package supabase

import (
	"errors"
	stdhttp "net/http"
	"testing"

	"github.com/wneessen/incident-ar/internal/http"
	"github.com/wneessen/incident-ar/internal/reports"
	"github.com/wneessen/incident-ar/internal/testhelper"
)

const (
	testFile   = "../../../../testdata/supabase_reports.json"
	testURL    = "https://project.supabase.co/"
	testAPIKey = "anon-key"
)

func testSource(t *testing.T, fn func(*stdhttp.Request) (*stdhttp.Response, error)) *Supabase {
	t.Helper()
	client := http.New(testhelper.Logger())
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	source, err := New(client, testURL, testAPIKey)
	if err != nil {
		t.Fatalf("failed to create supabase source: %s", err)
	}
	return source
}

func TestNew(t *testing.T) {
	client := http.New(testhelper.Logger())
	tests := []struct {
		name   string
		client *http.Client
		url    string
		key    string
		want   error
	}{
		{"missing client", nil, testURL, testAPIKey, ErrHTTPClientRequired},
		{"missing url", client, "", testAPIKey, ErrURLRequired},
		{"missing api key", client, testURL, "", ErrAPIKeyRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name+" fails", func(t *testing.T) {
			if _, err := New(tc.client, tc.url, tc.key); !errors.Is(err, tc.want) {
				t.Errorf("expected error to be %s, got %s", tc.want, err)
			}
		})
	}
	t.Run("endpoint is derived from the project url", func(t *testing.T) {
		source, err := New(client, testURL, testAPIKey)
		if err != nil {
			t.Fatalf("failed to create supabase source: %s", err)
		}
		if source.endpoint != "https://project.supabase.co/rest/v1/reports" {
			t.Errorf("unexpected endpoint: %s", source.endpoint)
		}
		if source.Name() != name {
			t.Errorf("expected name to be %s, got %s", name, source.Name())
		}
	})
}

func TestSupabase_List(t *testing.T) {
	t.Run("reports are listed", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			if got := req.URL.Query().Get("select"); got != selectFields {
				t.Errorf("expected select to be %s, got %s", selectFields, got)
			}
			if got := req.URL.Query().Get("order"); got != orderBy {
				t.Errorf("expected order to be %s, got %s", orderBy, got)
			}
			if got := req.Header.Get("apikey"); got != testAPIKey {
				t.Errorf("expected apikey header to be %s, got %s", testAPIKey, got)
			}
			if got := req.Header.Get("Authorization"); got != "Bearer "+testAPIKey {
				t.Errorf("expected bearer authorization, got %s", got)
			}
			return testhelper.FileResponse(t, testFile)(req)
		}
		list, err := testSource(t, rtFn).List(t.Context())
		if err != nil {
			t.Fatalf("failed to list reports: %s", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(list))
		}
		if list[0].Category != reports.CategoryRoad {
			t.Errorf("expected first category to be %s, got %s", reports.CategoryRoad, list[0].Category)
		}
		if list[0].ValidationsCount != 4 {
			t.Errorf("expected 4 validations, got %d", list[0].ValidationsCount)
		}
		if list[1].ImageURL == "" {
			t.Error("expected second report to carry an image")
		}
	})
	t.Run("rejected API key is reported", func(t *testing.T) {
		source := testSource(t, testhelper.JSONResponse(stdhttp.StatusUnauthorized, `{"message":"Invalid API key"}`))
		if _, err := source.List(t.Context()); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected error to be %s, got %s", ErrUnauthorized, err)
		}
	})
	t.Run("server errors fail", func(t *testing.T) {
		source := testSource(t, testhelper.JSONResponse(stdhttp.StatusInternalServerError, `{}`))
		_, err := source.List(t.Context())
		var statusErr *http.StatusError
		if !errors.As(err, &statusErr) {
			t.Errorf("expected a status error, got %s", err)
		}
	})
	t.Run("broken records are skipped", func(t *testing.T) {
		source := testSource(t, testhelper.JSONResponse(200,
			`[{"category":"vial","latitude":1,"longitude":1},{"category":"unknown"}]`))
		list, err := source.List(t.Context())
		if err == nil {
			t.Error("expected an error for the broken record")
		}
		if len(list) != 1 {
			t.Errorf("expected 1 report, got %d", len(list))
		}
	})
}
