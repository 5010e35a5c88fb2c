// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package testhelper holds helpers shared by the package tests.
package testhelper

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/wneessen/incident-ar/internal/logger"
)

// TestOnlineAPIURL is a public endpoint that answers with a JSON document. It is only
// contacted by tests that call PerformIntegrationTests.
const TestOnlineAPIURL = "https://httpbin.org/json"

// MockRoundTripper is a http.RoundTripper that answers every request with Fn.
type MockRoundTripper struct {
	Fn func(*http.Request) (*http.Response, error)
}

func (m MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Fn(req)
}

// PerformIntegrationTests skips the calling test unless PERFORM_ONLINE_TEST is set.
func PerformIntegrationTests(t *testing.T) {
	t.Helper()
	if val := os.Getenv("PERFORM_ONLINE_TEST"); !strings.EqualFold(val, "true") {
		t.Skip("skipping online API tests")
	}
}

// JSONResponse returns a RoundTripper func answering with the given status and body.
func JSONResponse(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
		}, nil
	}
}

// FileResponse returns a RoundTripper func answering with status 200 and the content of file.
func FileResponse(t *testing.T, file string) func(*http.Request) (*http.Response, error) {
	t.Helper()
	return func(*http.Request) (*http.Response, error) {
		data, err := os.Open(file)
		if err != nil {
			t.Errorf("failed to open JSON response file: %s", err)
			return nil, err
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     http.StatusText(http.StatusOK),
			Body:       data,
			Header:     make(http.Header),
		}, nil
	}
}

// Logger returns a logger that discards everything.
func Logger() *logger.Logger {
	return logger.NewLogger(slog.LevelError, io.Discard)
}
