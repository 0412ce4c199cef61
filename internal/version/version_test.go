/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.3.0", "0.3.0", 0},
		{"0.3.0", "v0.4.0", -1},
		{"1.0.0", "0.9.9", 1},
		{"0.3", "0.3.1", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/"+GitHubRepo+"/releases/latest" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/r","body":"Sigmoid model\nmore"}`))
	}))
	defer srv.Close()

	info, err := NewCheckerWithURL(srv.URL, zerolog.Nop()).Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !info.UpdateAvailable || info.LatestVersion != "99.0.0" || info.ReleaseNotes != "Sigmoid model" {
		t.Errorf("info = %+v", info)
	}
}

func TestCheckErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewCheckerWithURL(srv.URL, zerolog.Nop()).Check(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("Check() error = %v", err)
	}
}

func TestTruncateNotes(t *testing.T) {
	long := strings.Repeat("a", 300)
	if got := truncateNotes(long, 200); len(got) != 200 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateNotes() len = %d", len(got))
	}
}
