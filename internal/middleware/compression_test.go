// Animescope - Anime Catalog Browser and Favorites Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/animescope

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompression(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("frieren ", 300)
	handler := Compression(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "2400")
		_, _ = w.Write([]byte(body))
	}))

	tests := []struct {
		name     string
		headers  map[string]string
		wantGzip bool
	}{
		{"gzip accepted", map[string]string{"Accept-Encoding": "gzip, deflate"}, true},
		{"no accept header", nil, false},
		{"websocket upgrade", map[string]string{"Accept-Encoding": "gzip", "Upgrade": "websocket"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/anime", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}
			if !gotGzip {
				if rec.Body.String() != body {
					t.Error("plain body altered")
				}
				return
			}
			if rec.Header().Get("Content-Length") != "" {
				t.Error("Content-Length must be dropped for gzip")
			}
			zr, err := gzip.NewReader(rec.Body)
			if err != nil {
				t.Fatalf("gzip reader: %v", err)
			}
			defer zr.Close()
			plain, err := io.ReadAll(zr)
			if err != nil {
				t.Fatal(err)
			}
			if string(plain) != body {
				t.Error("decompressed body mismatch")
			}
		})
	}
}
