// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitRejectsWithEnvelope(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 1, RateLimitWindow: time.Minute})
	h := mw.RateLimit()(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, w.Code, want)
		}
		if want == http.StatusTooManyRequests {
			var env envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if env.Error == nil || env.Error.Code != ErrCodeRateLimited {
				t.Errorf("error = %+v", env.Error)
			}
		}
	}
}

func TestRateLimitDisabled(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddlewareFromSecurity(&config.SecurityConfig{RateLimitReqs: 1, RateLimitDisabled: true})
	h := mw.RateLimitCustom(RateLimitMail)(okHandler())
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/mail/residents", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d limited while disabled", i)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddlewareFromSecurity(&config.SecurityConfig{CORSOrigins: []string{"https://dashboard.example"}})
	h := mw.CORS()(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q", got)
	}
}

func TestRequestIDWithLogging(t *testing.T) {
	t.Parallel()

	var seen string
	h := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
		if logging.CorrelationIDFromContext(r.Context()) == "" {
			t.Error("missing correlation id")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != "req-123" {
		t.Errorf("request id in context = %q", seen)
	}
	if w.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("response header = %q", w.Header().Get("X-Request-ID"))
	}
}
