package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestToAPIErrorMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		err    error
		code   string
	}{
		{http.StatusBadRequest, fmt.Errorf("name is required"), "LR-API-4001"},
		{http.StatusNotFound, fmt.Errorf("record not found"), "LR-API-4004"},
		{http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"), "LR-API-4005"},
		{http.StatusConflict, fmt.Errorf("already running"), "LR-API-4009"},
		{http.StatusInternalServerError, fmt.Errorf("boom"), "LR-API-5000"},
		{http.StatusInternalServerError, fmt.Errorf(`relation "libraries" does not exist`), "LR-DB-5001"},
		{http.StatusInternalServerError, fmt.Errorf("dial tcp 127.0.0.1:5432: connection refused"), "LR-DB-5002"},
		{http.StatusBadGateway, fmt.Errorf("workflow queue unavailable"), "LR-API-5020"},
	}
	for _, tc := range cases {
		got := toAPIError(tc.status, tc.err)
		if got.Code != tc.code {
			t.Fatalf("status %d err %q: got code %s, want %s", tc.status, tc.err, got.Code, tc.code)
		}
		if got.Message == "" {
			t.Fatalf("status %d: empty message", tc.status)
		}
	}
}

func TestToAPIErrorKeepsValidationContext(t *testing.T) {
	got := toAPIError(http.StatusBadRequest, fmt.Errorf("only pdf files are supported"))
	if got.Message != "Only PDF files are supported." {
		t.Fatalf("got %q", got.Message)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on preflight")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/libraries", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestWithCORSPassesThrough(t *testing.T) {
	called := false
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !called || rec.Code != http.StatusTeapot {
		t.Fatalf("called=%v code=%d", called, rec.Code)
	}
}
