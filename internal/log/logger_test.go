package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Component: ComponentEngine, Output: &buf})
	l.Info("query resolved", FieldIntent, "stat-query")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentEngine || rec[FieldIntent] != "stat-query" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestToSliceIsSorted(t *testing.T) {
	s := NewFields().WithMonth("2026-10").WithOperation(OpCommit).WithMutation(1, 0, 2).ToSlice()
	var keys []string
	for i := 0; i < len(s); i += 2 {
		keys = append(keys, s[i].(string))
	}
	if strings.Join(keys, ",") != "added,deleted,month,operation,rejected" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestMiddlewareSetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: FormatText, Output: &buf})
	var seen string
	h := Middleware(l, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("request id not propagated: %q vs %q", seen, rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), "status_code=418") || !strings.Contains(buf.String(), seen) {
		t.Fatalf("completion log missing fields:\n%s", buf.String())
	}
}
