package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"ledgerq/internal/core"
)

const (
	maxBodyBytes = 16 << 10
	maxQueryLen  = 1000
)

// QueryRequest is the body of POST /api/query. Today is optional and
// defaults to the server's current date.
type QueryRequest struct {
	Text  string `json:"text"`
	Today string `json:"today,omitempty"`
}

// ParseQueryRequest reads a JSON or form encoded query request.
func ParseQueryRequest(r *http.Request) (QueryRequest, error) {
	var req QueryRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json", "":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return req, fmt.Errorf("read body: %w", err)
		}
		if len(body) > maxBodyBytes {
			return req, errors.New("request body too large")
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return req, errors.New("body must be a JSON object with a text field")
		}
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, errors.New("invalid form body")
		}
		req.Text = r.PostForm.Get("text")
		req.Today = r.PostForm.Get("today")
	default:
		return req, fmt.Errorf("unsupported content type %q", mediaType)
	}

	req.Text = sanitizeInput(req.Text)
	req.Today = strings.TrimSpace(req.Today)
	if req.Text == "" {
		return req, errors.New("text is required")
	}
	if len(req.Text) > maxQueryLen {
		return req, fmt.Errorf("text longer than %d characters", maxQueryLen)
	}
	return req, nil
}

// ParseToday resolves the optional reference date against now.
func ParseToday(s string, now time.Time) (core.Date, error) {
	if s == "" {
		return core.DateOf(now), nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, fmt.Errorf("today must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
