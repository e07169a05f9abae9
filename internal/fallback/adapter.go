// Package fallback hands questions the deterministic pipeline cannot answer
// to a generative model. The model sees aggregates and the category table,
// never the records themselves, and its reply must read as prose.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ledgerq/internal/analytics"
	"ledgerq/internal/core"
	"ledgerq/internal/format"
	"ledgerq/internal/inference"
	"ledgerq/internal/log"
)

// Reasons attached to fallback errors.
const (
	ReasonSuperseded = "superseded by a newer query"
	ReasonDisabled   = "no inference service configured"
	ReasonFailed     = "inference service failed"
)

const (
	DefaultTimeout   = 20 * time.Second
	DefaultMaxTokens = 256
)

// Request is one fallback call.
type Request struct {
	// Text is the normalized query.
	Text string
	// Why the deterministic path gave up; logged only.
	Reason     string
	Confidence float64
	Summary    analytics.Summary
}

// Adapter serializes fallback calls: at most one caller waits at a time and a
// newer call takes over from an older one.
type Adapter struct {
	gen       inference.Generator
	table     *core.CategoryTable
	timeout   time.Duration
	maxTokens int
	logger    *log.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// New returns an adapter. A nil generator makes every call fail as
// ambiguous.
func New(gen inference.Generator, table *core.CategoryTable, timeout time.Duration, maxTokens int, logger *log.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{
		gen:       gen,
		table:     table,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger.WithComponent(log.ComponentFallback),
	}
}

// Enabled reports whether a generator is configured.
func (a *Adapter) Enabled() bool { return a.gen != nil }

// begin registers a new call and withdraws interest from the previous one.
func (a *Adapter) begin(ctx context.Context) (context.Context, func()) {
	waitCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.seq++
	seq := a.seq
	a.cancel = cancel
	a.mu.Unlock()

	return waitCtx, func() {
		a.mu.Lock()
		if a.seq == seq {
			a.cancel = nil
		}
		a.mu.Unlock()
		cancel()
	}
}

// Resolve asks the model and returns a narrative result, or an error result
// of kind FallbackTimeout, FallbackMalformedResponse or AmbiguousIntent.
func (a *Adapter) Resolve(ctx context.Context, req Request) core.QueryResult {
	if a.gen == nil {
		a.logger.DebugContext(ctx, "Fallback skipped", "reason", req.Reason)
		return core.ErrorResult(core.NewError(core.KindAmbiguousIntent, "", ReasonDisabled))
	}

	waitCtx, done := a.begin(ctx)
	defer done()

	deadline := time.NewTimer(a.timeout)
	defer deadline.Stop()
	start := time.Now()

	prompt := BuildPrompt(req, a.table)
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		remaining := a.timeout - time.Since(start)
		text, err := a.generate(ctx, waitCtx, deadline.C, prompt, remaining)
		if err != nil {
			a.logger.WarnContext(ctx, "Fallback failed", log.FieldAttempt, attempt, log.FieldError, err)
			return core.ErrorResult(err)
		}
		if lastErr = format.CheckProse(text); lastErr == nil {
			a.logger.InfoContext(ctx, "Fallback answered", log.FieldAttempt, attempt, "reason", req.Reason)
			return core.QueryResult{
				Kind:       core.ResultNarrative,
				Source:     core.SourceFallback,
				Confidence: req.Confidence,
				Scope:      req.Summary.Scope,
				Text:       strings.TrimSpace(text),
			}
		}
		a.logger.WarnContext(ctx, "Fallback reply rejected", log.FieldAttempt, attempt, log.FieldError, lastErr)
		prompt = BuildPrompt(req, a.table) + retryHint
	}
	return core.ErrorResult(lastErr)
}

// generate runs one inference on its own goroutine. The goroutine is not
// stopped when the caller stops waiting; its reply lands in a buffered
// channel and is dropped.
func (a *Adapter) generate(ctx, waitCtx context.Context, deadline <-chan time.Time, prompt string, budget time.Duration) (string, error) {
	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		text, err := a.gen.Generate(context.WithoutCancel(ctx), prompt, a.maxTokens, budget)
		ch <- reply{text, err}
	}()

	select {
	case r := <-ch:
		switch {
		case r.err == nil:
			return r.text, nil
		case errors.Is(r.err, inference.ErrTimeout):
			return "", core.WrapError(core.KindFallbackTimeout, "no answer in time", r.err)
		default:
			return "", core.WrapError(core.KindFallbackMalformed, ReasonFailed, r.err)
		}
	case <-deadline:
		return "", core.NewError(core.KindFallbackTimeout, "", fmt.Sprintf("no answer within %s", a.timeout))
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return "", core.WrapError(core.KindFallbackTimeout, "request cancelled", ctx.Err())
		}
		return "", core.NewError(core.KindFallbackTimeout, "", ReasonSuperseded)
	}
}
