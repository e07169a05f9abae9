// Package engine runs one utterance through the whole pipeline: normalize,
// extract, classify, then answer deterministically, mutate, or fall back to
// the generative model. Every outcome, including panics, ends as a
// QueryResult and one narrative sentence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"ledgerq/internal/analytics"
	"ledgerq/internal/cache"
	"ledgerq/internal/core"
	"ledgerq/internal/fallback"
	"ledgerq/internal/format"
	"ledgerq/internal/inference"
	"ledgerq/internal/intent"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
	"ledgerq/internal/mutation"
	"ledgerq/internal/nlp"
)

// MetricMutation marks the result of a committed mutation.
const MetricMutation = "mutation"

// Notifier receives the deltas of every committed mutation.
type Notifier interface {
	Notify(ctx context.Context, deltas []core.LedgerDelta) error
}

// Response is what the presentation layer gets back for one query.
type Response struct {
	Narrative string
	Result    core.QueryResult
	// Deltas is non-empty only when the query changed the ledger.
	Deltas []core.LedgerDelta
	Intent intent.Intent
}

// Engine is safe for concurrent use.
type Engine struct {
	book       *ledger.Book
	table      *core.CategoryTable
	classifier *intent.Classifier
	analyzer   *analytics.Analyzer
	planner    *mutation.Planner
	fallback   *fallback.Adapter
	formatter  *format.Formatter
	notifier   Notifier
	logger     *log.Logger

	summaries *cache.LRUCache[analytics.Summary]
	overviews *cache.LRUCache[core.MonthOverview]
	caches    *cache.Manager
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier sends committed deltas to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCacheManager registers the engine caches with m for periodic expiry.
func WithCacheManager(m *cache.Manager) Option {
	return func(e *Engine) { e.caches = m }
}

// New wires an engine over book. gen may be nil, in which case every
// fallback answer is the generic message.
func New(book *ledger.Book, table *core.CategoryTable, gen inference.Generator, cfg Config, opts ...Option) *Engine {
	if table == nil {
		table = core.DefaultCategoryTable()
	}
	if cfg.SummaryCacheSize <= 0 {
		cfg.SummaryCacheSize = DefaultConfig().SummaryCacheSize
	}
	e := &Engine{
		book:       book,
		table:      table,
		classifier: intent.New(cfg.Threshold),
		analyzer:   analytics.New(table),
		formatter:  format.New(),
		logger:     log.Discard(),
		// Keys carry ledger versions, so the TTL only bounds memory.
		summaries: cache.NewLRUCache[analytics.Summary](cfg.SummaryCacheSize, cfg.CacheTTL),
		overviews: cache.NewLRUCache[core.MonthOverview](cfg.SummaryCacheSize, cfg.CacheTTL),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.caches != nil {
		e.caches.Register(e.summaries)
		e.caches.Register(e.overviews)
	}
	e.logger = e.logger.WithComponent(log.ComponentEngine)
	e.planner = mutation.NewPlanner(book, table, cfg.CommitPolicy, e.logger)
	e.fallback = fallback.New(gen, table, cfg.FallbackTimeout, cfg.MaxTokens, e.logger)
	return e
}

// Table returns the category table in use.
func (e *Engine) Table() *core.CategoryTable { return e.table }

// SubmitQuery answers one utterance. rc.Today is the only notion of "now"
// the pipeline uses.
func (e *Engine) SubmitQuery(ctx context.Context, text string, rc core.RequestContext) (resp Response) {
	start := time.Now()
	if rc.RequestID != "" && log.RequestID(ctx) == "" {
		ctx = context.WithValue(ctx, log.RequestIDKey, rc.RequestID)
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Query pipeline panicked",
				log.FieldRequestID, log.RequestID(ctx),
				log.FieldError, fmt.Sprint(r),
				"stack", string(debug.Stack()))
			resp = e.respond(core.ErrorResult(core.WrapError(core.KindInternal, "", fmt.Errorf("panic: %v", r))))
		}
		e.logQuery(ctx, resp, time.Since(start))
	}()

	q := nlp.Parse(text, rc.Today, e.table)
	cls := e.classifier.Classify(q)
	e.logger.DebugContext(ctx, "Query classified",
		log.NewFields().
			WithRequestID(log.RequestID(ctx)).
			WithIntent(string(cls.Intent), cls.Rule, cls.Confidence).
			ToSlice()...)

	switch {
	case cls.Intent.IsMutation():
		resp = e.mutate(ctx, q, cls, rc)
	case cls.Intent.IsAnalytical():
		resp = e.analyze(ctx, q, cls, rc)
	case q.Entities.HasFailures():
		// an unreadable token is reported, not guessed at by the model
		resp = e.respond(core.ErrorResult(q.Entities.Failures[0]))
	default:
		resp = e.resolveFallback(ctx, q, cls, rc, cls.Reason)
	}
	resp.Intent = cls.Intent
	return resp
}

func (e *Engine) respond(res core.QueryResult) Response {
	return Response{Narrative: e.formatter.Result(res), Result: res}
}

func (e *Engine) analyze(ctx context.Context, q nlp.Query, cls intent.Classification, rc core.RequestContext) Response {
	if q.Entities.HasFailures() {
		return e.respond(core.ErrorResult(q.Entities.Failures[0]))
	}
	scope := analytics.ResolveScope(cls.Intent, q.Entities, rc.Today)
	snaps, err := e.load(ctx, scope)
	if err != nil {
		return e.respond(core.ErrorResult(err))
	}

	res, err := e.analyzer.Evaluate(analytics.Request{
		Intent:   cls.Intent,
		Entities: q.Entities,
		Scope:    scope,
		Records:  flatten(snaps),
	})
	if errors.Is(err, analytics.ErrUnresolved) {
		return e.resolveFallback(ctx, q, cls, rc, "unresolved entities")
	}
	if err != nil {
		return e.respond(core.ErrorResult(err))
	}
	res.Confidence = cls.Confidence
	return e.respond(res)
}

func (e *Engine) mutate(ctx context.Context, q nlp.Query, cls intent.Classification, rc core.RequestContext) Response {
	plan := e.planner.Plan(cls.Intent, q.Entities, rc)
	out, err := e.planner.Commit(ctx, plan)
	if err != nil {
		e.logger.ErrorContext(ctx, "Mutation commit failed", log.FieldRequestID, log.RequestID(ctx), log.FieldError, err)
		resp := e.respond(core.ErrorResult(err))
		resp.Deltas = out.Deltas
		e.afterCommit(ctx, out.Deltas)
		return resp
	}
	e.afterCommit(ctx, out.Deltas)

	narrative := e.formatter.Mutation(out)
	if f := out.Failure(); f != nil {
		res := core.ErrorResult(f)
		res.Confidence = cls.Confidence
		return Response{Narrative: narrative, Result: res}
	}
	res := core.QueryResult{
		Kind:       core.ResultNarrative,
		Source:     core.SourceDeterministic,
		Confidence: cls.Confidence,
		Metric:     MetricMutation,
		Scope:      plan.Month.Label(),
		Records:    append(append([]core.Expense(nil), out.Added...), out.Deleted...),
		Text:       narrative,
	}
	return Response{Narrative: narrative, Result: res, Deltas: out.Deltas}
}

// afterCommit drops cached views of touched months and notifies listeners.
// A notification failure is logged; the commit already happened.
func (e *Engine) afterCommit(ctx context.Context, deltas []core.LedgerDelta) {
	if len(deltas) == 0 {
		return
	}
	touched := make(map[core.MonthKey]bool)
	for _, d := range deltas {
		touched[d.Month] = true
	}
	for m := range touched {
		tag := m.String() + "@"
		e.summaries.DeleteFunc(func(k string) bool { return strings.Contains(k, tag) })
		e.overviews.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, tag) })
	}
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, deltas); err != nil {
		e.logger.WarnContext(ctx, "Delta notification failed",
			log.FieldRequestID, log.RequestID(ctx),
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

func (e *Engine) resolveFallback(ctx context.Context, q nlp.Query, cls intent.Classification, rc core.RequestContext, reason string) Response {
	summary, err := e.summary(ctx, q, rc)
	if err != nil {
		return e.respond(core.ErrorResult(err))
	}
	res := e.fallback.Resolve(ctx, fallback.Request{
		Text:       q.Normalized,
		Reason:     reason,
		Confidence: cls.Confidence,
		Summary:    summary,
	})
	if res.Kind == core.ResultError {
		res.Source = core.SourceFallback
		res.Confidence = cls.Confidence
	}
	return e.respond(res)
}

// summary returns the aggregate view handed to the model, cached per scope
// and ledger version.
func (e *Engine) summary(ctx context.Context, q nlp.Query, rc core.RequestContext) (analytics.Summary, error) {
	scope := analytics.ResolveScope(intent.Stat, q.Entities, rc.Today)
	snaps, err := e.load(ctx, scope)
	if err != nil {
		return analytics.Summary{}, err
	}
	key := summaryKey(scope, snaps)
	if s, ok := e.summaries.Get(key); ok {
		return s, nil
	}
	rs := analytics.Apply(flatten(snaps), scope, analytics.Filter{}, e.table)
	s := analytics.Summarize(rs, scope.Label, e.table)
	e.summaries.Set(key, s)
	return s, nil
}

func summaryKey(scope analytics.Scope, snaps []ledger.Snapshot) string {
	var b strings.Builder
	b.WriteString(scope.Label)
	for _, w := range scope.Windows {
		b.WriteString("|")
		b.WriteString(w.Range.String())
	}
	for _, s := range snaps {
		fmt.Fprintf(&b, "|%s@%d", s.Month, s.Version)
	}
	return b.String()
}

// load snapshots every month the scope touches.
func (e *Engine) load(ctx context.Context, scope analytics.Scope) ([]ledger.Snapshot, error) {
	months := scope.Months()
	if scope.AllTime {
		var err error
		if months, err = e.book.Months(ctx); err != nil {
			return nil, fmt.Errorf("list months: %w", err)
		}
	}
	snaps, err := e.book.SnapshotMonths(ctx, months)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return snaps, nil
}

func flatten(snaps []ledger.Snapshot) []core.Expense {
	n := 0
	for _, s := range snaps {
		n += len(s.Records)
	}
	out := make([]core.Expense, 0, n)
	for _, s := range snaps {
		out = append(out, s.Records...)
	}
	return out
}

// MonthOverview returns totals for one month, cached until the month
// changes.
func (e *Engine) MonthOverview(ctx context.Context, month core.MonthKey, rc core.RequestContext) (core.MonthOverview, error) {
	snap, err := e.book.Snapshot(ctx, month)
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("load %s: %w", month, err)
	}
	key := fmt.Sprintf("%s@%d", month, snap.Version)
	if ov, ok := e.overviews.Get(key); ok {
		return ov, nil
	}
	archived, err := e.book.IsArchived(ctx, month, rc.CurrentMonth())
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("archive status of %s: %w", month, err)
	}
	ov := analytics.Overview(month, snap.Records, archived, e.table)
	// Archive status depends on the reference date, so only archived months
	// are stable enough to cache.
	if archived {
		e.overviews.Set(key, ov)
	}
	return ov, nil
}

func (e *Engine) logQuery(ctx context.Context, resp Response, took time.Duration) {
	fields := log.NewFields().
		WithRequestID(log.RequestID(ctx)).
		WithOperation(log.OpQuery).
		WithResult(string(resp.Result.Kind), string(resp.Result.Source))
	fields[log.FieldIntent] = string(resp.Intent)
	fields[log.FieldConfidence] = resp.Result.Confidence
	fields[log.FieldDuration] = took.Milliseconds()
	if resp.Result.Err != nil {
		fields[log.FieldErrorKind] = string(resp.Result.Err.Kind)
		fields = fields.WithError(resp.Result.Err)
	}
	e.logger.InfoContext(ctx, "Query handled", fields.ToSlice()...)
}
