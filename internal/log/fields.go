package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldMonth       = "month"
	FieldIntent      = "intent"
	FieldConfidence  = "confidence"
	FieldSource      = "source"
	FieldResultKind  = "result_kind"
	FieldRule        = "rule"
	FieldAdded       = "added"
	FieldDeleted     = "deleted"
	FieldRejected    = "rejected"
	FieldExpenseID   = "expense_id"
	FieldAmountCents = "amount_cents"
	FieldProvider    = "provider"
	FieldAttempt     = "attempt"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentEngine    = "engine"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentMutation  = "mutation"
	ComponentFallback  = "fallback"
	ComponentInference = "inference"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentREPL      = "repl"
)

// Operations defines standard operation names
const (
	OpQuery    = "query"
	OpLoad     = "load"
	OpAppend   = "append"
	OpDelete   = "delete"
	OpCommit   = "commit"
	OpGenerate = "generate"
	OpPublish  = "publish"
	OpMirror   = "mirror"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithMonth adds the month ledger key, e.g. 2026-10.
func (f LogFields) WithMonth(month string) LogFields {
	f[FieldMonth] = month
	return f
}

// WithIntent adds classification fields
func (f LogFields) WithIntent(intent, rule string, confidence float64) LogFields {
	f[FieldIntent] = intent
	f[FieldRule] = rule
	f[FieldConfidence] = confidence
	return f
}

// WithResult adds result fields
func (f LogFields) WithResult(kind, source string) LogFields {
	f[FieldResultKind] = kind
	f[FieldSource] = source
	return f
}

// WithMutation adds commit counters
func (f LogFields) WithMutation(added, deleted, rejected int) LogFields {
	f[FieldAdded] = added
	f[FieldDeleted] = deleted
	f[FieldRejected] = rejected
	return f
}

// WithHTTP adds HTTP request/response fields
func (f LogFields) WithHTTP(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog, keys sorted
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
