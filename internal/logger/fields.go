package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the context.
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldShop      = "shop"
	FieldCategory  = "category"
	FieldURL       = "url"
)

// Metric fields, attached per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldPages      = "pages"
	FieldAttempt    = "attempt"
)
