package logger

// Standard field names for consistent structured logging across sgrpc.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldCallID = "call_id"

	// Components
	FieldComponent = "component"
	FieldService   = "service"

	// Operations
	FieldMethod = "method"
	FieldQueue  = "queue"
	FieldPort   = "port"

	// Counts
	FieldWorkers = "workers"
	FieldCount   = "count"

	// Status
	FieldState      = "state"
	FieldStatusCode = "status_code"
	FieldError      = "error"
)
