package models

// LogEntry is the unified shape of one structured log line, designed so log
// collectors can parse, index and query it without per-service rules.
type LogEntry struct {
	// ServiceName names the component that produced the line.
	ServiceName string `json:"service_name"`

	// TraceID ties together every line emitted while serving one request.
	TraceID string `json:"trace_id,omitempty"`

	// UserID identifies the user the event relates to, when applicable.
	UserID string `json:"user_id,omitempty"`

	// RequestInfo carries the HTTP request that triggered the line.
	RequestInfo *RequestInfo `json:"request_info,omitempty"`

	// Error carries structured error detail, filled at Error level and above.
	Error *ErrorInfo `json:"error,omitempty"`

	// Payload holds any additional business data worth recording.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// RequestInfo stores context about an HTTP request.
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
}

// ErrorInfo stores structured information about an error.
type ErrorInfo struct {
	Message    string `json:"message"`
	Stack      string `json:"stack,omitempty"`
	Type       string `json:"type,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}
