package domain

// Severity of a reported entry
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// LogEntry is one report sent to the error sink.
type LogEntry struct {
	Message string
	Type    Severity
	Stack   string
	Context map[string]any
}

// Reporter is the error-reporting sink. Log is fire-and-forget and must not
// panic into the caller.
type Reporter interface {
	Log(entry LogEntry)
}

// NopReporter discards entries.
type NopReporter struct{}

func (NopReporter) Log(LogEntry) {}
