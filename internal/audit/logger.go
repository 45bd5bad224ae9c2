package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// operatorKey is the context key under which the auth middleware stores the
// acting operator's subject.
type operatorKey struct{}

// WithOperator returns a context carrying the acting operator identity.
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, operatorKey{}, subject)
}

// OperatorFromContext extracts the operator identity, or "unknown".
func OperatorFromContext(ctx context.Context) string {
	if subject, ok := ctx.Value(operatorKey{}).(string); ok && subject != "" {
		return subject
	}
	return "unknown"
}

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Operator  string    `json:"operator"`
	UnitID    string    `json:"unit"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latencyMs"`
}

// Logger writes audit entries to an append-only JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
}

// NewLogger creates an audit logger writing to <logDir>/audit.jsonl.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, "audit.jsonl")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &Logger{filePath: filePath, file: file}, nil
}

// LogAction records one safety action with its outcome and latency.
func (l *Logger) LogAction(ctx context.Context, action, unitID, outcome string, latency time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Operator:  OperatorFromContext(ctx),
		UnitID:    unitID,
		Action:    action,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	}
	l.writeEntry(entry)
}

func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: marshal entry: %v\n", err)
		return
	}
	if _, err := l.file.Write(append(raw, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "audit: write entry: %v\n", err)
		return
	}
	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "audit: sync: %v\n", err)
	}
}

// FilePath returns the path of the audit log file.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
