// Package audit implements the append-only log of operator control actions.
//
// Each action is one JSON line carrying operator, transmitter, parameters,
// outcome and a normalized result code. The file is rotated by size.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the active audit file inside the log directory.
const FileName = "audit.jsonl"

// Entry represents a single audit log entry.
type Entry struct {
	ID          string                 `json:"id"`
	Timestamp   time.Time              `json:"ts"`
	Operator    string                 `json:"operator"`
	Transmitter string                 `json:"transmitter"`
	Action      string                 `json:"action"`
	Params      map[string]interface{} `json:"params,omitempty"`
	Outcome     string                 `json:"outcome"`
	Code        string                 `json:"code"`
	LatencyMs   int64                  `json:"latencyMs"`
}

// Options controls rotation. Zero values fall back to lumberjack defaults.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger writes audit entries through a rotating file writer.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
}

type operatorKey struct{}

// WithOperator returns a context carrying the operator name recorded in
// audit entries.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// NewLogger creates a logger writing to logDir/audit.jsonl.
func NewLogger(logDir string, opts Options) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, FileName)

	// lumberjack opens lazily; touch the file so open errors surface here.
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	_ = f.Close()

	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		},
	}, nil
}

// LogControlAction records one control action. A nil err is recorded as
// SUCCESS.
func (l *Logger) LogControlAction(ctx context.Context, action, transmitter string, params map[string]interface{}, latency time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}

	l.writeEntry(Entry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Operator:    operatorFromContext(ctx),
		Transmitter: transmitter,
		Action:      action,
		Params:      params,
		Outcome:     outcome,
		Code:        codeFromError(err),
		LatencyMs:   latency.Milliseconds(),
	})
}

func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal audit entry")
		return
	}

	if _, err := l.out.Write(append(data, '\n')); err != nil {
		logrus.WithError(err).WithField("path", l.filePath).Error("Failed to write audit entry")
	}
}

func operatorFromContext(ctx context.Context) string {
	if ctx != nil {
		if op, ok := ctx.Value(operatorKey{}).(string); ok && op != "" {
			return op
		}
	}
	return "unknown"
}

// codes lists the normalized error codes, most specific first.
var codes = []string{
	"UNKNOWN_TRANSMITTER",
	"UNKNOWN_TYPE",
	"INVALID_PARAMETER",
	"NO_TRANSMITTERS",
	"INIT_FAILED",
	"TIMEOUT",
	"UNAVAILABLE",
}

// codeFromError maps an error to its normalized code.
func codeFromError(err error) string {
	if err == nil {
		return "SUCCESS"
	}
	msg := err.Error()
	for _, code := range codes {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return "ERROR"
}

// Rotate closes the current file, moves it aside and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return fmt.Errorf("audit logger closed")
	}
	if err := l.out.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}
	return nil
}

// Close closes the audit log. Further entries are dropped.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}

// GetFilePath returns the path to the active audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}
