// Package logging provides structured logging with trace-ID support,
// shared by every coordinator component.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried alongside a logger.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	TaskIDKey  ContextKey = "task_id"
	NodeIDKey  ContextKey = "node_id"
)

// Logger wraps logrus.Logger with coordinator-specific helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the named service/component.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a Logger using LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying trace/task/node IDs found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if v := ctx.Value(TraceIDKey); v != nil {
		entry = entry.WithField("trace_id", v)
	}
	if v := ctx.Value(TaskIDKey); v != nil {
		entry = entry.WithField("task_id", v)
	}
	if v := ctx.Value(NodeIDKey); v != nil {
		entry = entry.WithField("node_id", v)
	}
	return entry
}

// WithFields returns an entry carrying the service name plus fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// NewTraceID mints a random trace identifier.
func NewTraceID() string { return uuid.New().String() }

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithTaskID attaches a task ID to ctx.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, TaskIDKey, taskID)
}

// WithNodeID attaches a node ID to ctx.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, NodeIDKey, nodeID)
}

// LogNodeEvent logs a registry-level event about a worker connection.
func (l *Logger) LogNodeEvent(ctx context.Context, event, nodeID string, fields map[string]interface{}) {
	entry := l.WithContext(ctx).WithField("node_id", nodeID)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info(event)
}

// LogTaskEvent logs an orchestrator-level task/subtask transition.
func (l *Logger) LogTaskEvent(ctx context.Context, event, taskID string, fields map[string]interface{}) {
	entry := l.WithContext(ctx).WithField("task_id", taskID)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info(event)
}

// LogCryptoFailure logs an envelope seal/open failure.
func (l *Logger) LogCryptoFailure(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"operation": operation,
	}).WithError(err).Warn("crypto operation failed")
}

// LogSecurityEvent logs an authentication/authorization-relevant event.
func (l *Logger) LogSecurityEvent(ctx context.Context, eventType string, details map[string]interface{}) {
	fields := logrus.Fields{"event_type": eventType, "severity": "security"}
	for k, v := range details {
		fields[k] = v
	}
	l.WithContext(ctx).WithFields(fields).Warn("security event")
}
