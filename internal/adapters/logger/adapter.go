// Package logger provides adapters for the logging interface.
package logger

import (
	"context"
	"maps"

	"github.com/google/uuid"
)

// Field names stamped on every entry.
const (
	FieldRunID     = "run_id"
	FieldComponent = "component"
)

// Logger defines the logging interface used throughout the application.
// External loggers that implement these methods can be wrapped with ZapAdapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// ZapAdapter adapts a Logger to the application's logging interface and
// stamps each entry with the run it belongs to.
type ZapAdapter struct {
	log  Logger
	base map[string]any
}

// NewZapAdapter creates a ZapAdapter for a new run with a fresh run ID.
func NewZapAdapter(log Logger) *ZapAdapter {
	return NewZapAdapterWithRunID(log, uuid.NewString())
}

// NewZapAdapterWithRunID creates a ZapAdapter for the given run ID.
func NewZapAdapterWithRunID(log Logger, runID string) *ZapAdapter {
	return &ZapAdapter{
		log:  log,
		base: map[string]any{FieldRunID: runID},
	}
}

// RunID returns the run identifier attached to every entry.
func (a *ZapAdapter) RunID() string {
	id, _ := a.base[FieldRunID].(string)
	return id
}

// ForComponent returns an adapter that also tags entries with component.
func (a *ZapAdapter) ForComponent(component string) *ZapAdapter {
	base := maps.Clone(a.base)
	base[FieldComponent] = component
	return &ZapAdapter{log: a.log, base: base}
}

// with merges the base fields under the call's fields. Call fields win.
func (a *ZapAdapter) with(fields map[string]any) map[string]any {
	out := make(map[string]any, len(a.base)+len(fields))
	maps.Copy(out, a.base)
	maps.Copy(out, fields)
	return out
}

// Info logs an info message.
func (a *ZapAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	a.log.Info(ctx, msg, a.with(fields))
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	a.log.Debug(ctx, msg, a.with(fields))
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	a.log.Warn(ctx, msg, a.with(fields))
}

// Error logs an error message.
func (a *ZapAdapter) Error(ctx context.Context, msg string, err error, fields map[string]any) {
	a.log.Error(ctx, msg, err, a.with(fields))
}
