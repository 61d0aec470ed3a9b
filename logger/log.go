// Package logger sends slog records to Cloud Logging through the client library,
// for processes running outside Cloud Functions where stdout is not collected.
package logger

import (
	"context"
	"log/slog"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
)

// New returns a logger writing to the Cloud Logging log logID of the current project.
// The returned close func flushes buffered entries.
func New(ctx context.Context, projectID, logID string) (*slog.Logger, func() error, error) {
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(NewHandler(client.Logger(logID), slog.LevelInfo)), client.Close, nil
}

// Entries is the part of *logging.Logger the handler needs.
type Entries interface {
	Log(e logging.Entry)
}

// Handler is a slog.Handler producing Cloud Logging entries.
type Handler struct {
	entries Entries
	level   slog.Leveler
	attrs   []slog.Attr
}

func NewHandler(entries Entries, level slog.Leveler) *Handler {
	return &Handler{entries: entries, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	payload := map[string]any{"message": r.Message}
	for _, attr := range h.attrs {
		payload[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		payload[attr.Key] = attr.Value.Any()
		return true
	})
	h.entries.Log(logging.Entry{
		Timestamp: r.Time,
		Severity:  severity(r.Level),
		Payload:   payload,
	})
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &Handler{entries: h.entries, level: h.level, attrs: newAttrs}
}

func (h *Handler) WithGroup(_ string) slog.Handler {
	return h
}

func severity(l slog.Level) logging.Severity {
	switch {
	case l >= slog.LevelError:
		return logging.Error
	case l >= slog.LevelWarn:
		return logging.Warning
	case l >= slog.LevelInfo:
		return logging.Info
	default:
		return logging.Debug
	}
}
