package posix

import "context"

type logIDKey struct{}

// WithLogID attaches the audit log row of the current request to the
// context. Queued requests reference it; the daemon security check rejects
// rows whose log has disappeared.
func WithLogID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, logIDKey{}, id)
}

// LogIDFromContext extracts the audit log row id, zero when absent.
func LogIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(logIDKey{}).(int64)
	return id
}
