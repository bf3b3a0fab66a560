package guard

import (
	"context"

	"github.com/tuniway/tuniway-web/users"
)

type contextKey string

const contextKeyRecord contextKey = "session_record"

// WithRecord stores the record the guard admitted.
func WithRecord(ctx context.Context, record users.Record) context.Context {
	return context.WithValue(ctx, contextKeyRecord, record)
}

// RecordFrom returns the record admitted by Middleware, if any.
func RecordFrom(ctx context.Context) (users.Record, bool) {
	record, ok := ctx.Value(contextKeyRecord).(users.Record)
	return record, ok
}
