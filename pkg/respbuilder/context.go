package respbuilder

import "context"

type respCtxKey struct{}

var respTracerKey = respCtxKey{}

// Tracer is copied into every response so client can quote the trace id.
type Tracer struct {
	RemoteAddr string
	AppTraceID string
}

func Inject(ctx context.Context, stuff Tracer) context.Context {
	return context.WithValue(ctx, respTracerKey, stuff)
}

func Extract(ctx context.Context) (Tracer, bool) {
	stuff, ok := ctx.Value(respTracerKey).(Tracer)
	if !ok {
		return Tracer{}, false
	}

	return stuff, ok
}

// MustExtract return empty Tracer when nothing is injected.
func MustExtract(ctx context.Context) Tracer {
	stuff, _ := Extract(ctx)
	return stuff
}
