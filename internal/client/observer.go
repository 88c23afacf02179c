package client

import (
	"context"
	"log/slog"
	"time"
)

// maxLoggedBody caps request and response bodies carried in events.
const maxLoggedBody = 1000

// RequestEvent is emitted before a request is sent.
type RequestEvent struct {
	RequestID string
	Method    string
	URL       string
	Body      string
}

// ResponseEvent is emitted when a response arrives, whatever its status.
type ResponseEvent struct {
	RequestID string
	Method    string
	URL       string
	Status    int
	Duration  time.Duration
	Body      string
}

// ErrorEvent is emitted for every call that ends in an error.
type ErrorEvent struct {
	RequestID string
	Method    string
	URL       string
	Status    int
	Duration  time.Duration
	Err       error
}

// Observer receives dispatcher telemetry. It is advisory: observers cannot
// change the outcome of a call, and a panicking observer is recovered and
// logged.
//
// Implementations must be safe for concurrent use.
type Observer interface {
	OnRequest(ctx context.Context, ev RequestEvent)
	OnResponse(ctx context.Context, ev ResponseEvent)
	OnError(ctx context.Context, ev ErrorEvent)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnRequest(context.Context, RequestEvent)   {}
func (NopObserver) OnResponse(context.Context, ResponseEvent) {}
func (NopObserver) OnError(context.Context, ErrorEvent)       {}

// LogObserver writes events to a slog logger: requests and responses at
// debug level, slow responses at warn, and errors at error.
type LogObserver struct {
	Logger *slog.Logger

	// SlowThreshold logs responses slower than this at warn level.
	// Zero disables slow-call logging.
	SlowThreshold time.Duration
}

// NewLogObserver returns a LogObserver on logger, or slog.Default if nil.
func NewLogObserver(logger *slog.Logger, slow time.Duration) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{Logger: logger, SlowThreshold: slow}
}

func (o *LogObserver) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *LogObserver) OnRequest(ctx context.Context, ev RequestEvent) {
	o.logger().DebugContext(ctx, "tables api request",
		"request_id", ev.RequestID,
		"method", ev.Method,
		"url", ev.URL,
		"body", ev.Body,
	)
}

func (o *LogObserver) OnResponse(ctx context.Context, ev ResponseEvent) {
	attrs := []any{
		"request_id", ev.RequestID,
		"method", ev.Method,
		"url", ev.URL,
		"status", ev.Status,
		"duration_ms", ev.Duration.Milliseconds(),
	}
	if o.SlowThreshold > 0 && ev.Duration > o.SlowThreshold {
		o.logger().WarnContext(ctx, "tables api slow response", attrs...)
		return
	}
	o.logger().DebugContext(ctx, "tables api response", append(attrs, "body", ev.Body)...)
}

func (o *LogObserver) OnError(ctx context.Context, ev ErrorEvent) {
	o.logger().ErrorContext(ctx, "tables api error",
		"request_id", ev.RequestID,
		"method", ev.Method,
		"url", ev.URL,
		"status", ev.Status,
		"duration_ms", ev.Duration.Milliseconds(),
		"error", ev.Err,
	)
}

// observerChain fans events out to every observer behind recover.
type observerChain struct {
	observers []Observer
}

func (c observerChain) with(o Observer) observerChain {
	if o == nil {
		return c
	}
	next := make([]Observer, 0, len(c.observers)+1)
	next = append(next, c.observers...)
	return observerChain{observers: append(next, o)}
}

func (c observerChain) request(ctx context.Context, ev RequestEvent) {
	for _, o := range c.observers {
		safeObserve("OnRequest", func() { o.OnRequest(ctx, ev) })
	}
}

func (c observerChain) response(ctx context.Context, ev ResponseEvent) {
	for _, o := range c.observers {
		safeObserve("OnResponse", func() { o.OnResponse(ctx, ev) })
	}
}

func (c observerChain) error(ctx context.Context, ev ErrorEvent) {
	for _, o := range c.observers {
		safeObserve("OnError", func() { o.OnError(ctx, ev) })
	}
}

func safeObserve(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("client: observer panic", "hook", hook, "panic", r)
		}
	}()
	fn()
}

func truncateBody(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "…"
}
