package audit

import "context"

type contextKey struct{}

// Metadata is the request information attached to audit entries.
type Metadata struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithMetadata returns ctx carrying m.
func WithMetadata(ctx context.Context, m Metadata) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// MetadataFromContext returns the metadata stored by WithMetadata.
func MetadataFromContext(ctx context.Context) Metadata {
	m, _ := ctx.Value(contextKey{}).(Metadata)
	return m
}
