// Package embedding wraps remote text-embedding providers behind a small
// interface: text in, fixed-length vector out.
package embedding

import (
	"context"
	"errors"
)

// Sentinel errors for provider failures. Callers distinguish a transport or
// quota failure (ErrProvider) from a provider that cannot be reached at all,
// e.g. because no credential is configured (ErrProviderUnavailable).
var (
	ErrProvider            = errors.New("embedding provider error")
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)

// Provider generates an embedding vector for a piece of text
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
