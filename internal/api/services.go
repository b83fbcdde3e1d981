package api

import (
	"github.com/estudio-ia/studio-server/internal/export"
	"github.com/estudio-ia/studio-server/internal/ratelimit"
	"github.com/estudio-ia/studio-server/internal/sse"
	"github.com/estudio-ia/studio-server/internal/store"
)

// Services groups the collaborators used by the API server.
// This keeps the NewServer parameter list short and eases testing.
type Services struct {
	Export     *export.Service
	Store      store.Backend
	SSEManager *sse.Manager
}

// Options tunes the HTTP surface.
type Options struct {
	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string
	// Limiter throttles API requests per client IP. Nil disables rate limiting.
	Limiter *ratelimit.KeyedRateLimiter
	// Title and Version describe the generated OpenAPI document.
	Title   string
	Version string
}
