package template

import (
	"context"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

// Resolver routes a reference to the source for its scheme: http:// and
// https:// go to the remote source, everything else to the local one
type Resolver struct {
	Local  Source
	Remote Source
}

// NewResolver creates a resolver. A nil remote source rejects URLs.
func NewResolver(local, remote Source) *Resolver {
	return &Resolver{Local: local, Remote: remote}
}

// IsRemote reports whether ref names an HTTP(S) URL
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch implements Source
func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable, "template reference is empty")
	}

	if IsRemote(ref) {
		if r.Remote == nil {
			return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSecurityRestriction,
				"remote templates are disabled").WithSource(ref)
		}
		return r.Remote.Fetch(ctx, ref)
	}

	if r.Local == nil {
		return nil, pdferrors.NewPDFError(pdferrors.ErrorTypeSourceUnavailable,
			"no template directory configured").WithSource(ref)
	}
	return r.Local.Fetch(ctx, ref)
}
