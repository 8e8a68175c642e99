package utils

import (
	"context"
	"medflow-service/internal/pkg/constvars"
)

// AuthorFromContext returns the acting user recorded by the middleware,
// falling back to the system author for internal callers.
func AuthorFromContext(ctx context.Context) string {
	if author, ok := ctx.Value(constvars.CONTEXT_AUTHOR_KEY).(string); ok && author != "" {
		return author
	}
	return constvars.DefaultAuthor
}
