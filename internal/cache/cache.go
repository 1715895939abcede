// Package cache holds rendered responses of read-heavy pages so they can be
// served without touching the database until a mutation invalidates them.
package cache

import (
	"context"
	"strings"
	"time"
)

// PageCache stores rendered page bodies keyed by path and viewer scope.
type PageCache interface {
	Get(ctx context.Context, path, scope string) ([]byte, bool, error)
	Set(ctx context.Context, path, scope string, body []byte, ttl time.Duration) error
	// Invalidate drops every cached render of path, for all scopes.
	Invalidate(ctx context.Context, path string) error
}

// WorkflowPath is the cache path of a workflow's detail page.
func WorkflowPath(workflowID string) string {
	return "/workflows/" + workflowID
}

func pageKey(path, scope string) string {
	return pagePrefix(path) + scope
}

func pagePrefix(path string) string {
	return "page:" + strings.TrimRight(path, "/") + "|"
}
