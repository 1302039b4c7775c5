package api

import (
	"context"
	"net/url"
)

// Requester issues one authenticated call against the streaming API.
// Implementations must be safe for concurrent use; paging and upload code
// share a single Requester across goroutines.
type Requester interface {
	AuthRequest(ctx context.Context, method, path string, form url.Values) (Response, error)
}
