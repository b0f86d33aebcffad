package protocol

import (
	"context"
	"net/http"
)

// HTTPDoer is the outbound HTTP capability; *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mailer is the outbound email capability.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
