// Package llm wraps the external text-completion service behind a small
// interface so the orchestrator never depends on a concrete provider.
package llm

import (
	"context"
	"errors"
)

// ErrCompletion is wrapped around any completion-service failure, including
// timeouts. The failed turn is aborted and may be retried by the caller.
var ErrCompletion = errors.New("completion service failure")

// Completer turns a composed prompt into assistant text. The call may block
// up to the caller's context deadline.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
