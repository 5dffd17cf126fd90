package ai

import "context"

// Conversation roles understood by completion providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation turn handed to a completion provider.
type Turn struct {
	Role    string
	Content string
}

// CompletionProvider produces a single text completion for a system
// instruction plus ordered conversation turns. Implementations are
// constructed explicitly and injected; configuration is never read from
// ambient state at call time.
type CompletionProvider interface {
	// ID identifies the provider; it is recorded as the sender id on
	// synthesized messages.
	ID() string
	Complete(ctx context.Context, system string, turns []Turn) (string, error)
}
