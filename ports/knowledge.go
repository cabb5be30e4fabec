package ports

import "context"

// KnowledgeClient answers open-ended mining questions. Implementations may
// block on network IO; callers bound the call with a context deadline.
type KnowledgeClient interface {
	Answer(ctx context.Context, question string) (string, error)
}

// KnowledgeClientFunc adapts a function to KnowledgeClient
type KnowledgeClientFunc func(ctx context.Context, question string) (string, error)

func (f KnowledgeClientFunc) Answer(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}
