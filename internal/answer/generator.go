package answer

import "context"

// Generator produces an answer to a question given retrieved context passages.
type Generator interface {
	// Answer generates a response grounded in the provided contexts.
	Answer(ctx context.Context, question string, contexts []string) (string, error)

	// Close releases any resources held by the generator.
	Close() error
}
