package auth

import "context"

// WithLearner stores the authenticated learner on the context. Exported so
// handler tests can simulate an authenticated request without minting tokens.
func WithLearner(ctx context.Context, l *Learner) context.Context {
	return context.WithValue(ctx, learnerContextKey, l)
}

// CurrentLearner returns the learner placed on the context by RequireLearner.
func CurrentLearner(ctx context.Context) (*Learner, bool) {
	l, ok := ctx.Value(learnerContextKey).(*Learner)
	return l, ok && l != nil
}
