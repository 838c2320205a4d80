package llm

import "sync/atomic"

// TokenTracker accumulates token usage over the provider calls of a process.
// Solvers of one round share it concurrently.
type TokenTracker struct {
	input  atomic.Int64
	output atomic.Int64
	calls  atomic.Int64
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records the usage reported for one call.
func (t *TokenTracker) Add(input, output int64) {
	t.input.Add(input)
	t.output.Add(output)
	t.calls.Add(1)
}

// Total returns the input and output tokens recorded so far.
func (t *TokenTracker) Total() (input, output int64) {
	return t.input.Load(), t.output.Load()
}

// Calls returns the number of recorded calls.
func (t *TokenTracker) Calls() int {
	return int(t.calls.Load())
}
