// Package epoch implements cancellation by supersession: asynchronous work
// captures a token when it starts and may only publish its outcome while
// that token is still the live one.
package epoch

import "sync/atomic"

// Token identifies the generation a piece of work was started in.
type Token uint64

// Counter is a monotonic generation counter. The zero value is ready to use.
type Counter struct {
	current atomic.Uint64
}

// Begin advances the generation and returns the new token. Any token handed
// out earlier stops being current.
func (c *Counter) Begin() Token {
	return Token(c.current.Add(1))
}

// Invalidate advances the generation without starting new work.
func (c *Counter) Invalidate() {
	c.current.Add(1)
}

// Current returns the live generation.
func (c *Counter) Current() Token {
	return Token(c.current.Load())
}

// IsCurrent reports whether tok is still the live generation.
func (c *Counter) IsCurrent(tok Token) bool {
	return c.current.Load() == uint64(tok)
}
