// Package reduction bounds conversation context before it reaches an
// upstream model. A Dispatcher routes each request to one of the registered
// strategies: truncation, sliding window, summarization, or the adaptive
// strategy registered by the adaptive package.
package reduction
