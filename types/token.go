package types

// TokenEstimator converts messages into an approximate token count. The
// default implementation is a length heuristic; a model-accurate tokenizer
// can be substituted behind the same interface without touching any strategy.
type TokenEstimator interface {
	// EstimateText returns the approximate token count of raw text.
	EstimateText(text string) int

	// EstimateMessage returns the approximate token count of one message,
	// including per-message structural overhead.
	EstimateMessage(msg Message) int

	// EstimateMessages returns the total for a message list.
	EstimateMessages(msgs []Message) int

	// Name identifies the estimator for logging and diagnostics.
	Name() string
}

// messageOverhead accounts for role markers and separators per message.
const messageOverhead = 4

// HeuristicEstimator estimates tokens as len(content)/4 plus a fixed
// per-message overhead. It is deliberately model-agnostic.
type HeuristicEstimator struct{}

// NewHeuristicEstimator creates the default length-based estimator.
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{}
}

func (e *HeuristicEstimator) EstimateText(text string) int {
	return len(text) / 4
}

func (e *HeuristicEstimator) EstimateMessage(msg Message) int {
	return e.EstimateText(msg.Content) + messageOverhead
}

func (e *HeuristicEstimator) EstimateMessages(msgs []Message) int {
	total := 0
	for _, msg := range msgs {
		total += e.EstimateMessage(msg)
	}
	return total
}

func (e *HeuristicEstimator) Name() string {
	return "heuristic"
}
