// Package adapt is the client for the language-adaptation service. It
// translates the app's logical operations (adapt a message, generate
// phrasing strategies, analyze a sensitivity profile) into structured LLM
// requests and parses the results.
package adapt

// Adaptation is the result of adapting one message.
type Adaptation struct {
	AdaptedText string
	Note        string
}

// StrategyOption is one of the three phrasing strategies generated for a
// stated intent. Options are ephemeral: they exist only between generation
// and user selection or cancellation, and are never persisted.
type StrategyOption struct {
	ID            string
	Label         string
	ReferenceText string // English equivalent of the refined phrasing
	TargetText    string // phrasing in the subject's target language
	Rationale     string
}

// ProfileUpdate is the result of analyzing a subject's accumulated history.
// Both fields overwrite the subject's current values wholesale.
type ProfileUpdate struct {
	Guide         string
	Sensitivities string
}

// Config tunes request sizes per operation.
type Config struct {
	AdaptMaxTokens    int
	OptionsMaxTokens  int
	AnalysisMaxTokens int
	Temperature       float64
}

// DefaultConfig returns the default request tuning.
func DefaultConfig() Config {
	return Config{
		AdaptMaxTokens:    1024,
		OptionsMaxTokens:  2048,
		AnalysisMaxTokens: 1024,
		Temperature:       0.3,
	}
}

// OptionCount is the number of strategies every generation request must
// yield; any other count is treated as a failed generation.
const OptionCount = 3

// RecentContextLimit caps how much conversation history is sent with a
// strategy-generation request.
const RecentContextLimit = 5
