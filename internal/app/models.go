package app

import "strings"

// defaultContextWindow is the conservative fallback for models we have no
// published figure for.
const defaultContextWindow = 32_000

// knownContextWindows maps model identifiers to their published maximum
// context window, in tokens. Matching is by prefix after normalization so
// dated releases ("gpt-4o-2024-08-06") resolve to their family figure.
var knownContextWindows = []struct {
	prefix string
	tokens int
}{
	{"gpt-4o-mini", 128_000},
	{"gpt-4o", 128_000},
	{"gpt-4-turbo", 128_000},
	{"gpt-4.1", 1_000_000},
	{"gpt-4", 8_192},
	{"gpt-3.5-turbo", 16_385},
	{"o3-mini", 200_000},
	{"o3", 200_000},
	{"claude-3-5-sonnet", 200_000},
	{"claude-3-5-haiku", 200_000},
	{"claude-3-opus", 200_000},
	{"claude-sonnet-4", 200_000},
	{"claude-opus-4", 200_000},
	{"gemini-1.5-pro", 2_000_000},
	{"gemini-1.5-flash", 1_000_000},
	{"gemini-2.0-flash", 1_000_000},
	{"deepseek-chat", 64_000},
	{"deepseek-reasoner", 64_000},
	{"qwen-turbo", 1_000_000},
	{"qwen-plus", 131_072},
	{"qwen-max", 32_768},
	{"glm-4-plus", 128_000},
	{"glm-4", 128_000},
	{"minimax-m2", 205_000},
	{"llama-3.1", 128_000},
	{"mistral-large", 128_000},
}

// RawContextLimit returns the published context window for a model, or the
// conservative default when the model is unrecognized. Diagnostic use only;
// budgeting should go through ContextLimit.
func RawContextLimit(model string) int {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return defaultContextWindow
	}
	for _, entry := range knownContextWindows {
		if strings.HasPrefix(m, entry.prefix) {
			return entry.tokens
		}
	}
	return defaultContextWindow
}

// ContextLimit returns the usable context budget for a model: the raw window
// discounted by 20% to leave headroom for the model's own response and for
// prompt scaffolding the estimator does not account for.
func ContextLimit(model string) int {
	return RawContextLimit(model) * 8 / 10
}
