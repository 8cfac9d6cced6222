package app

import (
	"encoding/json"
	"strings"
)

// ModuleSummary is one per-module responsibility entry inside a chunk
// summary.
type ModuleSummary struct {
	Path           string   `json:"path"`
	Responsibility string   `json:"responsibility"`
	KeyFunctions   []string `json:"key_functions,omitempty"`
}

// ChunkSummary is the structured summary one analysis round extracts from a
// chunk. Summaries accumulate in chunk order and are read-only context for
// later rounds and the final synthesis.
type ChunkSummary struct {
	ChunkIndex   int             `json:"chunk_index"`
	Modules      []ModuleSummary `json:"modules,omitempty"`
	Patterns     []string        `json:"patterns,omitempty"`
	InternalDeps []string        `json:"internal_deps,omitempty"`
	ExternalDeps []string        `json:"external_deps,omitempty"`
	Risks        []string        `json:"risks,omitempty"`
	TechStack    []string        `json:"tech_stack,omitempty"`
}

// Empty reports whether the summary carries no content, which is what a
// failed parse degrades to.
func (s ChunkSummary) Empty() bool {
	return len(s.Modules) == 0 && len(s.Patterns) == 0 &&
		len(s.InternalDeps) == 0 && len(s.ExternalDeps) == 0 &&
		len(s.Risks) == 0 && len(s.TechStack) == 0
}

// ParseChunkSummary parses a model response into a ChunkSummary. Models
// routinely wrap JSON in a Markdown code fence despite instructions, so the
// fence is stripped before decoding. A response that still fails to decode
// yields an all-empty summary and ok=false; the round is not aborted for it.
func ParseChunkSummary(response string, chunkIndex int) (ChunkSummary, bool) {
	body := stripCodeFence(response)

	var s ChunkSummary
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return ChunkSummary{ChunkIndex: chunkIndex}, false
	}
	s.ChunkIndex = chunkIndex
	return s, true
}

// stripCodeFence removes a leading/trailing Markdown code fence (``` or
// ```json) and, failing that, slices out the outermost JSON object so a
// response with chatter around the payload still decodes.
func stripCodeFence(text string) string {
	body := strings.TrimSpace(text)

	if strings.HasPrefix(body, "```") {
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = strings.TrimPrefix(body, "```")
		}
		if end := strings.LastIndex(body, "```"); end >= 0 {
			body = body[:end]
		}
		body = strings.TrimSpace(body)
	}

	if !strings.HasPrefix(body, "{") {
		start := strings.IndexByte(body, '{')
		end := strings.LastIndexByte(body, '}')
		if start >= 0 && end > start {
			body = body[start : end+1]
		}
	}
	return body
}
