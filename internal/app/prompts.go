package app

import (
	"fmt"
	"strings"
)

// PromptTemplate is a system+user template pair. The user template may carry
// a {{CONTEXT}} placeholder that the analyzer replaces with the rendered
// skeleton, which lets callers swap in alternate analysis personas without
// touching the rendering pipeline.
type PromptTemplate struct {
	System string
	User   string
}

// ContextPlaceholder marks where the rendered skeleton is substituted into a
// user prompt template.
const ContextPlaceholder = "{{CONTEXT}}"

const singleShotSystemPrompt = `You are a senior software architect reviewing an unfamiliar codebase.
You are given the structural skeleton of a repository: its directory tree, configuration,
dependencies, entry points and the extracted signatures of every analyzed module.

Write a complete project guide in Markdown covering:

1. **Overview** - what the project is and what problem it solves
2. **Architecture** - how the system is organized and why
3. **Module breakdown** - the role of each significant module
4. **Tech stack** - languages, frameworks and notable dependencies
5. **Code quality** - strengths, risks and anything that needs attention
6. **Getting started** - where a new contributor should begin reading

Base every claim on the skeleton you were given. Do not invent modules or
dependencies that are not listed.`

const singleShotUserTemplate = `Analyze this repository and produce the project guide.

` + ContextPlaceholder

const chunkRoundSystemPrompt = `You are a senior software architect analyzing a large codebase one slice at a time.
Each round you receive one chunk of the repository's structural skeleton plus a digest of
what earlier rounds concluded.

Respond with ONLY a JSON object, no prose and no Markdown fence, in exactly this shape:

{
  "modules": [{"path": "...", "responsibility": "...", "key_functions": ["..."]}],
  "patterns": ["architecture patterns visible in this chunk"],
  "internal_deps": ["dependencies on other parts of this codebase"],
  "external_deps": ["third-party dependencies used by this chunk"],
  "risks": ["risks or code smells worth flagging"],
  "tech_stack": ["languages/frameworks/tools evident in this chunk"]
}

Keep every entry short. Omit nothing you can support; invent nothing you cannot.`

const synthesisSystemPrompt = `You are a senior software architect. You analyzed a large codebase in chunks and
now hold a structured summary of every chunk. Synthesize them into one coherent
project guide in Markdown covering:

1. **Overview** - what the project is and what problem it solves
2. **Architecture** - how the system is organized, drawing on the per-chunk patterns
3. **Module breakdown** - the role of each significant module across all chunks
4. **Tech stack** - languages, frameworks and notable dependencies
5. **Code quality** - strengths and the risks the chunk analyses flagged
6. **Getting started** - where a new contributor should begin reading

Write one coherent narrative, not a chunk-by-chunk recap.`

// DefaultSingleShotTemplate returns the built-in single-shot template pair.
func DefaultSingleShotTemplate() PromptTemplate {
	return PromptTemplate{System: singleShotSystemPrompt, User: singleShotUserTemplate}
}

// BuildSingleShotContext renders the whole skeleton into the prompt body the
// single-shot path substitutes for {{CONTEXT}}.
func BuildSingleShotContext(skeleton *Skeleton, meta RepoMeta, readme string) string {
	var b strings.Builder

	writeMetaSection(&b, meta)

	if skeleton.Tree != nil {
		b.WriteString("## Directory structure\n")
		b.WriteString(RenderTree(skeleton.Tree, 4))
		b.WriteString("\n")
	}

	if skeleton.Config != nil {
		fmt.Fprintf(&b, "## Project configuration (%s)\n%s\n\n", skeleton.Config.Kind, skeleton.Config.Raw)
	}

	if deps := RenderDependencies(skeleton); deps != "" {
		b.WriteString("## Dependencies\n")
		b.WriteString(deps)
		b.WriteString("\n")
	}

	if len(skeleton.EntryPoints) > 0 {
		fmt.Fprintf(&b, "## Entry points\n%s\n\n", strings.Join(skeleton.EntryPoints, "\n"))
	}

	b.WriteString("## Modules\n")
	for _, rec := range skeleton.Records {
		b.WriteString(FormatRecord(rec))
		b.WriteString("\n")
	}

	if readme != "" {
		b.WriteString("## README excerpt\n")
		b.WriteString(capText(readme, readmeExcerptCapTokens))
		b.WriteString("\n")
	}

	return b.String()
}

// BuildChunkRoundPrompt builds the user prompt for one analysis round: chunk
// position, the digest of every prior summary, project metadata and the
// chunk's rendered modules.
func BuildChunkRoundPrompt(meta RepoMeta, chunk Chunk, prior []ChunkSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Chunk %d of %d.\n\n", chunk.Index+1, chunk.TotalChunks)

	if len(prior) == 0 {
		b.WriteString("This is the first chunk; there are no prior summaries.\n\n")
	} else {
		b.WriteString("## Summaries from earlier chunks\n")
		b.WriteString(RenderSummaryDigest(prior))
		b.WriteString("\n")
	}

	writeMetaSection(&b, meta)

	b.WriteString("## Modules in this chunk\n")
	b.WriteString(FormatChunk(chunk))

	return b.String()
}

// BuildSynthesisPrompt builds the final user prompt from every accumulated
// summary plus the structural excerpts the report should reference.
func BuildSynthesisPrompt(meta RepoMeta, skeleton *Skeleton, summaries []ChunkSummary) string {
	var b strings.Builder

	writeMetaSection(&b, meta)

	fmt.Fprintf(&b, "## Chunk summaries (%d chunks analyzed)\n", len(summaries))
	b.WriteString(RenderSummaryDigest(summaries))
	b.WriteString("\n")

	if skeleton.Tree != nil {
		b.WriteString("## Directory structure\n")
		b.WriteString(RenderTree(skeleton.Tree, 3))
		b.WriteString("\n")
	}

	if deps := RenderDependencies(skeleton); deps != "" {
		b.WriteString("## Dependencies\n")
		b.WriteString(deps)
	}

	return b.String()
}

func writeMetaSection(b *strings.Builder, meta RepoMeta) {
	fmt.Fprintf(b, "## Project\nRepository: %s\n", meta.Key())
	if meta.Language != "" {
		fmt.Fprintf(b, "Primary language: %s\n", meta.Language)
	}
	if meta.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", meta.Description)
	}
	b.WriteString("\n")
}
