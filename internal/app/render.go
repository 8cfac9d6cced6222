package app

import (
	"fmt"
	"sort"
	"strings"
)

// FormatRecord renders one skeleton record as the structural text the model
// sees. The chunk planner estimates token cost from this exact rendering, so
// planning-time estimates and actual prompt sizes stay consistent.
func FormatRecord(rec SkeletonRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s)\n", rec.Path, rec.Language)

	if len(rec.Classes) > 0 {
		b.WriteString("Classes:\n")
		for _, c := range rec.Classes {
			line := "- " + c.Name
			if c.Base != "" {
				line += " : " + c.Base
			}
			if c.Exported {
				line += " [exported]"
			}
			fmt.Fprintf(&b, "%s (line %d)\n", line, c.Line)
		}
	}

	if len(rec.Functions) > 0 {
		b.WriteString("Functions:\n")
		for _, f := range rec.Functions {
			line := "- " + f.Name + "(" + f.Params + ")"
			if f.Returns != "" {
				line += " -> " + f.Returns
			}
			if f.Async {
				line += " [async]"
			}
			if f.Exported {
				line += " [exported]"
			}
			fmt.Fprintf(&b, "%s (line %d)\n", line, f.Line)
		}
	}

	if len(rec.Exports) > 0 {
		fmt.Fprintf(&b, "Exports: %s\n", strings.Join(rec.Exports, ", "))
	}

	return b.String()
}

// FormatChunk renders every record of a chunk in order.
func FormatChunk(chunk Chunk) string {
	var b strings.Builder
	for _, rec := range chunk.Records {
		b.WriteString(FormatRecord(rec))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTree renders the directory tree as an indented listing, pruned at
// maxDepth to keep the excerpt bounded on deep repositories.
func RenderTree(node *TreeNode, maxDepth int) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	renderTreeNode(&b, node, 0, maxDepth)
	return b.String()
}

func renderTreeNode(b *strings.Builder, node *TreeNode, depth, maxDepth int) {
	if depth > maxDepth {
		return
	}
	indent := strings.Repeat("  ", depth)
	name := node.Name
	if node.IsDir {
		name += "/"
	}
	fmt.Fprintf(b, "%s%s\n", indent, name)
	for _, child := range node.Children {
		renderTreeNode(b, child, depth+1, maxDepth)
	}
}

// RenderDependencies renders the runtime and dev dependency maps with sorted
// keys so the output is stable across runs.
func RenderDependencies(skeleton *Skeleton) string {
	var b strings.Builder
	writeDepGroup(&b, "Dependencies", skeleton.RuntimeDeps)
	writeDepGroup(&b, "Dev dependencies", skeleton.DevDeps)
	return b.String()
}

func writeDepGroup(b *strings.Builder, label string, deps map[string]string) {
	if len(deps) == 0 {
		return
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(b, "%s:\n", label)
	for _, name := range names {
		fmt.Fprintf(b, "- %s %s\n", name, deps[name])
	}
}

// RenderSummaryDigest renders accumulated chunk summaries as the compact
// prior-context digest injected into later rounds and the synthesis prompt.
func RenderSummaryDigest(summaries []ChunkSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "Chunk %d:\n", s.ChunkIndex+1)
		if s.Empty() {
			b.WriteString("(no summary produced)\n\n")
			continue
		}
		for _, m := range s.Modules {
			line := fmt.Sprintf("- %s: %s", m.Path, m.Responsibility)
			if len(m.KeyFunctions) > 0 {
				line += " (key: " + strings.Join(m.KeyFunctions, ", ") + ")"
			}
			b.WriteString(line + "\n")
		}
		writeLabelList(&b, "Patterns", s.Patterns)
		writeLabelList(&b, "Internal deps", s.InternalDeps)
		writeLabelList(&b, "External deps", s.ExternalDeps)
		writeLabelList(&b, "Risks", s.Risks)
		writeLabelList(&b, "Tech stack", s.TechStack)
		b.WriteString("\n")
	}
	return b.String()
}

func writeLabelList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

// capText truncates text to at most maxTokens' worth of estimated tokens.
// Used for README excerpts, which add context but should never dominate the
// budget.
func capText(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}
	// 4 chars/token is the estimator's cheapest class, so this bound only
	// ever over-trims, never under-trims.
	limit := maxTokens * 4
	runes := []rune(text)
	for len(runes) > 0 && EstimateTokens(string(runes)) > maxTokens {
		if len(runes) > limit {
			runes = runes[:limit]
			continue
		}
		runes = runes[:len(runes)*9/10]
	}
	return string(runes) + "\n[...truncated]"
}
