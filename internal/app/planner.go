package app

import "path"

// Planning constants. The base constant covers project metadata and
// instruction scaffolding; the per-module and per-dependency constants cover
// the directory-structure and dependency-list rendering; the chunk buffer
// covers per-round prompt/response scaffolding not visible to the estimator.
const (
	baseOverheadTokens     = 500
	perModuleTokens        = 20
	perDependencyTokens    = 5
	readmeExcerptCapTokens = 500
	chunkingBufferTokens   = 2000
	reservedPromptTokens   = 1500
)

// EstimateBaseOverhead estimates the token cost every prompt pays before any
// module content: scaffolding, directory rendering, project config, the
// dependency list and a capped README excerpt.
func EstimateBaseOverhead(skeleton *Skeleton, readmeLength int) int {
	overhead := baseOverheadTokens
	overhead += perModuleTokens * len(skeleton.Records)
	if skeleton.Config != nil {
		overhead += EstimateTokens(skeleton.Config.Raw)
	}
	overhead += perDependencyTokens * (len(skeleton.RuntimeDeps) + len(skeleton.DevDeps))

	readme := readmeLength / 4
	if readme > readmeExcerptCapTokens {
		readme = readmeExcerptCapTokens
	}
	overhead += readme
	return overhead
}

// NeedsChunking reports whether the skeleton is too large for a single call
// under the model budget. It must agree with SplitIntoChunks: both walk the
// same per-record rendering through the same estimator, so a skeleton that
// passes here is guaranteed to fit a single-shot prompt.
func NeedsChunking(skeleton *Skeleton, modelBudget, readmeLength int) bool {
	total := EstimateBaseOverhead(skeleton, readmeLength) + chunkingBufferTokens
	for _, rec := range skeleton.Records {
		total += EstimateTokens(FormatRecord(rec))
	}
	return total > modelBudget
}

// EstimateChunkCount predicts how many chunks a plan would produce, for
// diagnostics and progress reporting before planning actually runs.
func EstimateChunkCount(skeleton *Skeleton, modelBudget, readmeLength int) int {
	if !NeedsChunking(skeleton, modelBudget, readmeLength) {
		return 1
	}
	chunks := SplitIntoChunks(skeleton, modelBudget, EstimateBaseOverhead(skeleton, readmeLength))
	return len(chunks)
}

// SplitIntoChunks partitions the skeleton's records into ordered chunks whose
// estimated rendering cost stays under the per-chunk budget.
//
// Records are grouped by containing directory, directories in
// first-encountered order and records in original order within each group,
// so each chunk covers a cohesive slice of the system and the plan is fully
// deterministic for a given skeleton. A record is never split: one that alone
// exceeds the budget is placed in its own oversized chunk rather than
// dropped.
func SplitIntoChunks(skeleton *Skeleton, modelBudget, baseOverhead int) []Chunk {
	if len(skeleton.Records) == 0 {
		return nil
	}

	available := modelBudget - baseOverhead - reservedPromptTokens
	if available <= 0 {
		// Base overhead alone exceeds the budget. Degrade to a single
		// oversized chunk; the caller owns the consequences.
		return finishChunks([][]SkeletonRecord{append([]SkeletonRecord(nil), skeleton.Records...)})
	}

	groups := groupByDirectory(skeleton.Records)

	var chunks [][]SkeletonRecord
	var current []SkeletonRecord
	currentTokens := 0

	for _, group := range groups {
		for _, rec := range group.records {
			cost := EstimateTokens(FormatRecord(rec))
			if len(current) > 0 && currentTokens+cost > available {
				chunks = append(chunks, current)
				current = nil
				currentTokens = 0
			}
			current = append(current, rec)
			currentTokens += cost
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return finishChunks(chunks)
}

type directoryGroup struct {
	dir     string
	records []SkeletonRecord
}

// groupByDirectory builds an ordered list of (directory, records) pairs in a
// single pass. An ordered slice, not a map: chunk order must be reproducible
// and must never depend on map iteration order.
func groupByDirectory(records []SkeletonRecord) []directoryGroup {
	var groups []directoryGroup
	index := make(map[string]int, len(records))
	for _, rec := range records {
		dir := path.Dir(rec.Path)
		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, directoryGroup{dir: dir})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

// finishChunks assigns indexes, the total count and the terminal flag. The
// total is unknown until every record is placed, so it is a second pass.
func finishChunks(lists [][]SkeletonRecord) []Chunk {
	chunks := make([]Chunk, len(lists))
	for i, records := range lists {
		chunks[i] = Chunk{
			Records:     records,
			Index:       i,
			TotalChunks: len(lists),
			IsLast:      i == len(lists)-1,
		}
	}
	return chunks
}
