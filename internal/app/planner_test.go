package app

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// paddedRecord builds a record whose FormatRecord rendering costs roughly
// targetTokens, by padding a single function's parameter text.
func paddedRecord(path string, targetTokens int) SkeletonRecord {
	rec := SkeletonRecord{
		Path:     path,
		Language: LangGo,
		Functions: []FunctionSig{{
			Name:   "Handler",
			Params: strings.Repeat("x", targetTokens*4),
			Line:   1,
		}},
	}
	return rec
}

func testSkeleton(records ...SkeletonRecord) *Skeleton {
	return &Skeleton{Records: records}
}

func collectRecords(chunks []Chunk) []SkeletonRecord {
	var out []SkeletonRecord
	for _, c := range chunks {
		out = append(out, c.Records...)
	}
	return out
}

func TestSplitIntoChunks_PartitionInvariant(t *testing.T) {
	var records []SkeletonRecord
	for dir := 0; dir < 4; dir++ {
		for i := 0; i < 6; i++ {
			records = append(records, paddedRecord(fmt.Sprintf("pkg%d/file%d.go", dir, i), 800))
		}
	}
	skeleton := testSkeleton(records...)

	chunks := SplitIntoChunks(skeleton, 10_000, 1_000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !reflect.DeepEqual(collectRecords(chunks), records) {
		t.Fatal("chunk concatenation must reproduce the record list exactly")
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.TotalChunks != len(chunks) {
			t.Fatalf("chunk %d reports total %d, want %d", i, c.TotalChunks, len(chunks))
		}
		if c.IsLast != (i == len(chunks)-1) {
			t.Fatalf("chunk %d terminal flag wrong", i)
		}
	}
}

func TestSplitIntoChunks_RespectsBudget(t *testing.T) {
	var records []SkeletonRecord
	for i := 0; i < 12; i++ {
		records = append(records, paddedRecord(fmt.Sprintf("src/f%d.go", i), 700))
	}
	budget, overhead := 10_000, 1_000
	available := budget - overhead - reservedPromptTokens

	for _, c := range SplitIntoChunks(testSkeleton(records...), budget, overhead) {
		if len(c.Records) == 1 {
			continue // single oversized records may exceed the budget
		}
		total := 0
		for _, rec := range c.Records {
			total += EstimateTokens(FormatRecord(rec))
		}
		if total > available {
			t.Fatalf("chunk %d estimated at %d tokens, budget %d", c.Index, total, available)
		}
	}
}

func TestSplitIntoChunks_OversizedRecordGetsOwnChunk(t *testing.T) {
	records := []SkeletonRecord{
		paddedRecord("a/small.go", 100),
		paddedRecord("a/huge.go", 50_000),
		paddedRecord("a/tiny.go", 100),
	}
	chunks := SplitIntoChunks(testSkeleton(records...), 10_000, 1_000)

	if !reflect.DeepEqual(collectRecords(chunks), records) {
		t.Fatal("no record may be dropped or split")
	}
	for _, c := range chunks {
		for _, rec := range c.Records {
			if rec.Path == "a/huge.go" && len(c.Records) != 1 {
				t.Fatalf("oversized record should sit alone, shares chunk with %d records", len(c.Records)-1)
			}
		}
	}
}

func TestSplitIntoChunks_ZeroBudgetDegradesToSingleChunk(t *testing.T) {
	records := []SkeletonRecord{
		paddedRecord("a.go", 500),
		paddedRecord("b.go", 500),
	}
	chunks := SplitIntoChunks(testSkeleton(records...), 1_000, 5_000)
	if len(chunks) != 1 {
		t.Fatalf("expected a single degraded chunk, got %d", len(chunks))
	}
	if len(chunks[0].Records) != 2 || !chunks[0].IsLast {
		t.Fatal("degraded chunk must hold every record and be terminal")
	}
}

func TestSplitIntoChunks_EmptySkeleton(t *testing.T) {
	if chunks := SplitIntoChunks(testSkeleton(), 10_000, 500); chunks != nil {
		t.Fatalf("expected nil plan for empty skeleton, got %d chunks", len(chunks))
	}
}

func TestSplitIntoChunks_Deterministic(t *testing.T) {
	var records []SkeletonRecord
	for dir := 0; dir < 5; dir++ {
		for i := 0; i < 4; i++ {
			records = append(records, paddedRecord(fmt.Sprintf("mod%d/f%d.go", dir, i), 600))
		}
	}
	skeleton := testSkeleton(records...)

	first := SplitIntoChunks(skeleton, 8_000, 500)
	second := SplitIntoChunks(skeleton, 8_000, 500)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("two plans over the same skeleton must be identical")
	}
}

func TestSplitIntoChunks_DirectoryGrouping(t *testing.T) {
	// Records arrive interleaved across directories; grouping must pull
	// each directory's records together in first-encounter order.
	records := []SkeletonRecord{
		paddedRecord("api/a.go", 100),
		paddedRecord("core/b.go", 100),
		paddedRecord("api/c.go", 100),
		paddedRecord("core/d.go", 100),
	}
	chunks := SplitIntoChunks(testSkeleton(records...), 100_000, 500)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	var order []string
	for _, rec := range chunks[0].Records {
		order = append(order, rec.Path)
	}
	want := []string{"api/a.go", "api/c.go", "core/b.go", "core/d.go"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected directory-grouped order %v, got %v", want, order)
	}
}

func TestNeedsChunking_SmallSkeletonFits(t *testing.T) {
	// Three modules, ~500 estimated tokens total, huge budget.
	skeleton := testSkeleton(
		paddedRecord("a.go", 150),
		paddedRecord("b.go", 150),
		paddedRecord("c.go", 150),
	)
	if NeedsChunking(skeleton, 100_000, 0) {
		t.Fatal("small skeleton must not need chunking under a 100k budget")
	}
	// Agreement with the single-shot path: the full render fits the budget.
	body := BuildSingleShotContext(skeleton, RepoMeta{Owner: "o", Repo: "r"}, "")
	if EstimateTokens(body) > 100_000 {
		t.Fatal("single-shot render must fit the budget needsChunking approved")
	}
}

func TestNeedsChunking_LargeSkeletonSplits(t *testing.T) {
	// 40 modules across 5 directories, ~3000 tokens each, default budget
	// 25600 (32000 raw, 20% headroom reserved).
	var records []SkeletonRecord
	for i := 0; i < 40; i++ {
		records = append(records, paddedRecord(fmt.Sprintf("dir%d/mod%d.go", i/8, i), 3_000))
	}
	skeleton := testSkeleton(records...)
	budget := ContextLimit("unknown-model")
	if budget != 25_600 {
		t.Fatalf("expected 25600 budget, got %d", budget)
	}
	if !NeedsChunking(skeleton, budget, 0) {
		t.Fatal("120k-token skeleton must need chunking under a 25.6k budget")
	}

	chunks := SplitIntoChunks(skeleton, budget, EstimateBaseOverhead(skeleton, 0))
	if len(chunks) < 5 {
		t.Fatalf("expected at least 5 chunks, got %d", len(chunks))
	}
	if !reflect.DeepEqual(collectRecords(chunks), records) {
		t.Fatal("partition invariant violated")
	}
}

func TestEstimateBaseOverhead(t *testing.T) {
	skeleton := testSkeleton(paddedRecord("a.go", 10), paddedRecord("b.go", 10))
	skeleton.RuntimeDeps = map[string]string{"left-pad": "1.0.0"}

	base := EstimateBaseOverhead(skeleton, 0)
	want := baseOverheadTokens + 2*perModuleTokens + perDependencyTokens
	if base != want {
		t.Fatalf("expected %d, got %d", want, base)
	}

	// README contribution is capped.
	withHuge := EstimateBaseOverhead(skeleton, 1_000_000)
	if withHuge != want+readmeExcerptCapTokens {
		t.Fatalf("README overhead must cap at %d, got %d extra", readmeExcerptCapTokens, withHuge-want)
	}
}
