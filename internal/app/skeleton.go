package app

// Language identifies the detected source language of an analyzed file.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangUnknown    Language = "unknown"
)

// FunctionSig is one extracted function or method signature.
type FunctionSig struct {
	Name     string `json:"name"`
	Params   string `json:"params"`
	Returns  string `json:"returns,omitempty"`
	Exported bool   `json:"exported"`
	Async    bool   `json:"async"`
	Line     int    `json:"line"`
}

// ClassSig is one extracted class, struct, interface or trait signature.
type ClassSig struct {
	Name     string `json:"name"`
	Base     string `json:"base,omitempty"`
	Exported bool   `json:"exported"`
	Line     int    `json:"line"`
}

// SkeletonRecord is the structural summary of one analyzed source file.
// Records are built once during extraction and never mutated afterwards; the
// chunk planner treats them as opaque sized units.
type SkeletonRecord struct {
	Path      string        `json:"path"`
	Language  Language      `json:"language"`
	Functions []FunctionSig `json:"functions,omitempty"`
	Classes   []ClassSig    `json:"classes,omitempty"`
	Exports   []string      `json:"exports,omitempty"`
}

// TreeNode is one entry of the directory-tree snapshot. Children are ordered
// directories-first, then lexically.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*TreeNode `json:"children,omitempty"`
}

// ProjectConfig is the parsed project configuration file, when one was found.
// Fields holds the handful of top-level keys worth surfacing (name, version,
// module path and similar); Raw keeps the original text for overhead
// estimation and prompt rendering.
type ProjectConfig struct {
	Kind   string            `json:"kind"` // package.json, go.mod, Cargo.toml, pyproject.toml
	Fields map[string]string `json:"fields,omitempty"`
	Raw    string            `json:"raw"`
}

// Skeleton is the full structural snapshot of one repository, built once per
// analysis run and immutable afterwards. Both the single-shot and the chunked
// paths consume it read-only.
type Skeleton struct {
	Tree        *TreeNode         `json:"tree,omitempty"`
	Config      *ProjectConfig    `json:"config,omitempty"`
	EntryPoints []string          `json:"entry_points,omitempty"`
	Records     []SkeletonRecord  `json:"records"`
	RuntimeDeps map[string]string `json:"runtime_deps,omitempty"`
	DevDeps     map[string]string `json:"dev_deps,omitempty"`
}

// RepoMeta is the project-level metadata injected into prompts.
type RepoMeta struct {
	Owner       string `json:"owner"`
	Repo        string `json:"repo"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Stars       int    `json:"stars,omitempty"`
}

// Key returns the identity under which an analysis run for this repository
// is registered.
func (m RepoMeta) Key() string {
	return m.Owner + "/" + m.Repo
}

// Chunk is an ordered slice of a skeleton's records, planned to fit the
// per-chunk token budget. The concatenation of all chunks of one plan, in
// order, is exactly the skeleton's record list: no record is ever split,
// dropped or duplicated across chunk boundaries.
type Chunk struct {
	Records     []SkeletonRecord `json:"records"`
	Index       int              `json:"index"`
	TotalChunks int              `json:"total_chunks"`
	IsLast      bool             `json:"is_last"`
}
