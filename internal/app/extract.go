package app

import (
	"encoding/json"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// analyzableExts maps source-file extensions to their language.
var analyzableExts = map[string]Language{
	".go":   LangGo,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".py":   LangPython,
	".java": LangJava,
	".rs":   LangRust,
}

func analyzablePath(p string) bool {
	_, ok := analyzableExts[strings.ToLower(path.Ext(p))]
	return ok
}

// DetectLanguage resolves a file path to its source language.
func DetectLanguage(p string) Language {
	if lang, ok := analyzableExts[strings.ToLower(path.Ext(p))]; ok {
		return lang
	}
	return LangUnknown
}

// BuildSkeleton turns raw source inputs into the immutable skeleton both
// analysis paths consume: one record per analyzable file, the directory
// tree, the parsed project config, entry points and dependency maps.
//
// Extraction is regex-based and heuristic on purpose: the skeleton only has
// to be structurally useful to the model, not syntactically exact.
func BuildSkeleton(inputs *SourceInputs) *Skeleton {
	skeleton := &Skeleton{
		Tree:        BuildTree(inputs.Meta.Repo, inputs.Paths),
		RuntimeDeps: map[string]string{},
		DevDeps:     map[string]string{},
	}

	for _, file := range inputs.Files {
		// Fetched config files feed the config parse below, not the
		// record list.
		if !analyzablePath(file.Path) {
			continue
		}
		rec := ExtractRecord(file.Path, file.Content)
		skeleton.Records = append(skeleton.Records, rec)
		if isEntryPoint(file.Path) {
			skeleton.EntryPoints = append(skeleton.EntryPoints, file.Path)
		}
	}

	for _, file := range inputs.Files {
		if cfg := parseProjectConfig(file.Path, file.Content, skeleton); cfg != nil {
			skeleton.Config = cfg
			break
		}
	}
	if skeleton.Config == nil {
		// Config files are small and often outside the analyzable set;
		// look for them in the tree-only paths too. Content is not
		// available there, so only the kind is recorded.
		for _, p := range inputs.Paths {
			if kind := configKind(p); kind != "" {
				skeleton.Config = &ProjectConfig{Kind: kind}
				break
			}
		}
	}

	return skeleton
}

// ExtractRecord extracts the structural summary of one source file.
func ExtractRecord(filePath, content string) SkeletonRecord {
	rec := SkeletonRecord{Path: filePath, Language: DetectLanguage(filePath)}

	switch rec.Language {
	case LangGo:
		extractGo(&rec, content)
	case LangJavaScript, LangTypeScript:
		extractJS(&rec, content)
	case LangPython:
		extractPython(&rec, content)
	case LangJava:
		extractJava(&rec, content)
	case LangRust:
		extractRust(&rec, content)
	}
	return rec
}

var (
	goFuncRe   = regexp.MustCompile(`^func(?:\s+\([^)]*\))?\s+(\w+)\s*\(([^)]*)\)\s*(.*?)\s*\{?\s*$`)
	goTypeRe   = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface)\b`)
	jsFuncRe   = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s*(\w+)\s*\(([^)]*)`)
	jsArrowRe  = regexp.MustCompile(`^\s*(export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(async\s+)?(?:\([^)]*\)|\w+)\s*=>`)
	jsClassRe  = regexp.MustCompile(`^\s*(export\s+)?(default\s+)?class\s+(\w+)(?:\s+extends\s+([\w.]+))?`)
	jsExportRe = regexp.MustCompile(`^\s*export\s+(?:const|let|var|function|class|default|interface|type)\s+(\w+)`)
	pyDefRe    = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(([^)]*)\)\s*(?:->\s*([^:]+))?:`)
	pyClassRe  = regexp.MustCompile(`^\s*class\s+(\w+)(?:\(([^)]*)\))?\s*:`)
	javaTypeRe = regexp.MustCompile(`^\s*(public\s+)?(?:abstract\s+|final\s+)*(?:class|interface|enum)\s+(\w+)(?:\s+extends\s+([\w.<>]+))?`)
	javaFuncRe = regexp.MustCompile(`^\s*(public|protected|private)?\s*(?:static\s+)?[\w.<>\[\]]+\s+(\w+)\s*\(([^)]*)\)\s*(?:throws\s+[\w.,\s]+)?\{?\s*$`)
	rustFnRe   = regexp.MustCompile(`^\s*(pub\s+)?(async\s+)?fn\s+(\w+)\s*(?:<[^>]*>)?\s*\(([^)]*)\)\s*(?:->\s*([^{]+))?`)
	rustTypeRe = regexp.MustCompile(`^\s*(pub\s+)?(?:struct|enum|trait)\s+(\w+)`)
)

func extractGo(rec *SkeletonRecord, content string) {
	for i, line := range strings.Split(content, "\n") {
		if m := goFuncRe.FindStringSubmatch(line); m != nil {
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     m[1],
				Params:   strings.TrimSpace(m[2]),
				Returns:  strings.TrimSuffix(strings.TrimSpace(m[3]), "{"),
				Exported: isUpperIdent(m[1]),
				Line:     i + 1,
			})
			if isUpperIdent(m[1]) {
				rec.Exports = append(rec.Exports, m[1])
			}
			continue
		}
		if m := goTypeRe.FindStringSubmatch(line); m != nil {
			rec.Classes = append(rec.Classes, ClassSig{
				Name:     m[1],
				Base:     m[2],
				Exported: isUpperIdent(m[1]),
				Line:     i + 1,
			})
			if isUpperIdent(m[1]) {
				rec.Exports = append(rec.Exports, m[1])
			}
		}
	}
}

func extractJS(rec *SkeletonRecord, content string) {
	for i, line := range strings.Split(content, "\n") {
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     m[4],
				Params:   strings.TrimSpace(m[5]),
				Exported: m[1] != "",
				Async:    m[3] != "",
				Line:     i + 1,
			})
		} else if m := jsArrowRe.FindStringSubmatch(line); m != nil {
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     m[2],
				Exported: m[1] != "",
				Async:    m[3] != "",
				Line:     i + 1,
			})
		}
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			rec.Classes = append(rec.Classes, ClassSig{
				Name:     m[3],
				Base:     m[4],
				Exported: m[1] != "",
				Line:     i + 1,
			})
		}
		if m := jsExportRe.FindStringSubmatch(line); m != nil {
			rec.Exports = append(rec.Exports, m[1])
		}
	}
}

func extractPython(rec *SkeletonRecord, content string) {
	for i, line := range strings.Split(content, "\n") {
		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			name := m[3]
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     name,
				Params:   strings.TrimSpace(m[4]),
				Returns:  strings.TrimSpace(m[5]),
				Exported: !strings.HasPrefix(name, "_"),
				Async:    m[2] != "",
				Line:     i + 1,
			})
			if m[1] == "" && !strings.HasPrefix(name, "_") {
				rec.Exports = append(rec.Exports, name)
			}
			continue
		}
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			rec.Classes = append(rec.Classes, ClassSig{
				Name:     m[1],
				Base:     strings.TrimSpace(m[2]),
				Exported: !strings.HasPrefix(m[1], "_"),
				Line:     i + 1,
			})
			if !strings.HasPrefix(m[1], "_") {
				rec.Exports = append(rec.Exports, m[1])
			}
		}
	}
}

func extractJava(rec *SkeletonRecord, content string) {
	for i, line := range strings.Split(content, "\n") {
		if m := javaTypeRe.FindStringSubmatch(line); m != nil {
			rec.Classes = append(rec.Classes, ClassSig{
				Name:     m[2],
				Base:     m[3],
				Exported: m[1] != "",
				Line:     i + 1,
			})
			if m[1] != "" {
				rec.Exports = append(rec.Exports, m[2])
			}
			continue
		}
		if m := javaFuncRe.FindStringSubmatch(line); m != nil {
			// Constructors and control-flow keywords slip through a
			// line-based regex; filter the obvious ones.
			if m[2] == "if" || m[2] == "for" || m[2] == "while" || m[2] == "switch" || m[2] == "catch" {
				continue
			}
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     m[2],
				Params:   strings.TrimSpace(m[3]),
				Exported: m[1] == "public",
				Line:     i + 1,
			})
		}
	}
}

func extractRust(rec *SkeletonRecord, content string) {
	for i, line := range strings.Split(content, "\n") {
		if m := rustFnRe.FindStringSubmatch(line); m != nil {
			rec.Functions = append(rec.Functions, FunctionSig{
				Name:     m[3],
				Params:   strings.TrimSpace(m[4]),
				Returns:  strings.TrimSpace(m[5]),
				Exported: m[1] != "",
				Async:    m[2] != "",
				Line:     i + 1,
			})
			if m[1] != "" {
				rec.Exports = append(rec.Exports, m[3])
			}
			continue
		}
		if m := rustTypeRe.FindStringSubmatch(line); m != nil {
			rec.Classes = append(rec.Classes, ClassSig{
				Name:     m[2],
				Exported: m[1] != "",
				Line:     i + 1,
			})
			if m[1] != "" {
				rec.Exports = append(rec.Exports, m[2])
			}
		}
	}
}

func isUpperIdent(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// entryPointNames are paths (or basenames) that conventionally start a
// program.
var entryPointNames = map[string]bool{
	"main.go":  true,
	"main.py":  true,
	"app.py":   true,
	"index.js": true,
	"index.ts": true,
	"main.js":  true,
	"main.ts":  true,
	"main.rs":  true,
	"lib.rs":   true,
}

func isEntryPoint(p string) bool {
	base := path.Base(p)
	if !entryPointNames[base] {
		return false
	}
	// cmd/*/main.go and src/main.rs count; deeply nested main files are
	// usually fixtures or examples.
	return strings.Count(p, "/") <= 2
}

func configKind(p string) string {
	switch path.Base(p) {
	case "package.json":
		return "package.json"
	case "go.mod":
		return "go.mod"
	case "Cargo.toml":
		return "Cargo.toml"
	case "pyproject.toml":
		return "pyproject.toml"
	}
	return ""
}

// rootConfigPath reports whether p is a root-level project configuration
// file. Both repository sources fetch these alongside analyzable sources so
// the extractor can parse dependencies, not just record the kind.
func rootConfigPath(p string) bool {
	return !strings.Contains(p, "/") && configKind(p) != ""
}

// parseProjectConfig parses a recognized project configuration file and
// fills the skeleton's dependency maps as a side effect.
func parseProjectConfig(p, content string, skeleton *Skeleton) *ProjectConfig {
	// Only root-level config files describe the project as a whole.
	if strings.Contains(p, "/") {
		return nil
	}
	kind := configKind(p)
	if kind == "" {
		return nil
	}

	cfg := &ProjectConfig{Kind: kind, Fields: map[string]string{}, Raw: content}
	switch kind {
	case "package.json":
		parsePackageJSON(content, cfg, skeleton)
	case "go.mod":
		parseGoMod(content, cfg, skeleton)
	default:
		// Cargo.toml and pyproject.toml are carried raw; TOML parsing
		// adds little for prompt purposes.
	}
	return cfg
}

func parsePackageJSON(content string, cfg *ProjectConfig, skeleton *Skeleton) {
	var pkg struct {
		Name            string            `json:"name"`
		Version         string            `json:"version"`
		Main            string            `json:"main"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return
	}
	if pkg.Name != "" {
		cfg.Fields["name"] = pkg.Name
	}
	if pkg.Version != "" {
		cfg.Fields["version"] = pkg.Version
	}
	if pkg.Main != "" {
		cfg.Fields["main"] = pkg.Main
	}
	for name, version := range pkg.Dependencies {
		skeleton.RuntimeDeps[name] = version
	}
	for name, version := range pkg.DevDependencies {
		skeleton.DevDeps[name] = version
	}
}

func parseGoMod(content string, cfg *ProjectConfig, skeleton *Skeleton) {
	inRequire := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "module "):
			cfg.Fields["module"] = strings.TrimSpace(strings.TrimPrefix(line, "module "))
		case strings.HasPrefix(line, "go "):
			cfg.Fields["go"] = strings.TrimSpace(strings.TrimPrefix(line, "go "))
		case strings.HasPrefix(line, "require ("):
			inRequire = true
		case inRequire && line == ")":
			inRequire = false
		case inRequire || strings.HasPrefix(line, "require "):
			entry := strings.TrimSpace(strings.TrimPrefix(line, "require "))
			fields := strings.Fields(entry)
			if len(fields) < 2 {
				continue
			}
			if strings.Contains(entry, "// indirect") {
				skeleton.DevDeps[fields[0]] = fields[1]
			} else {
				skeleton.RuntimeDeps[fields[0]] = fields[1]
			}
		}
	}
}

// BuildTree builds the directory-tree snapshot from flat paths. Children are
// ordered directories first, then lexically, so renderings are stable.
func BuildTree(rootName string, paths []string) *TreeNode {
	if rootName == "" {
		rootName = "."
	}
	root := &TreeNode{Name: rootName, Path: "", IsDir: true}
	nodes := map[string]*TreeNode{"": root}

	for _, p := range paths {
		parts := strings.Split(p, "/")
		parentPath := ""
		for i, part := range parts {
			childPath := part
			if parentPath != "" {
				childPath = parentPath + "/" + part
			}
			if _, ok := nodes[childPath]; !ok {
				node := &TreeNode{
					Name:  part,
					Path:  childPath,
					IsDir: i < len(parts)-1,
				}
				nodes[childPath] = node
				parent := nodes[parentPath]
				parent.Children = append(parent.Children, node)
			}
			parentPath = childPath
		}
	}

	sortTree(root)
	return root
}

func sortTree(node *TreeNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, child := range node.Children {
		sortTree(child)
	}
}
