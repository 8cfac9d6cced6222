package app

import (
	"strings"
	"testing"
)

const goSource = `package server

type Router struct {
	routes map[string]Handler
}

type handlerEntry struct{}

func NewRouter() *Router {
	return &Router{}
}

func (r *Router) Handle(pattern string, h Handler) error {
	return nil
}

func normalize(p string) string {
	return p
}
`

func TestExtractRecord_Go(t *testing.T) {
	rec := ExtractRecord("internal/server/router.go", goSource)

	if rec.Language != LangGo {
		t.Fatalf("expected Go, got %s", rec.Language)
	}
	if len(rec.Functions) != 3 {
		t.Fatalf("expected 3 functions, got %+v", rec.Functions)
	}
	byName := map[string]FunctionSig{}
	for _, fn := range rec.Functions {
		byName[fn.Name] = fn
	}
	if !byName["NewRouter"].Exported || !byName["Handle"].Exported {
		t.Error("exported functions must be flagged exported")
	}
	if byName["normalize"].Exported {
		t.Error("unexported function must not be flagged exported")
	}
	if byName["Handle"].Params != "pattern string, h Handler" {
		t.Errorf("unexpected params: %q", byName["Handle"].Params)
	}
	if byName["Handle"].Returns != "error" {
		t.Errorf("unexpected returns: %q", byName["Handle"].Returns)
	}

	if len(rec.Classes) != 2 {
		t.Fatalf("expected 2 types, got %+v", rec.Classes)
	}
	if rec.Classes[0].Name != "Router" || rec.Classes[0].Base != "struct" {
		t.Errorf("unexpected first type: %+v", rec.Classes[0])
	}
	for _, name := range []string{"Router", "NewRouter", "Handle"} {
		if !containsString(rec.Exports, name) {
			t.Errorf("exports missing %s: %v", name, rec.Exports)
		}
	}
	if containsString(rec.Exports, "handlerEntry") {
		t.Error("unexported type must not appear in exports")
	}
}

const jsSource = `import express from "express";

export default class ApiServer extends BaseServer {
}

export async function startServer(port) {
}

export const parseBody = async (req) => {
};

const helper = (x) => x * 2;
`

func TestExtractRecord_JavaScript(t *testing.T) {
	rec := ExtractRecord("src/server.js", jsSource)

	if rec.Language != LangJavaScript {
		t.Fatalf("expected JavaScript, got %s", rec.Language)
	}
	if len(rec.Classes) != 1 || rec.Classes[0].Name != "ApiServer" || rec.Classes[0].Base != "BaseServer" {
		t.Fatalf("unexpected classes: %+v", rec.Classes)
	}
	byName := map[string]FunctionSig{}
	for _, fn := range rec.Functions {
		byName[fn.Name] = fn
	}
	if fn, ok := byName["startServer"]; !ok || !fn.Async || !fn.Exported {
		t.Errorf("startServer should be async exported: %+v", fn)
	}
	if fn, ok := byName["parseBody"]; !ok || !fn.Async || !fn.Exported {
		t.Errorf("parseBody arrow should be async exported: %+v", fn)
	}
	if fn, ok := byName["helper"]; !ok || fn.Exported {
		t.Errorf("helper should be unexported: %+v", fn)
	}
}

const pySource = `class RequestHandler(BaseHandler):
    async def handle(self, request) -> Response:
        pass

    def _dispatch(self, request):
        pass

def create_app(config):
    pass
`

func TestExtractRecord_Python(t *testing.T) {
	rec := ExtractRecord("app/handlers.py", pySource)

	if len(rec.Classes) != 1 || rec.Classes[0].Name != "RequestHandler" || rec.Classes[0].Base != "BaseHandler" {
		t.Fatalf("unexpected classes: %+v", rec.Classes)
	}
	byName := map[string]FunctionSig{}
	for _, fn := range rec.Functions {
		byName[fn.Name] = fn
	}
	if fn := byName["handle"]; !fn.Async || fn.Returns != "Response" {
		t.Errorf("handle should be async returning Response: %+v", fn)
	}
	if fn := byName["_dispatch"]; fn.Exported {
		t.Errorf("_dispatch must be unexported: %+v", fn)
	}
	// Methods are indented; only module-level defs become exports.
	if containsString(rec.Exports, "handle") {
		t.Errorf("indented method must not be a module export: %v", rec.Exports)
	}
	if !containsString(rec.Exports, "create_app") {
		t.Errorf("module-level def must be a module export: %v", rec.Exports)
	}
}

func TestExtractRecord_Rust(t *testing.T) {
	src := "pub struct Engine;\n\npub async fn run(cfg: Config) -> Result<(), Error> {\n}\n\nfn internal() {\n}\n"
	rec := ExtractRecord("src/engine.rs", src)

	if len(rec.Classes) != 1 || rec.Classes[0].Name != "Engine" || !rec.Classes[0].Exported {
		t.Fatalf("unexpected types: %+v", rec.Classes)
	}
	byName := map[string]FunctionSig{}
	for _, fn := range rec.Functions {
		byName[fn.Name] = fn
	}
	if fn := byName["run"]; !fn.Exported || !fn.Async {
		t.Errorf("run should be pub async: %+v", fn)
	}
	if fn := byName["internal"]; fn.Exported {
		t.Errorf("internal should be unexported: %+v", fn)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]Language{
		"a/b.go":     LangGo,
		"a/b.tsx":    LangTypeScript,
		"a/b.PY":     LangPython,
		"a/b.txt":    LangUnknown,
		"Dockerfile": LangUnknown,
	}
	for p, want := range cases {
		if got := DetectLanguage(p); got != want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", p, got, want)
		}
	}
}

func TestBuildSkeleton_GoMod(t *testing.T) {
	goMod := `module example.com/widget

go 1.22

require (
	github.com/spf13/cobra v1.8.1
	gopkg.in/yaml.v3 v3.0.1 // indirect
)
`
	inputs := &SourceInputs{
		Meta:  RepoMeta{Owner: "acme", Repo: "widget"},
		Paths: []string{"go.mod", "main.go", "internal/core/engine.go"},
		Files: []SourceFile{
			{Path: "go.mod", Content: goMod},
			{Path: "main.go", Content: "package main\n\nfunc main() {\n}\n"},
		},
	}
	skeleton := BuildSkeleton(inputs)

	if skeleton.Config == nil || skeleton.Config.Kind != "go.mod" {
		t.Fatalf("expected go.mod config, got %+v", skeleton.Config)
	}
	if skeleton.Config.Fields["module"] != "example.com/widget" {
		t.Errorf("unexpected module field: %q", skeleton.Config.Fields["module"])
	}
	if skeleton.RuntimeDeps["github.com/spf13/cobra"] != "v1.8.1" {
		t.Errorf("direct require must land in runtime deps: %v", skeleton.RuntimeDeps)
	}
	if skeleton.DevDeps["gopkg.in/yaml.v3"] != "v3.0.1" {
		t.Errorf("indirect require must land in dev deps: %v", skeleton.DevDeps)
	}
	if len(skeleton.EntryPoints) != 1 || skeleton.EntryPoints[0] != "main.go" {
		t.Errorf("unexpected entry points: %v", skeleton.EntryPoints)
	}
}

func TestBuildSkeleton_PackageJSON(t *testing.T) {
	pkg := `{"name":"widget","version":"1.0.0","main":"index.js","dependencies":{"express":"^4.18.0"},"devDependencies":{"jest":"^29.0.0"}}`
	inputs := &SourceInputs{
		Meta:  RepoMeta{Owner: "acme", Repo: "widget"},
		Paths: []string{"package.json", "index.js"},
		Files: []SourceFile{
			{Path: "package.json", Content: pkg},
			{Path: "index.js", Content: "export const run = () => 1;\n"},
		},
	}
	skeleton := BuildSkeleton(inputs)

	if skeleton.Config == nil || skeleton.Config.Kind != "package.json" {
		t.Fatalf("expected package.json config, got %+v", skeleton.Config)
	}
	if skeleton.Config.Fields["name"] != "widget" {
		t.Errorf("unexpected name: %v", skeleton.Config.Fields)
	}
	if skeleton.RuntimeDeps["express"] != "^4.18.0" || skeleton.DevDeps["jest"] != "^29.0.0" {
		t.Errorf("unexpected deps: %v / %v", skeleton.RuntimeDeps, skeleton.DevDeps)
	}
}

func TestBuildSkeleton_ConfigKindFromTreeOnly(t *testing.T) {
	// Config files outside the fetched set still record the project kind.
	inputs := &SourceInputs{
		Meta:  RepoMeta{Owner: "acme", Repo: "tool"},
		Paths: []string{"Cargo.toml", "src/main.rs"},
		Files: []SourceFile{{Path: "src/main.rs", Content: "fn main() {\n}\n"}},
	}
	skeleton := BuildSkeleton(inputs)
	if skeleton.Config == nil || skeleton.Config.Kind != "Cargo.toml" {
		t.Fatalf("expected Cargo.toml kind, got %+v", skeleton.Config)
	}
}

func TestBuildSkeleton_NestedConfigIgnored(t *testing.T) {
	inputs := &SourceInputs{
		Meta:  RepoMeta{Owner: "acme", Repo: "mono"},
		Paths: []string{"services/api/main.go"},
		Files: []SourceFile{
			{Path: "examples/demo/package.json", Content: `{"name":"demo"}`},
		},
	}
	skeleton := BuildSkeleton(inputs)
	if skeleton.Config != nil {
		t.Fatalf("nested config files must not describe the project: %+v", skeleton.Config)
	}
}

func TestIsEntryPoint(t *testing.T) {
	cases := map[string]bool{
		"main.go":                        true,
		"cmd/tool/main.go":               true,
		"src/main.rs":                    true,
		"index.js":                       true,
		"testdata/fixtures/deep/main.go": false,
		"internal/app/server.go":         false,
	}
	for p, want := range cases {
		if got := isEntryPoint(p); got != want {
			t.Errorf("isEntryPoint(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestBuildTree_DirsFirstLexical(t *testing.T) {
	tree := BuildTree("widget", []string{
		"zeta.go",
		"api/routes.go",
		"api/middleware/auth.go",
		"core/engine.go",
		"alpha.go",
	})

	var names []string
	for _, child := range tree.Children {
		names = append(names, child.Name)
	}
	want := []string{"api", "core", "alpha.go", "zeta.go"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("root children = %v, want %v", names, want)
	}

	api := tree.Children[0]
	if api.Children[0].Name != "middleware" || !api.Children[0].IsDir {
		t.Fatalf("directories must sort before files: %+v", api.Children)
	}
	if api.Children[0].Children[0].Path != "api/middleware/auth.go" {
		t.Fatalf("nested path wrong: %+v", api.Children[0].Children[0])
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
