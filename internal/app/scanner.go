package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// skippedDirs are never worth analyzing regardless of gitignore rules.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
}

// ScanLocal walks a local checkout and produces the same inputs the GitHub
// client fetches remotely, honoring the repository's .gitignore. Lets the
// pipeline run offline against a working copy.
func ScanLocal(root string, maxFiles int) (*SourceInputs, error) {
	if maxFiles <= 0 {
		maxFiles = 60
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	gi := loadGitignore(abs)

	inputs := &SourceInputs{
		Meta: RepoMeta{Owner: "local", Repo: filepath.Base(abs)},
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skippedDirs[d.Name()] || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		inputs.Paths = append(inputs.Paths, rel)
		inputs.FileCount++

		if inputs.Readme == "" && strings.EqualFold(d.Name(), "README.md") {
			if data, err := os.ReadFile(path); err == nil {
				inputs.Readme = string(data)
			}
		}

		if len(inputs.Files) >= maxFiles {
			return nil
		}
		if !analyzablePath(rel) && !rootConfigPath(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxFetchedFileBytes {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		inputs.Files = append(inputs.Files, SourceFile{Path: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inputs, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
