package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SourceFile is one fetched source file the extractor will analyze.
type SourceFile struct {
	Path    string
	Content string
}

// SourceInputs is everything a repository source hands to the extractor: the
// raw tree paths, the analyzable files with content, the README text and the
// total file count. Both the GitHub client and the local scanner produce this
// shape.
type SourceInputs struct {
	Meta      RepoMeta
	Paths     []string
	Files     []SourceFile
	Readme    string
	FileCount int
}

const maxFetchedFileBytes = 200 * 1024

// GitHubClient fetches repository structure and file contents over the
// GitHub REST API. It does no retrying or rate limiting of its own; a
// non-success status is surfaced to the caller as-is.
type GitHubClient struct {
	Token    string
	BaseURL  string
	MaxFiles int
	HTTP     *http.Client
}

func NewGitHubClient(token string, maxFiles int) *GitHubClient {
	if maxFiles <= 0 {
		maxFiles = 60
	}
	return &GitHubClient{
		Token:    token,
		BaseURL:  "https://api.github.com",
		MaxFiles: maxFiles,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

type githubRepo struct {
	Description   string `json:"description"`
	Language      string `json:"language"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stargazers_count"`
}

type githubTree struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"` // blob or tree
		SHA  string `json:"sha"`
		Size int    `json:"size"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type githubBlob struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// FetchInputs retrieves repository metadata, the full recursive tree, the
// README and the contents of up to MaxFiles analyzable source files.
func (c *GitHubClient) FetchInputs(ctx context.Context, owner, repo string) (*SourceInputs, error) {
	var meta githubRepo
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), &meta); err != nil {
		return nil, err
	}
	branch := meta.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	var tree githubTree
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, branch)
	if err := c.getJSON(ctx, path, &tree); err != nil {
		return nil, err
	}

	inputs := &SourceInputs{
		Meta: RepoMeta{
			Owner:       owner,
			Repo:        repo,
			Description: meta.Description,
			Language:    meta.Language,
			Branch:      branch,
			Stars:       meta.Stars,
		},
	}

	type candidate struct {
		path string
		sha  string
	}
	var candidates []candidate
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		inputs.Paths = append(inputs.Paths, entry.Path)
		inputs.FileCount++
		if !analyzablePath(entry.Path) && !rootConfigPath(entry.Path) {
			continue
		}
		if entry.Size > maxFetchedFileBytes {
			continue
		}
		candidates = append(candidates, candidate{path: entry.Path, sha: entry.SHA})
	}
	if len(candidates) > c.MaxFiles {
		candidates = candidates[:c.MaxFiles]
	}

	for _, cand := range candidates {
		content, err := c.fetchBlob(ctx, owner, repo, cand.sha)
		if err != nil {
			return nil, err
		}
		inputs.Files = append(inputs.Files, SourceFile{Path: cand.path, Content: content})
	}

	readme, err := c.fetchReadme(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	inputs.Readme = readme

	return inputs, nil
}

func (c *GitHubClient) fetchBlob(ctx context.Context, owner, repo, sha string) (string, error) {
	var blob githubBlob
	path := fmt.Sprintf("/repos/%s/%s/git/blobs/%s", owner, repo, sha)
	if err := c.getJSON(ctx, path, &blob); err != nil {
		return "", err
	}
	if blob.Encoding != "base64" {
		return blob.Content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("blob %s: %w", sha, err)
	}
	return string(decoded), nil
}

func (c *GitHubClient) fetchReadme(ctx context.Context, owner, repo string) (string, error) {
	req, err := c.newRequest(ctx, fmt.Sprintf("/repos/%s/%s/readme", owner, repo))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.raw+json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	// A missing README is normal, not an error.
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("github api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func (c *GitHubClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, path)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("github api error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func (c *GitHubClient) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}
