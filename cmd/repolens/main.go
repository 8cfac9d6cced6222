package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"repolens/internal/app"
	"repolens/internal/tui"

	"github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const version = "1.0.0"

var (
	flagModel   string
	flagPersona string
	flagNoTUI   bool
	flagMock    bool
	flagLocal   bool
)

func main() {
	root := &cobra.Command{
		Use:     "repolens",
		Short:   "repolens - LLM-powered repository guides",
		Long:    "repolens fetches a repository's structure, extracts a structural skeleton of the codebase and drives an LLM through a token-budgeted analysis pipeline to produce a Markdown project guide.",
		Version: version,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze <owner/repo | path>",
		Short: "Analyze a repository and generate a project guide",
		Long:  "Analyze a GitHub repository (owner/repo) or a local checkout (--local path).\n\nExamples:\n  - repolens analyze golang/go\n  - repolens analyze --local .\n  - repolens analyze --model claude-3-5-sonnet owner/repo\n  - repolens analyze --mock owner/repo",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().StringVarP(&flagModel, "model", "m", "", "target model id (defaults to config)")
	analyzeCmd.Flags().StringVar(&flagPersona, "persona", "", "YAML file with an alternate system/user prompt pair (single-shot only)")
	analyzeCmd.Flags().BoolVarP(&flagNoTUI, "no-tui", "n", false, "plain output instead of the progress TUI")
	analyzeCmd.Flags().BoolVar(&flagMock, "mock", false, "use the mock backend (no network)")
	analyzeCmd.Flags().BoolVarP(&flagLocal, "local", "l", false, "treat the argument as a local directory")
	root.AddCommand(analyzeCmd)

	checkCmd := &cobra.Command{
		Use:   "check <owner/repo | path>",
		Short: "Report whether a repository needs chunked analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVarP(&flagModel, "model", "m", "", "target model id (defaults to config)")
	checkCmd.Flags().BoolVarP(&flagLocal, "local", "l", false, "treat the argument as a local directory")
	root.AddCommand(checkCmd)

	root.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List known models and their context budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, model := range []string{
				"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo",
				"claude-3-5-sonnet", "claude-3-opus",
				"gemini-1.5-pro", "deepseek-chat", "glm-4", "minimax-m2",
			} {
				fmt.Printf("%-20s raw %8d  usable %8d\n", model, app.RawContextLimit(model), app.ContextLimit(model))
			}
			fmt.Printf("%-20s raw %8d  usable %8d\n", "(unknown)", app.RawContextLimit("x"), app.ContextLimit("x"))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List saved analysis reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			for _, rec := range history.List() {
				mode := "single-shot"
				if rec.Chunked {
					mode = "chunked"
				}
				fmt.Printf("%s  %s  %s  %s (%s)\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), rec.Key, rec.Model, mode)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory()
			if err != nil {
				return err
			}
			rec, ok := history.Get(args[0])
			if !ok {
				return fmt.Errorf("no report with id %s", args[0])
			}
			fmt.Println(rec.Report)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			cfg.APIKey = redact(cfg.APIKey)
			cfg.GitHubToken = redact(cfg.GitHubToken)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("config file: %s\n%s", app.DefaultConfigPath(), data)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model := flagModel
	if model == "" {
		model = cfg.Model
	}

	client := newBackend(cfg)

	inputs, err := fetchInputs(ctx, cfg, args[0])
	if err != nil {
		return err
	}
	skeleton := app.BuildSkeleton(inputs)

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return err
	}
	runStore, err := app.NewRunStore(filepath.Join(dataDir, "runs.json"))
	if err != nil {
		return err
	}
	history, err := app.NewHistoryStore(filepath.Join(dataDir, "history.json"))
	if err != nil {
		return err
	}
	logger := app.NewLogger(app.DefaultLogWriter())
	registry := app.NewRegistry(client, runStore, logger, cfg.MaxConcurrentRuns, cfg.RunTimeout())

	req := app.AnalysisRequest{
		Skeleton: skeleton,
		Meta:     inputs.Meta,
		Model:    model,
		Readme:   inputs.Readme,
	}
	if flagPersona != "" {
		tmpl, err := loadPersona(flagPersona)
		if err != nil {
			return err
		}
		req.Template = tmpl
	}

	decision := app.CheckChunking(skeleton, model, len(inputs.Readme))

	var report string
	if flagNoTUI {
		report, err = analyzePlain(ctx, registry, req, decision)
	} else {
		report, err = analyzeTUI(ctx, registry, req)
	}
	if err != nil {
		return err
	}

	if _, err := history.Add(req.Meta.Key(), model, report, decision.NeedsChunking); err != nil {
		logger.Warn("failed to save history", map[string]interface{}{"error": err.Error()})
	}
	fmt.Println(report)
	return nil
}

func analyzePlain(ctx context.Context, registry *app.Registry, req app.AnalysisRequest, decision app.ChunkingDecision) (string, error) {
	stage := color.New(color.FgCyan)
	if decision.NeedsChunking {
		stage.Fprintf(os.Stderr, "skeleton exceeds %s budget; analyzing in ~%d chunks\n", req.Model, decision.EstimatedChunks)
	}
	progress := func(p app.Progress) {
		if p.Stage == app.StageAnalyzing {
			stage.Fprintf(os.Stderr, "analyzing chunk %d of %d\n", p.CurrentChunk, p.TotalChunks)
		} else {
			stage.Fprintf(os.Stderr, "generating report\n")
		}
	}
	// Tokens are streamed to stderr so stdout carries only the final report.
	onToken := func(token string) {
		fmt.Fprint(os.Stderr, token)
	}
	report, err := registry.Analyze(ctx, req, onToken, progress)
	fmt.Fprintln(os.Stderr)
	return report, err
}

func analyzeTUI(ctx context.Context, registry *app.Registry, req app.AnalysisRequest) (string, error) {
	model := tui.New(req.Meta.Key())
	p := tea.NewProgram(model)

	go func() {
		report, err := registry.Analyze(ctx, req,
			func(token string) { p.Send(tui.TokenMsg(token)) },
			func(prog app.Progress) { p.Send(tui.ProgressMsg(prog)) },
		)
		p.Send(tui.DoneMsg{Report: report, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return "", err
	}
	done := final.(*tui.Model)
	return done.Report()
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model := flagModel
	if model == "" {
		model = cfg.Model
	}

	inputs, err := fetchInputs(ctx, cfg, args[0])
	if err != nil {
		return err
	}
	skeleton := app.BuildSkeleton(inputs)
	decision := app.CheckChunking(skeleton, model, len(inputs.Readme))

	fmt.Printf("repository:       %s\n", inputs.Meta.Key())
	fmt.Printf("analyzed modules: %d (of %d files)\n", len(skeleton.Records), inputs.FileCount)
	fmt.Printf("model budget:     %d tokens (%s, raw %d)\n", app.ContextLimit(model), model, app.RawContextLimit(model))
	fmt.Printf("needs chunking:   %v\n", decision.NeedsChunking)
	fmt.Printf("estimated chunks: %d\n", decision.EstimatedChunks)
	return nil
}

func loadConfig() (app.Config, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("REPOLENS_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("REPOLENS_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.GitHubToken == "" {
		cfg.GitHubToken = v
	}
	return cfg, nil
}

func newBackend(cfg app.Config) *app.LLMClient {
	if flagMock || cfg.APIKey == "" {
		return app.NewLLMClient("mock", "mock://")
	}
	return app.NewLLMClient(cfg.APIKey, cfg.BaseURL)
}

func fetchInputs(ctx context.Context, cfg app.Config, target string) (*app.SourceInputs, error) {
	if flagLocal || !strings.Contains(target, "/") || fileExists(target) {
		return app.ScanLocal(target, cfg.MaxFiles)
	}
	parts := strings.SplitN(target, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("expected owner/repo or a local path, got %q", target)
	}
	client := app.NewGitHubClient(cfg.GitHubToken, cfg.MaxFiles)
	return client.FetchInputs(ctx, parts[0], parts[1])
}

func loadPersona(path string) (*app.PromptTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("persona file %s: %w", path, err)
	}
	if raw.System == "" || raw.User == "" {
		return nil, fmt.Errorf("persona file %s must set both system and user", path)
	}
	return &app.PromptTemplate{System: raw.System, User: raw.User}, nil
}

func openHistory() (*app.HistoryStore, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return nil, err
	}
	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}
	return app.NewHistoryStore(filepath.Join(dataDir, "history.json"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
