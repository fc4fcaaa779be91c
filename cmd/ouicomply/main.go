// Command ouicomply runs the compliance analysis MCP server.
//
// By default it serves MCP over stdio for assistant integrations. The
// serve command with --http switches to the streamable HTTP transport,
// and the rest command starts the plain REST wrapper instead.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	ouicomply "github.com/KJFromMicromonic/OuiComply"
	"github.com/KJFromMicromonic/OuiComply/config"
	"github.com/KJFromMicromonic/OuiComply/httpserver"
	"github.com/KJFromMicromonic/OuiComply/mcpserver"
)

var (
	configPath string
	flagHTTP   bool
	flagPort   int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ouicomply",
		Short:        "Legal document compliance analysis over MCP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Bare invocation serves MCP over stdio, the mode assistant
			// hosts expect when they spawn the binary.
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (env vars take precedence)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio by default, --http for remote clients)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	serve.Flags().BoolVar(&flagHTTP, "http", false, "serve MCP over streamable HTTP instead of stdio")
	serve.Flags().IntVar(&flagPort, "port", 0, "HTTP port (overrides config)")

	rest := &cobra.Command{
		Use:   "rest",
		Short: "Run the plain REST API wrapper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREST(cmd.Context())
		},
	}
	rest.Flags().IntVar(&flagPort, "port", 0, "HTTP port (overrides config)")

	analyze := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a single document and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], analyzeFrameworks, analyzeDepth)
		},
	}
	analyze.Flags().StringSliceVar(&analyzeFrameworks, "frameworks", nil, "frameworks to check (default gdpr,sox,ccpa)")
	analyze.Flags().StringVar(&analyzeDepth, "depth", "", "analysis depth: basic, standard, comprehensive")

	frameworks := &cobra.Command{
		Use:   "frameworks",
		Short: "List supported compliance frameworks",
		Run: func(cmd *cobra.Command, args []string) {
			for _, id := range ouicomply.FrameworkIDs() {
				f := ouicomply.LookupFramework(id)
				fmt.Printf("%-8s %s (%d required clauses)\n", f.ID, f.Name, len(f.RequiredClauses))
			}
		},
	}

	root.AddCommand(serve, rest, analyze, frameworks)
	return root
}

var (
	analyzeFrameworks []string
	analyzeDepth      string
)

// newLogger builds the process logger. Everything goes to stderr:
// stdout belongs to the MCP stdio transport.
func newLogger(level string) *slog.Logger {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		lvl = charmlog.InfoLevel
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "ouicomply",
	})
	return slog.New(handler)
}

type app struct {
	cfg      *config.Config
	log      *slog.Logger
	analyzer *ouicomply.Analyzer
	memory   *ouicomply.TeamMemory
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)

	var mistralOpts []ouicomply.MistralOption
	if cfg.Mistral.BaseURL != "" {
		mistralOpts = append(mistralOpts, ouicomply.WithBaseURL(cfg.Mistral.BaseURL))
	}
	if cfg.Mistral.Model != "" {
		mistralOpts = append(mistralOpts, ouicomply.WithMistralModel(cfg.Mistral.Model))
	}
	mistralOpts = append(mistralOpts, ouicomply.WithMistralLogger(logger))
	client := ouicomply.NewMistralClient(cfg.Mistral.APIKey, mistralOpts...)

	cache := ouicomply.NewDocumentCache(client, logger)
	analyzer, err := ouicomply.NewAnalyzerWithLogger(client, cache, logger,
		ouicomply.WithRetry(cfg.RetryConfig()),
	)
	if err != nil {
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	memory := ouicomply.NewTeamMemory(cfg.MemoryPath, logger)

	return &app{cfg: cfg, log: logger, analyzer: analyzer, memory: memory}, nil
}

func runServe(ctx context.Context) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	srv := mcpserver.New(&mcpserver.Config{
		Name:    a.cfg.Server.Name,
		Version: a.cfg.Server.Version,
	}, a.analyzer, a.memory, a.log)
	srv.MarkReady()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !flagHTTP {
		return srv.RunStdio(ctx)
	}

	addr := listenAddr(a.cfg)
	a.log.Info("mcp server starting", "transport", "http", "addr", addr)
	return serveHTTP(ctx, a.log, addr, srv.HTTPHandler())
}

func runREST(ctx context.Context) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	handler := httpserver.New(a.analyzer, a.memory, a.log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := listenAddr(a.cfg)
	a.log.Info("rest server starting", "addr", addr)
	return serveHTTP(ctx, a.log, addr, handler.Router())
}

func serveHTTP(ctx context.Context, log *slog.Logger, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func listenAddr(cfg *config.Config) string {
	port := cfg.Server.Port
	if flagPort > 0 {
		port = flagPort
	}
	return fmt.Sprintf(":%d", port)
}

func runAnalyze(ctx context.Context, path string, frameworks []string, depth string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	req := ouicomply.AnalysisRequest{
		Frameworks: frameworks,
		Depth:      depth,
	}
	// Plain text goes inline; anything else goes through the upload path.
	if isTextLike(path) {
		req.DocumentText = string(data)
	} else {
		req.DocumentBytes = data
	}

	result := a.analyzer.Analyze(ctx, req)
	if _, err := a.memory.Store(result); err != nil {
		a.log.Warn("storing result in team memory failed", "err", err)
	}

	fmt.Printf("Document:   %s\n", result.DocumentID)
	fmt.Printf("Status:     %s\n", result.Status)
	fmt.Printf("Risk score: %.2f\n", result.RiskScore)
	if result.Error != "" {
		fmt.Printf("Error:      %s\n", result.Error)
	}
	for _, issue := range result.Issues {
		fmt.Printf("\n[%s] %s / %s\n  %s\n  location: %s\n  fix: %s\n",
			strings.ToUpper(issue.Severity), issue.Framework, issue.Category,
			issue.Description, issue.Location, issue.Recommendation)
	}
	if len(result.MissingClauses) > 0 {
		fmt.Printf("\nMissing clauses:\n")
		for _, c := range result.MissingClauses {
			fmt.Printf("  - %s\n", c)
		}
	}
	return nil
}

func isTextLike(path string) bool {
	switch {
	case strings.HasSuffix(path, ".txt"), strings.HasSuffix(path, ".md"):
		return true
	default:
		return false
	}
}
