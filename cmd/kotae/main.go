// Package main is the kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/seed"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kotae/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if it exists, so running from a checkout uses the
// project's config. It returns the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				path = fallback
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// Defaults plus CHATBOT_* environment overrides.
			cfg, err := config.Load("")
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch command := os.Args[1]; command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "seed":
		runSeed()
	case "ingest":
		runIngest()
	case "delete":
		runDelete()
	case "rebuild":
		runRebuild()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads config, creates the logger and initializes every component.
func setup(configPath string, debug bool) (*Components, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return components, logger, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	components, logger, resolved := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	cfg := components.Config
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || *debug))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n, err := components.Warm(ctx)
	if err != nil {
		logger.Fatal("Failed to load indexes", zap.Error(err))
	}
	logger.Info("indexes loaded", zap.Int("documents", n))

	stopWatch, err := watchIntents(ctx, components, logger)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer stopWatch()

	srv := server.NewServer(components.ServerDeps(), cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// identity flags shared by commands that act for a user.
type identity struct {
	user, tenant, roles *string
}

func identityFlags(fs *flag.FlagSet) identity {
	return identity{
		user:   fs.String("user", "cli", "user id"),
		tenant: fs.String("tenant", "", "tenant id (default: default)"),
		roles:  fs.String("roles", "", "comma-separated roles"),
	}
}

func (id identity) context() models.UserContext {
	var roles []string
	for _, r := range strings.Split(*id.roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return models.UserContext{ID: *id.user, TenantID: *id.tenant, Roles: roles}
}

func (id identity) header() http.Header {
	h := http.Header{}
	h.Set("X-User-ID", *id.user)
	h.Set("X-Tenant-ID", *id.tenant)
	h.Set("X-User-Roles", *id.roles)
	return h
}

func outputFormat(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func runAsk() {
	args := searchArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer directly from local storage)")
	output := fs.String("output", "text", "output format: text or json")
	who := identityFlags(fs)
	_ = fs.Parse(args)

	question := buildSearchQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	format := outputFormat(*output)

	var res models.QueryResult
	if *serverURL != "" {
		if err := doJSON(http.MethodPost, *serverURL+"/api/v1/chat", who.header(), map[string]string{"query": question}, &res); err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		components, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		res = *components.Orchestrator.Handle(context.Background(), question, who.context())
	}
	if err := cli.WriteAnswer(os.Stdout, &res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags that appear after the query to the front so
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search local storage directly)")
	limit := fs.Int("limit", 10, "number of results")
	category := fs.String("category", "", "only documents of this category")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	minScore := fs.Float64("min-score", 0, "minimum fused score in [0,1]")
	output := fs.String("output", "text", "output format: text or json")
	who := identityFlags(fs)
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := outputFormat(*output)
	req := search.Request{Query: query, Limit: *limit, Category: *category, Fuzzy: *fuzzy, MinScore: *minScore}

	var resp *search.Response
	var err error
	if *serverURL != "" {
		resp, err = searchViaHTTP(*serverURL, who.header(), req)
	} else {
		components, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if _, err := components.Warm(context.Background()); err != nil {
			fatalf("Failed to load indexes: %v", err)
		}
		resp, err = components.Engine.Search(context.Background(), who.context(), req)
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL string, header http.Header, req search.Request) (*search.Response, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("limit", strconv.Itoa(req.Limit))
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	if req.Fuzzy {
		q.Set("fuzzy", "true")
	}
	if req.MinScore > 0 {
		q.Set("min_score", strconv.FormatFloat(req.MinScore, 'f', -1, 64))
	}
	var resp search.Response
	if err := doJSON(http.MethodGet, serverURL+"/api/v1/documents/search?"+q.Encode(), header, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON sends body as JSON and decodes a 2xx response into out.
func doJSON(method, target string, header http.Header, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, r)
	if err != nil {
		return err
	}
	req.Header = header.Clone()
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runSeed() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae seed [flags] <fixture.yaml>")
		os.Exit(1)
	}
	fixture, err := seed.Load(fs.Arg(0))
	if err != nil {
		fatalf("Failed to load fixture: %v", err)
	}

	components, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()
	if _, err := components.Warm(ctx); err != nil {
		fatalf("Failed to load indexes: %v", err)
	}
	rep, err := seed.Apply(ctx, fixture, components.Store, components.Indexer)
	if err != nil {
		fatalf("Seeding failed after %d rules and %d documents: %v", rep.Rules, rep.Documents, err)
	}
	fmt.Printf("Seeded %d rule(s) and %d document(s) from %s\n", rep.Rules, rep.Documents, fs.Arg(0))
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	tenant := fs.String("tenant", "", "tenant of the ingested documents")
	category := fs.String("category", "", "category of the ingested documents")
	roles := fs.String("roles", "", "comma-separated roles allowed to see the documents")
	priority := fs.Int("priority", 0, "priority 1-10 (default 5)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	meta := indexer.Input{TenantID: *tenant, Category: *category, Priority: *priority}
	if *roles != "" {
		meta.AllowedRoles = strings.Split(*roles, ",")
	}

	components, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()
	if _, err := components.Warm(ctx); err != nil {
		fatalf("Failed to load indexes: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		rep, err := components.Indexer.IngestDirectory(ctx, path, meta)
		if err != nil {
			fatalf("Ingesting directory failed: %v", err)
		}
		fmt.Printf("Indexed %d file(s) from %s (%d skipped, %d failed)\n", rep.Indexed, path, len(rep.Skipped), len(rep.Failed))
		for _, f := range rep.Failed {
			fmt.Printf("  failed: %s\n", f)
		}
		return
	}
	doc, err := components.Indexer.IngestFile(ctx, filepath.Dir(path), path, meta)
	if err != nil {
		fatalf("Ingesting failed: %v", err)
	}
	fmt.Printf("Document indexed: %s (%s)\n", doc.ID, cli.TruncateWords(doc.Title, 8))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae delete [flags] <document-id>")
		os.Exit(1)
	}
	components, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	if err := components.Indexer.DeleteDocument(context.Background(), fs.Arg(0)); err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Document deleted: %s\n", fs.Arg(0))
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	components, logger, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	n, err := components.Warm(context.Background())
	if err != nil {
		fatalf("Rebuild failed: %v", err)
	}
	fmt.Printf("Rebuilt indexes for %d document(s)\n", n)
}

// statsResponse is what the stats command prints.
type statsResponse struct {
	*analytics.Report
	Index     *search.IndexStats `json:"index,omitempty"`
	Footprint *storage.Footprint `json:"disk,omitempty"`
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage directly)")
	output := fs.String("output", "text", "output format: text or json")
	who := identityFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	var stats statsResponse
	if *serverURL != "" {
		if err := doJSON(http.MethodGet, *serverURL+"/api/v1/stats", who.header(), nil, &stats); err != nil {
			fatalf("Stats failed: %v", err)
		}
	} else {
		components, logger, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		if _, err := components.Warm(ctx); err != nil {
			fatalf("Failed to load indexes: %v", err)
		}
		report, err := analytics.Summarize(ctx, components.Store, who.context().Tenant(), components.Consumer, components.Cache)
		if err != nil {
			fatalf("Stats failed: %v", err)
		}
		stats.Report = report
		if idx, err := components.Engine.Stats(); err == nil {
			stats.Index = &idx
		}
		if fp, err := storage.MeasureFootprint(components.Config.Storage); err == nil {
			stats.Footprint = &fp
		}
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	writeStatsText(os.Stdout, &stats)
}

func writeStatsText(w io.Writer, s *statsResponse) {
	if s.Report != nil {
		fmt.Fprintf(w, "tenant:             %s\n", s.TenantID)
		fmt.Fprintf(w, "documents:          %d\n", s.Documents)
		fmt.Fprintf(w, "rules:              %d\n", s.Rules)
		if m := s.Messages; m != nil {
			fmt.Fprintf(w, "messages:           %d\n", m.TotalMessages)
			for src, n := range m.BySource {
				fmt.Fprintf(w, "  %-16s  %d\n", src, n)
			}
			fmt.Fprintf(w, "avg_response_ms:    %.1f\n", m.AvgResponseTimeMs)
			fmt.Fprintf(w, "avg_rule_score:     %.3f\n", m.AvgRuleScore)
			fmt.Fprintf(w, "avg_rag_score:      %.3f\n", m.AvgRAGScore)
			fmt.Fprintf(w, "feedback:           %d (avg rating %.2f, %.0f%% helpful)\n", m.FeedbackCount, m.AvgFeedbackRating, m.HelpfulFeedbackPct)
		}
		if c := s.Report.Cache; c != nil {
			fmt.Fprintf(w, "embedding_cache:    %d/%d entries, hit rate %.2f\n", c.Size, c.Capacity, c.HitRate)
		}
	}
	if s.Index != nil {
		fmt.Fprintf(w, "keyword_index:      %d documents\n", s.Index.KeywordDocuments)
		fmt.Fprintf(w, "vector_index:       %d documents\n", s.Index.VectorDocuments)
	}
	if s.Footprint != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", s.Footprint.Total())
	}
}

func printUsage() {
	fmt.Println(`kotae - hybrid rule and retrieval question answering

Usage:
  kotae server [flags]              Start the HTTP server
  kotae ask [flags] <question>      Ask a question
  kotae search [flags] <query>      Search knowledge documents
  kotae seed [flags] <fixture.yaml> Load rules and documents from a YAML fixture
  kotae ingest [flags] <path>       Index a file or every supported file in a directory
  kotae delete [flags] <id>         Delete a document
  kotae rebuild [flags]             Rebuild the keyword and vector indexes from storage
  kotae stats [flags]               Show message, feedback and index statistics
  kotae version                     Show version
  kotae help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml, or ./config.yaml)
  --server string    Server URL for ask, search and stats (default: http://localhost:8080).
                     Use --server "" to work on local storage when the server is not running.
  --output string    Output format: text or json
  --user, --tenant, --roles   Identity used for ask, search and stats

Examples:
  kotae server --debug
  kotae seed fixtures/school.yaml
  kotae ask "học phí đóng ở đâu"
  kotae ask --server "" --roles student "how do I register for an activity"
  kotae search --fuzzy --category policy leave policy
  kotae ingest --category regulation --tenant school-a ./handbook
  kotae stats --output json`)
}
