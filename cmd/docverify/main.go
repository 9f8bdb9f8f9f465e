// Package main is the docverify CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/docverify/internal/cli"
	"github.com/hyperjump/docverify/internal/compare"
	"github.com/hyperjump/docverify/internal/config"
	"github.com/hyperjump/docverify/internal/identity"
	"github.com/hyperjump/docverify/internal/idp"
	"github.com/hyperjump/docverify/internal/models"
	"github.com/hyperjump/docverify/internal/ranges"
	"github.com/hyperjump/docverify/internal/server"
	"github.com/hyperjump/docverify/internal/storage"
	"github.com/hyperjump/docverify/internal/stream"
	"github.com/hyperjump/docverify/internal/verify"
	"github.com/hyperjump/docverify/internal/watcher"
	"github.com/hyperjump/docverify/pkg/utils"
)

var version = "dev"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists. Returns the config and the path
// that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
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
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "compare":
		runCompare()
	case "pan":
		runPAN()
	case "analyze":
		runAnalyze()
	case "reassemble":
		runReassemble()
	case "import":
		runImport()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("docverify version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (stream chunks, comparisons, inbox events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("idp_configured", cfg.IDP.APIKey != ""),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	inbox := newInbox(cfg, components, logger)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := inbox.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	inbox.SyncExisting()

	srv := server.NewServer(
		components.Service,
		components.Storage,
		&cfg.Server,
		logger,
		inbox,
		resolvedConfigPath,
		cfg,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	inbox.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newInbox builds the inbox watcher. It always logs: the inbox is where dropped-file
// reports surface.
func newInbox(cfg *config.Config, components *Components, logger *zap.Logger) *watcher.Inbox {
	return watcher.NewInbox(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		inboxHandler(components.Service, components.Storage, logger),
		watcher.WithLogger(logger),
	)
}

// inboxHandler analyses a dropped extraction dump. A leading proposer id in the file
// name (e.g. 1042_labreport.jsonl) enables the identity check against that proposer.
func inboxHandler(svc *verify.Service, store storage.Store, logger *zap.Logger) watcher.Handler {
	return func(ctx context.Context, path string) {
		var proposer *models.Proposer
		if id, ok := proposerIDFromFilename(path); ok {
			p, err := store.GetProposer(ctx, id)
			if err != nil {
				logger.Warn("inbox proposer lookup failed", zap.String("path", path), zap.Int64("proposer_id", id), zap.Error(err))
			} else {
				proposer = p
			}
		}
		report, err := svc.AnalyzeFile(ctx, path, proposer)
		if err != nil {
			logger.Warn("inbox analysis failed", zap.String("path", path), zap.Error(err))
			return
		}
		fields := []zap.Field{
			zap.String("path", path),
			zap.String("run_id", report.RunID),
			zap.String("stream_status", report.StreamStatus),
			zap.Int("total_pages", report.TotalPages),
			zap.Int("params", report.RangeAnalysis.TotalParams),
			zap.Int("out_of_range", len(report.RangeAnalysis.OutOfRangeParams)),
		}
		if report.IdentityVerification != nil {
			fields = append(fields, zap.Int("identity_confidence", report.IdentityVerification.Confidence))
		}
		logger.Info("inbox report", fields...)
	}
}

// proposerIDFromFilename returns the digits before the first '_' or '-' of the base name.
func proposerIDFromFilename(path string) (int64, bool) {
	base := filepath.Base(path)
	end := strings.IndexAny(base, "_-")
	if end <= 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(base[:end], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// argsReorder moves flags that appear after positional arguments to the front so
// flag.Parse sees them ("docverify analyze dump.jsonl --proposer 7").
func argsReorder(args []string) []string {
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

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runCompare() {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	docType := fs.String("type", models.DocTypePANCard, "document type: pan_card, bank_statement, payslip")
	proposerID := fs.Int64("proposer", 0, "proposer id to compare against")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 || *proposerID <= 0 {
		fmt.Println("Usage: docverify compare --proposer <id> [--type pan_card] <extraction.json>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	extraction, err := readExtraction(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read extraction: %v\n", err)
		os.Exit(1)
	}

	components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	report, err := components.Service.CompareFinance(context.Background(), verify.FinanceRequest{
		DocumentType: *docType,
		Extraction:   extraction,
		ProposerID:   *proposerID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compare failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteFinanceReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runPAN() {
	fs := flag.NewFlagSet("pan", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 2 {
		fmt.Println("Usage: docverify pan <extracted> <database>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	cmp := compare.ComparePAN(fs.Arg(0), fs.Arg(1))
	if err := cli.WritePANComparison(os.Stdout, cmp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	proposerID := fs.Int64("proposer", 0, "proposer id for the identity check (optional)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: docverify analyze [--proposer <id>] <extraction.json|dump.jsonl>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	components, logger := mustComponents(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var proposer *models.Proposer
	if *proposerID > 0 {
		p, err := components.Storage.GetProposer(ctx, *proposerID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Proposer lookup failed: %v\n", err)
			os.Exit(1)
		}
		proposer = p
	}
	report, err := components.Service.AnalyzeFile(ctx, fs.Arg(0), proposer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analyze failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMedicalReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReassemble() {
	fs := flag.NewFlagSet("reassemble", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path (stream timeouts)")
	outputFormat := fs.String("output", "json", "output format: text (summary + document) or json (document only)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: docverify reassemble <dump.jsonl>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	opts := stream.DefaultOptions()
	debugMode := false
	if cfg, _, err := loadConfig(*configPath); err == nil {
		opts = cfg.Stream
		debugMode = cfg.Debug
	}
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open: %v\n", err)
		os.Exit(1)
	}
	res, err := stream.NewReassembler(opts, logger).Reassemble(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reassemble failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStreamResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// fixture is the import file layout.
type fixture struct {
	Proposers []models.Proposer       `yaml:"proposers"`
	Documents []models.DocumentRecord `yaml:"documents"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, p := range fx.Proposers {
		if p.ProposerID <= 0 {
			return nil, fmt.Errorf("proposer %d: proposer_id is required", i)
		}
	}
	for i, d := range fx.Documents {
		if d.ProposerID <= 0 {
			return nil, fmt.Errorf("document %d: proposer_id is required", i)
		}
	}
	return &fx, nil
}

func importFixture(ctx context.Context, store storage.Store, fx *fixture) error {
	for i := range fx.Proposers {
		if err := store.UpsertProposer(ctx, &fx.Proposers[i]); err != nil {
			return fmt.Errorf("proposer %d: %w", fx.Proposers[i].ProposerID, err)
		}
	}
	for i := range fx.Documents {
		if err := store.CreateDocument(ctx, &fx.Documents[i]); err != nil {
			return fmt.Errorf("document for proposer %d: %w", fx.Documents[i].ProposerID, err)
		}
	}
	return nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: docverify import <records.yaml>")
		os.Exit(1)
	}
	fx, err := loadFixture(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load records: %v\n", err)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := importFixture(context.Background(), store, fx); err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d proposer(s) and %d document(s)\n", len(fx.Proposers), len(fx.Documents))
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Proposers        int64           `json:"proposers"`
	Documents        int64           `json:"documents"`
	DatabasePath     string          `json:"database_path,omitempty"`
	DatabaseBytes    *int64          `json:"database_bytes,omitempty"`
	WatchDirectories []string        `json:"watch_directories,omitempty"`
	Matching         *compare.Policy `json:"matching,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		if status.Proposers, err = store.CountProposers(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count proposers failed: %v\n", err)
			os.Exit(1)
		}
		if status.Documents, err = store.CountDocuments(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		status.DatabasePath = cfg.Storage.DatabasePath
		if size, err := storage.DatabaseSize(cfg.Storage.DatabasePath); err == nil {
			status.DatabaseBytes = &size
		}
		status.WatchDirectories = cfg.Watch.Directories
		policy := compare.NewComparator(cfg.Matching, nil).Policy()
		status.Matching = &policy
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("proposers:       %d\n", status.Proposers)
	fmt.Printf("documents:       %d\n", status.Documents)
	if status.DatabasePath != "" {
		fmt.Printf("database_path:   %s\n", status.DatabasePath)
	}
	if status.DatabaseBytes != nil {
		fmt.Printf("database_bytes:  %d\n", *status.DatabaseBytes)
	}
	for _, d := range status.WatchDirectories {
		fmt.Printf("watching:        %s\n", d)
	}
	if p := status.Matching; p != nil {
		fmt.Println()
		fmt.Println("# matching")
		fmt.Printf("name_strong_similarity:  %.2f\n", p.NameStrongSimilarity)
		fmt.Printf("name_weak_similarity:    %.2f\n", p.NameWeakSimilarity)
		fmt.Printf("salary_tolerance:        %.2f\n", p.SalaryTolerance)
		fmt.Printf("verification_threshold:  %.2f\n", p.VerificationThreshold)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: docverify watch <add|remove|list> [path]")
		fmt.Println("  docverify watch add <path>     Add inbox directory")
		fmt.Println("  docverify watch remove <path>  Remove inbox directory")
		fmt.Println("  docverify watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: docverify watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: docverify watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// readExtraction reads a JSON object, or a page stream, from path.
func readExtraction(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj, nil
	}
	pages := stream.NewScanner(nil).Feed(data)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: no JSON object found", path)
	}
	return stream.CombinePages(pages)
}

// Components holds initialized services.
type Components struct {
	Storage *storage.SQLiteStore
	Service *verify.Service
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func mustComponents(configPath string) (*Components, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	reassembler := stream.NewReassembler(cfg.Stream, logger)
	client := idp.NewClient(idp.Config{
		MedicalURL:     cfg.IDP.MedicalURL,
		FinanceURL:     cfg.IDP.FinanceURL,
		APIKey:         cfg.IDP.APIKey,
		RequestTimeout: cfg.IDP.RequestTimeout,
		FinanceTimeout: cfg.IDP.FinanceTimeout,
	}, reassembler, logger)

	svc := verify.NewService(
		store,
		client,
		client,
		compare.NewComparator(cfg.Matching, logger),
		ranges.NewClassifier(logger),
		identity.NewVerifier(logger),
		reassembler,
		logger,
	)
	return &Components{Storage: store, Service: svc}, nil
}

func printUsage() {
	fmt.Println(`docverify - Underwriting document verification

Usage:
  docverify server [flags]                     Start the HTTP server and inbox watcher
  docverify compare [flags] <extraction.json>  Compare extracted finance fields with a proposer
  docverify pan <extracted> <database>         Compare two PAN numbers
  docverify analyze [flags] <dump>             Analyse a saved lab report extraction
  docverify reassemble [flags] <dump.jsonl>    Combine a saved page stream into one document
  docverify import [flags] <records.yaml>      Load proposers and documents into the database
  docverify status [flags]                     Show database and inbox status
  docverify watch <add|remove|list>            Manage inbox directories
  docverify version                            Show version
  docverify help                               Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/docverify/config.yaml, or ./config.yaml)
  --output string    Output format: text or json

Server Flags:
  --debug            Enable debug logging

Compare Flags:
  --proposer int     Proposer id (required)
  --type string      pan_card, bank_statement or payslip (default: pan_card)

Analyze Flags:
  --proposer int     Proposer id for the identity check

Status / Watch Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.

Environment:
  DOCVERIFY_IDP_API_KEY   Extraction service API key (overrides idp.api_key)

Examples:
  docverify import records.yaml
  docverify compare --proposer 1042 --type payslip payslip.json
  docverify pan ABCDE1234F ABCDE1234G
  docverify analyze --proposer 1042 labreport.jsonl --output json
  docverify watch add ~/inbox`)
}
