package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/categorize"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/config"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/extract"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/firestore"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/metrics"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/output"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/pipeline"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/registry"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/rules"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/scanner"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/server"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/store"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/ui"
)

const (
	version          = "0.1.0"
	metricsNamespace = "stmtimport"
)

type options struct {
	configFile    string
	input         string
	userID        string
	accountID     string
	createAccount string
	reportFile    string
	merge         bool
	serve         bool
	dryRun        bool
	verbose       bool
	version       bool

	// Overrides applied on top of the config file when set
	dbPath     string
	backend    string
	rulesFile  string
	addr       string
	classifier bool
	noAuth     bool
	set        map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("stmtimport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.StringVar(&opts.input, "input", "", "Statement file or directory to import")
	fs.StringVar(&opts.userID, "user", "", "User ID that owns the account")
	fs.StringVar(&opts.accountID, "account", "", "Target account ID")
	fs.StringVar(&opts.createAccount, "create-account", "", "Create an account with this name for -user and print its ID")
	fs.StringVar(&opts.reportFile, "report", "", "Write a JSON import report to this file (- for stdout)")
	fs.BoolVar(&opts.merge, "merge", false, "Append to an existing -report file")
	fs.BoolVar(&opts.serve, "serve", false, "Run the HTTP import API")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "List the files that would be imported without importing")
	fs.BoolVar(&opts.verbose, "verbose", false, "Show debug logs")
	fs.BoolVar(&opts.version, "version", false, "Show version")

	fs.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
	fs.StringVar(&opts.backend, "store", "", "Store backend: sqlite or firestore (overrides config)")
	fs.StringVar(&opts.rulesFile, "rules", "", "Keyword rules YAML file (overrides config)")
	fs.StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides config)")
	fs.BoolVar(&opts.classifier, "classifier", false, "Enable the Gemini classifier (overrides config)")
	fs.BoolVar(&opts.noAuth, "no-auth", false, "Trust the X-User-ID header instead of Firebase tokens (local use only)")

	fs.Usage = func() {
		fmt.Fprint(stderr, `stmtimport - Bank statement importer

Usage:
  stmtimport -user USER -account ACCOUNT -input PATH [flags]
  stmtimport -user USER -create-account NAME [flags]
  stmtimport -serve [flags]

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprint(stderr, `
Examples:
  # Import every statement under a directory
  stmtimport -user u1 -account 3f2a... -input ~/statements

  # Run the API locally without Firebase
  stmtimport -serve -no-auth -addr :8080

`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return nil, fmt.Errorf("%w: %w", flag.ErrHelp, err)
	}
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

func (o *options) validate() error {
	switch {
	case o.version, o.serve:
		return nil
	case o.dryRun:
		if o.input == "" {
			return errors.New("-input flag is required")
		}
		return nil
	case o.userID == "":
		return errors.New("-user flag is required")
	case o.createAccount != "":
		return nil
	case o.input == "":
		return errors.New("-input flag is required")
	case o.accountID == "":
		return errors.New("-account flag is required")
	}
	return nil
}

func (o *options) apply(cfg *config.Config) error {
	if o.set["db"] {
		cfg.Store.DatabasePath = o.dbPath
	}
	if o.set["store"] {
		cfg.Store.Backend = o.backend
	}
	if o.set["rules"] {
		cfg.RulesFile = o.rulesFile
	}
	if o.set["addr"] {
		cfg.Server.Addr = o.addr
	}
	if o.set["classifier"] {
		cfg.Classifier.Enabled = o.classifier
	}
	if o.set["no-auth"] {
		cfg.Server.NoAuth = o.noAuth
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "stmtimport version %s\n", version)
		return nil
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := opts.apply(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Out: stderr})
	ctx = logger.WithContext(ctx, log)

	if opts.dryRun {
		return dryRun(opts.input, stdout)
	}

	app, err := newApp(ctx, cfg, opts.serve, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close store")
		}
	}()

	switch {
	case opts.serve:
		return app.serve(ctx, cfg, log)
	case opts.createAccount != "":
		account, err := app.store.CreateAccount(ctx, opts.userID, opts.createAccount)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, account.ID)
		return nil
	default:
		return app.importPath(ctx, opts, stdout)
	}
}

// app holds the wired collaborators shared by the CLI and the server.
type app struct {
	store    store.Store
	service  *pipeline.Service
	registry *prometheus.Registry
	auth     middleware.Authenticator
}

func newApp(ctx context.Context, cfg config.Config, serve bool, log zerolog.Logger) (*app, error) {
	a := &app{}

	switch cfg.Store.Backend {
	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Store.FirestoreProject, cfg.Store.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.store = client
		a.auth = middleware.NewAuthMiddleware(client.Auth)
	default:
		db, err := store.OpenSQLite(cfg.Store.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.store = db
	}
	if cfg.Server.NoAuth {
		a.auth = middleware.HeaderAuth{}
	}

	ok := false
	defer func() {
		if !ok {
			a.store.Close()
		}
	}()

	var recorder metrics.Recorder = metrics.NoOp{}
	if serve {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom := metrics.NewPrometheus(metricsNamespace)
		if err := prom.Register(a.registry); err != nil {
			return nil, err
		}
		recorder = prom
	}

	engine, err := loadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("rules", len(engine.GetRules())).Msg("loaded category rules")

	var classifier categorize.Classifier
	if cfg.Classifier.Enabled {
		gemini, err := categorize.NewGemini(ctx, cfg.Classifier.APIKey, cfg.Classifier.Model)
		if err != nil {
			return nil, err
		}
		classifier = gemini
		log.Debug().Str("model", cfg.Classifier.Model).Msg("classifier enabled")
	}

	categorizer, err := categorize.New(classifier, engine, a.store, categorize.Config{
		Timeout:         cfg.Classifier.Timeout,
		BreakerFailures: cfg.Classifier.BreakerFailures,
		BreakerCooldown: cfg.Classifier.BreakerCooldown,
	}, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create categorizer: %w", err)
	}

	reg, err := registry.New(extract.NewDocument())
	if err != nil {
		return nil, fmt.Errorf("failed to create parser registry: %w", err)
	}
	log.Debug().Strs("parsers", reg.ListParsers()).Msg("registered parsers")

	a.service, err = pipeline.NewService(a.store, reg, categorizer, recorder)
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func loadRules(path string) (*rules.Engine, error) {
	if path == "" {
		engine, err := rules.LoadEmbedded()
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded rules: %w", err)
		}
		return engine, nil
	}
	engine, err := rules.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file: %w", err)
	}
	return engine, nil
}

func (a *app) serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	if a.auth == nil {
		return fmt.Errorf("the sqlite backend has no token verifier; use -no-auth or the firestore backend")
	}
	if cfg.Server.NoAuth {
		log.Warn().Msg("authentication disabled: trusting the " + middleware.UserIDHeader + " header")
	}

	srv, err := server.New(server.Options{
		Importer: a.service,
		Accounts: a.store,
		Auth:     a.auth,
		Gatherer: a.registry,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}

func (a *app) importPath(ctx context.Context, opts *options, stdout io.Writer) error {
	files, err := scanner.New(opts.input).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", opts.input, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s (supported: .ofx, .qfx, .csv, .pdf, .txt)", opts.input)
	}

	if stdout != os.Stdout {
		ui.Out = stdout
	}
	ui.Header("Importing Statements")
	ui.Step(1, 2, fmt.Sprintf("Found %d statement files", len(files)))
	ui.Step(2, 2, "Importing")

	var report output.Report
	for _, file := range files {
		result, err := a.service.ImportFile(ctx, opts.userID, opts.accountID, file.Path)
		if err != nil {
			return fmt.Errorf("import failed for %s: %w", file.Path, err)
		}
		ui.ImportSummary(filepath.Base(file.Path), result)
		report.Add(output.FileResult{
			File:       file.Path,
			AccountID:  opts.accountID,
			ImportedAt: time.Now().UTC(),
			Result:     *result,
		})
	}
	ui.Totals(report.Totals.Files, report.Totals.Imported, report.Totals.Duplicates, report.Totals.Skipped)

	if opts.reportFile == "" {
		return nil
	}
	writeOpts := output.WriteOptions{FilePath: opts.reportFile, MergeMode: opts.merge}
	if opts.reportFile == "-" {
		writeOpts = output.WriteOptions{}
	}
	return output.WriteReportToFile(&report, writeOpts)
}

func dryRun(input string, stdout io.Writer) error {
	files, err := scanner.New(input).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", input, err)
	}
	for _, f := range files {
		group := f.Group
		if group == "" {
			group = "-"
		}
		fmt.Fprintf(stdout, "  %s (%s, %s)\n", f.Path, f.Format, group)
	}
	fmt.Fprintf(stdout, "Dry run complete. Would import %d files.\n", len(files))
	return nil
}
