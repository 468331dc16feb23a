package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/dnsdrift/dnsdrift/config"
	"github.com/dnsdrift/dnsdrift/desired"
	"github.com/dnsdrift/dnsdrift/logger"
	"github.com/dnsdrift/dnsdrift/metrics"
	"github.com/dnsdrift/dnsdrift/probe"
	"github.com/dnsdrift/dnsdrift/provider"
	"github.com/dnsdrift/dnsdrift/provider/paneldns"
	"github.com/dnsdrift/dnsdrift/reconcile"
	"github.com/dnsdrift/dnsdrift/resolver"
	"github.com/dnsdrift/dnsdrift/state"
)

var cli = struct {
	ConfigPath string
	DryRun     bool
	Quiet      bool
	IP         string
	Interval   time.Duration
}{}

var errCanceled = errors.New("canceled by operator")

func init() {
	flag.StringVar(&cli.ConfigPath, "config", "dnsdrift.yaml", "Path to configuration file")
	flag.BoolVar(&cli.DryRun, "dry-run", false, "Compute and print the action plan without making any mutating call")
	flag.BoolVar(&cli.DryRun, "n", false, "Shorthand for --dry-run")
	flag.BoolVar(&cli.Quiet, "quiet", false, "Skip the interactive confirmation prompt")
	flag.BoolVar(&cli.Quiet, "q", false, "Shorthand for --quiet")
	flag.StringVar(&cli.IP, "ip", "", "Use this IPv4 address instead of querying IP echo services")
	flag.DurationVar(&cli.Interval, "interval", 0, "Run continuously with this period (0 runs once)")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		slog.Error("Failed to load config", "path", cli.ConfigPath, "error", err)
		os.Exit(1)
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Env)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "interval" {
			cfg.Interval = config.Duration(cli.Interval)
		}
	})

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Validate the whole desired list before any network call so an
	// aborting run never spends API quota.
	entries, err := desired.Load(cfg.RecordsFile)
	if err != nil {
		slog.Error("Failed to load desired records", "path", cfg.RecordsFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded desired records", "count", len(entries))

	m := metrics.New(true)

	key, err := cfg.Key()
	if err != nil {
		slog.Error("Failed to resolve api key", "error", err)
		os.Exit(1)
	}
	client := paneldns.New(cfg.API.URL, key, cfg.API.Timeout.Std(), m)

	var res resolver.Resolver
	if cli.IP != "" {
		res, err = resolver.FromString(cli.IP)
		if err != nil {
			slog.Error("Invalid --ip value", "ip", cli.IP, "error", err)
			os.Exit(1)
		}
	} else {
		res = resolver.NewWeb(cfg.Resolver.Services, cfg.Resolver.Timeout.Std(), m)
	}

	stateManager, err := state.New(cfg.StatePath, m)
	if err != nil {
		slog.Error("Failed to initialize snapshot store", "path", cfg.StatePath, "error", err)
		os.Exit(1)
	}
	defer stateManager.Close()

	app := &app{
		cfg:     cfg,
		entries: entries,
		client:  client,
		res:     res,
		state:   stateManager,
		metrics: m,
		dryRun:  cli.DryRun,
		quiet:   cli.Quiet,
	}
	if cfg.Probe.Enabled {
		app.prober = probe.New(cfg.Probe.Server)
	}

	if cfg.Interval > 0 {
		runDaemon(app)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.run(ctx); err != nil {
		if errors.Is(err, errCanceled) {
			slog.Info("Run canceled, no changes applied")
		} else {
			slog.Error("Run failed", "error", err)
		}
		os.Exit(1)
	}
}

func runDaemon(app *app) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var server *http.Server
	if app.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", app.metrics.Handler())
		server = &http.Server{Addr: app.cfg.Metrics.Addr, Handler: mux}

		go func() {
			slog.Info("Starting metrics server", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(app.cfg.Interval.Std())
		defer ticker.Stop()

		for {
			if err := app.run(ctx); err != nil {
				slog.Error("Run failed", "error", err)
			}

			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				slog.Info("Stopping run loop")
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	if server != nil {
		shutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelServer()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}
	wg.Wait()
	slog.Info("Shutdown complete")
}

type app struct {
	cfg     *config.Config
	entries []desired.Entry
	client  provider.Client
	res     resolver.Resolver
	state   state.Manager
	prober  *probe.Prober
	metrics *metrics.Metrics
	dryRun  bool
	quiet   bool
}

// run executes one full pipeline pass: resolve IP, snapshot records,
// reconcile, gate, execute, verify.
func (a *app) run(ctx context.Context) error {
	slog.Info("Starting reconcile run")
	start := time.Now()
	defer func() {
		a.metrics.SetRunDuration(time.Since(start))
	}()

	ip, err := a.res.Resolve(ctx)
	if err != nil {
		a.metrics.IncRun(false)
		return fmt.Errorf("resolve external IP: %w", err)
	}

	snapshot, err := a.client.ListRecords(ctx)
	if err != nil {
		a.metrics.IncRun(false)
		return fmt.Errorf("fetch record snapshot: %w", err)
	}
	slog.Info("Got records from panel", "count", len(snapshot))

	if err := a.state.SaveSnapshot(ctx, state.LabelBefore, snapshot); err != nil {
		slog.Warn("Failed to persist before snapshot", "error", err)
	}

	plan := reconcile.Reconcile(ip, snapshot, a.entries)
	for _, action := range plan.Actions {
		a.metrics.IncPlannedAction(string(action.Kind), action.Type)
	}
	printPlan(plan)

	if plan.IsEmpty() {
		slog.Info("No changes needed")
		a.metrics.IncRun(true)
		return nil
	}

	if a.dryRun {
		slog.Info("Dry run mode, no calls made", "estimated_calls", plan.EstimatedCalls)
		a.metrics.IncRun(true)
		return nil
	}

	if max := a.cfg.RateLimit.MaxCalls; max > 0 && plan.EstimatedCalls > max {
		a.metrics.IncRun(false)
		return fmt.Errorf("plan needs %d API calls, above the configured cap of %d", plan.EstimatedCalls, max)
	}

	if !a.quiet && a.cfg.Interval == 0 {
		if !confirm(plan) {
			a.metrics.IncRun(false)
			return errCanceled
		}
	}

	executor := reconcile.NewExecutor(a.client, a.cfg.RateLimit.Delay.Std())
	results := executor.Apply(ctx, plan)
	slog.Info("Run completed",
		"created", len(results.Created),
		"deleted", len(results.Deleted),
		"skipped", results.Skipped,
		"failures", len(results.Failures))
	for _, failure := range results.Failures {
		slog.Warn("Record action failed, re-run to retry",
			"op", failure.Op, "hostname", failure.Hostname, "type", failure.Type, "value", failure.Value, "error", failure.Error)
	}

	a.verify(ctx, ip)
	a.metrics.IncRun(len(results.Failures) == 0)
	return nil
}

// verify re-fetches the record listing for operator inspection and, when
// enabled, probes live DNS. Failures here never fail the run.
func (a *app) verify(ctx context.Context, ip netip.Addr) {
	after, err := a.client.ListRecords(ctx)
	if err != nil {
		slog.Warn("Failed to fetch post-run snapshot", "error", err)
		return
	}
	slog.Info("Post-run record snapshot", "count", len(after))
	if err := a.state.SaveSnapshot(ctx, state.LabelAfter, after); err != nil {
		slog.Warn("Failed to persist after snapshot", "error", err)
	}

	if a.prober == nil {
		return
	}
	for _, result := range a.prober.Check(ctx, a.entries, ip) {
		if result.Err != nil {
			slog.Warn("DNS probe failed", "hostname", result.Entry.Hostname, "type", result.Entry.Type, "error", result.Err)
			continue
		}
		slog.Info("DNS probe", "hostname", result.Entry.Hostname, "type", result.Entry.Type, "match", result.Match, "answers", strings.Join(result.Answers, ","))
	}
}

func printPlan(plan reconcile.Plan) {
	for _, action := range plan.Actions {
		switch action.Kind {
		case reconcile.ActionCreate:
			fmt.Printf("create  %-5s %s -> %s\n", action.Type, action.Hostname, action.IP)
		case reconcile.ActionUpdate:
			fmt.Printf("update  %-5s %s -> %s (retire %s)\n", action.Type, action.Hostname, action.IP, strings.Join(action.Stale, ", "))
		case reconcile.ActionCleanup:
			fmt.Printf("cleanup %-5s %s (retire %s)\n", action.Type, action.Hostname, strings.Join(action.Stale, ", "))
		case reconcile.ActionSkip:
			fmt.Printf("skip    %-5s %s\n", action.Type, action.Hostname)
		}
	}
	fmt.Printf("estimated API calls: %d\n", plan.EstimatedCalls)
}

// confirm prompts the operator before mutating anything. A non-terminal
// stdin counts as a decline; use --quiet for unattended runs.
func confirm(plan reconcile.Plan) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		slog.Warn("Stdin is not a terminal, refusing to apply without --quiet")
		return false
	}

	fmt.Printf("apply %d actions (%d API calls)? [y/N]: ", len(plan.Actions), plan.EstimatedCalls)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
