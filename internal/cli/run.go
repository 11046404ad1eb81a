package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FairForge/fraudgov-loadtest/internal/artifact"
	"github.com/FairForge/fraudgov-loadtest/internal/config"
	"github.com/FairForge/fraudgov-loadtest/internal/generators"
	"github.com/FairForge/fraudgov-loadtest/internal/harness"
	"github.com/FairForge/fraudgov-loadtest/internal/metrics"
	"github.com/FairForge/fraudgov-loadtest/internal/reporting"
	"github.com/FairForge/fraudgov-loadtest/internal/traffic"
)

// seedCountries are the markets every run seeds rulesets for.
var seedCountries = []string{"IN", "US"}

// RunOptions holds flags for the run command.
type RunOptions struct {
	Service      string
	Scenario     string
	Users        int
	SpawnRate    int
	Duration     time.Duration
	RunID        string
	Seed         int64
	Profile      string
	ReportsDir   string
	SkipSeed     bool
	SkipTeardown bool
	MetricsAddr  string
}

// NewRunCommand creates the run command.
func NewRunCommand(root *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a load-test run against the selected services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadTest(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Service, "service", "s", config.ServiceAll,
		"target service (all|rule-engine|rule-mgmt|trans-mgmt|ops-analyst)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "baseline", "scenario preset")
	cmd.Flags().IntVarP(&opts.Users, "users", "u", 0, "concurrent users, overrides the scenario")
	cmd.Flags().IntVar(&opts.SpawnRate, "spawn-rate", 0, "user spawn rate, overrides the scenario")
	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "run duration, overrides the scenario")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run identifier, generated when empty")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "random seed for synthetic data")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "traffic-mix profile (auth-only|monitoring-heavy|read-only)")
	cmd.Flags().StringVar(&opts.ReportsDir, "reports-dir", "", "report output directory, overrides config")
	cmd.Flags().BoolVar(&opts.SkipSeed, "skip-seed", false, "skip artifact seeding")
	cmd.Flags().BoolVar(&opts.SkipTeardown, "skip-teardown", false, "leave run artifacts in place")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "expose Prometheus metrics during the run (e.g. :9102)")

	return cmd
}

func runLoadTest(ctx context.Context, root *RootOptions, opts *RunOptions) error {
	if !config.ValidService(opts.Service) {
		return fmt.Errorf("unknown service: %s", opts.Service)
	}
	scenario, err := config.GetScenario(opts.Scenario)
	if err != nil {
		return err
	}

	cfg, err := root.Config()
	if err != nil {
		return err
	}
	if err := config.ApplyProfile(cfg, opts.Profile); err != nil {
		return err
	}

	logger, err := root.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	users := scenario.Users
	if opts.Users > 0 {
		users = opts.Users
	}
	spawnRate := scenario.SpawnRate
	if opts.SpawnRate > 0 {
		spawnRate = opts.SpawnRate
	}
	duration := scenario.Duration
	if opts.Duration > 0 {
		duration = opts.Duration
	}
	reportsDir := cfg.Reports.OutputDir
	if opts.ReportsDir != "" {
		reportsDir = opts.ReportsDir
	}

	services := config.ServicesFor(opts.Service)
	scale := rateScale(cfg, services, users)

	store, err := artifact.NewS3Store(storeEndpoint(cfg), cfg.Storage.AccessKey,
		cfg.Storage.SecretKey, logger)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	h := harness.New(harness.Options{
		RunID:          opts.RunID,
		Bucket:         cfg.Storage.Bucket,
		EnableSeed:     cfg.Harness.EnableSeed && !opts.SkipSeed,
		EnableTeardown: cfg.Harness.EnableTeardown && !opts.SkipTeardown,
		StrictSeed:     cfg.Harness.StrictSeed,
	}, store, logger)
	logger = logger.With(zap.String("run_id", h.RunID()))

	logger.Info("starting load test",
		zap.String("service", opts.Service),
		zap.String("scenario", scenario.Name),
		zap.Int("users", users),
		zap.Duration("duration", duration),
		zap.Float64("rate_scale", scale))

	// Interrupts cancel the load phase; teardown and reporting still run.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Teardown always runs, using a fresh context so cleanup survives the
	// interrupt that cancelled the run.
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := h.Teardown(tctx, false); err != nil {
			logger.Error("teardown failed", zap.Error(err))
		}
		writeMetadata(h, reportsDir, cfg, opts, scenario, spawnRate, logger)
	}()

	// Preflight: every target service must answer its health endpoint.
	checker := harness.NewHealthChecker(cfg.Services, logger)
	results := checker.Check(ctx, services)
	for _, r := range results {
		logger.Info("preflight health",
			zap.String("service", r.Service),
			zap.Bool("healthy", r.Healthy),
			zap.Int("status", r.Status))
	}
	if !harness.AllHealthy(results) {
		return fmt.Errorf("preflight failed: one or more services unhealthy")
	}

	if err := ensureBucketAndSeed(ctx, cfg, h, opts.Seed, logger); err != nil {
		return err
	}
	if scenario.Name == "seed-only" {
		logger.Info("seed-only scenario, skipping load phase")
		return nil
	}

	collector := metrics.NewCollector()
	registerThresholds(cfg, collector, services)

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: collector.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("metrics endpoint up", zap.String("addr", opts.MetricsAddr))
	}

	seededTxns := seededTransactionIDs(opts.Seed)
	plans := traffic.BuildPlans(cfg, services, scale, opts.Seed, seededTxns)
	driver := traffic.NewDriver(plans, traffic.DriverOptions{
		Duration: duration,
		Workers:  uint64(spawnRate),
	}, collector, logger)

	h.MarkStarted()
	vm, runErr := driver.Run(ctx)
	h.MarkEnded()
	if runErr != nil {
		return fmt.Errorf("load phase: %w", runErr)
	}
	if vm != nil {
		logger.Info("vegeta aggregate",
			zap.Uint64("requests", vm.Requests),
			zap.Float64("success_ratio", vm.Success),
			zap.Duration("p95", vm.Latencies.P95),
			zap.Duration("p99", vm.Latencies.P99))
	}

	violations := collector.CheckThresholds()
	for _, v := range violations {
		logger.Warn("threshold violated",
			zap.String("metric", v.Metric),
			zap.String("kind", v.Kind),
			zap.Float64("limit", v.Limit),
			zap.Float64("actual", v.Actual))
	}

	stats := collector.AllStats()
	snapshots := make([]*metrics.Snapshot, 0, len(stats))
	for _, s := range stats {
		snapshots = append(snapshots, s)
	}

	meta := h.RunMetadataSnapshot()
	summary := reporting.BuildSummary(h.RunID(), scenario.Name, services,
		meta.StartedAt, meta.EndedAt, snapshots, violations)

	jsonPath, err := reporting.WriteJSON(summary, reportsDir)
	if err != nil {
		return err
	}
	csvPath, err := reporting.WriteCSV(summary, reportsDir)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		zap.String("verdict", summary.Verdict),
		zap.Int64("requests", summary.TotalRequests),
		zap.Int64("failures", summary.TotalFailures),
		zap.Float64("p95_ms", summary.P95MS),
		zap.Float64("p99_ms", summary.P99MS),
		zap.Int("violations", len(violations)),
		zap.String("json", jsonPath),
		zap.String("csv", csvPath))

	// Threshold violations affect the verdict, never the exit code.
	return nil
}

// storeEndpoint builds the S3 endpoint URL from config. Endpoints that
// already carry a scheme pass through unchanged.
func storeEndpoint(cfg *config.Config) string {
	ep := cfg.Storage.Endpoint
	if strings.HasPrefix(ep, "http://") || strings.HasPrefix(ep, "https://") {
		return ep
	}
	scheme := "http"
	if cfg.Storage.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, ep)
}

// rateScale maps a user count onto the configured per-service rates: the
// scenario's users relative to the normal capacity of the selected services.
func rateScale(cfg *config.Config, services []string, users int) float64 {
	if users <= 0 {
		return 1.0
	}
	total := 0
	for _, svc := range services {
		switch svc {
		case config.ServiceRuleEngine:
			total += cfg.RuleEng.UsersNormal
		case config.ServiceRuleManagement:
			total += cfg.RuleMgmt.UsersNormal
		case config.ServiceTransactionMgmt:
			total += cfg.TransMgmt.UsersNormal
		case config.ServiceOpsAnalyst:
			total += cfg.OpsAgent.UsersNormal
		}
	}
	if total <= 0 {
		return 1.0
	}
	return float64(users) / float64(total)
}

// ensureBucketAndSeed prepares the bucket and publishes seed rulesets for
// every seed country in both evaluation modes.
func ensureBucketAndSeed(ctx context.Context, cfg *config.Config, h *harness.Harness, seed int64, logger *zap.Logger) error {
	if pub := h.Publisher(); pub != nil {
		store := pub.Store()
		if err := store.EnsureBucket(ctx, cfg.Storage.Bucket); err != nil {
			logger.Warn("bucket check failed", zap.Error(err))
		}
	}

	gen := generators.NewRuleGenerator(seed)
	var rulesets []generators.Ruleset
	for _, country := range seedCountries {
		rulesets = append(rulesets,
			gen.GenerateRuleset(generators.RulesetTypeAuth, 10, country, "perf"),
			gen.GenerateRuleset(generators.RulesetTypeMonitoring, 10, country, "perf"),
		)
	}
	if err := h.Seed(ctx, rulesets); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// seededTransactionIDs builds the transaction ID pool the ops-analyst task
// sets investigate.
func seededTransactionIDs(seed int64) []string {
	gen := generators.NewTransactionGenerator(seed)
	ids := make([]string, 0, 20)
	for _, tx := range gen.GenerateBatch(20, "IN") {
		ids = append(ids, tx.TransactionID)
	}
	sort.Strings(ids)
	return ids
}

// registerThresholds installs the per-operation latency and error budgets
// for the selected services.
func registerThresholds(cfg *config.Config, c *metrics.Collector, services []string) {
	for _, svc := range services {
		switch svc {
		case config.ServiceRuleEngine:
			for _, op := range []string{traffic.OpAuthEvaluate, traffic.OpMonitoringEvaluate} {
				c.AddThreshold(metrics.Threshold{
					Metric:       op,
					P95MaxMS:     cfg.RuleEng.P95MaxMS,
					P99MaxMS:     cfg.RuleEng.P99MaxMS,
					ErrorRateMax: cfg.RuleEng.ErrorRateMax,
				})
			}
		case config.ServiceTransactionMgmt:
			for _, op := range []string{traffic.OpDecisionIngest, traffic.OpTransactionList, traffic.OpTransactionDetail} {
				c.AddThreshold(metrics.Threshold{
					Metric:       op,
					P99MaxMS:     cfg.TransMgmt.P99MaxMS,
					ErrorRateMax: cfg.TransMgmt.ErrorRateMax,
				})
			}
		case config.ServiceRuleManagement:
			for _, op := range []string{traffic.OpRuleList, traffic.OpRuleGet, traffic.OpRuleCreate, traffic.OpRuleUpdate} {
				c.AddThreshold(metrics.Threshold{
					Metric:       op,
					P99MaxMS:     cfg.RuleMgmt.P99MaxMS,
					ErrorRateMax: cfg.RuleMgmt.ErrorRateMax,
				})
			}
		case config.ServiceOpsAnalyst:
			for _, op := range []string{traffic.OpWorklist, traffic.OpInvestigationRun, traffic.OpInsights} {
				c.AddThreshold(metrics.Threshold{
					Metric:       op,
					P99MaxMS:     cfg.OpsAgent.P99MaxMS,
					ErrorRateMax: cfg.OpsAgent.ErrorRateMax,
				})
			}
		}
	}
}

// writeMetadata persists the run record with the context a later reader
// needs to reproduce the run.
func writeMetadata(h *harness.Harness, dir string, cfg *config.Config, opts *RunOptions,
	scenario config.Scenario, spawnRate int, logger *zap.Logger) {

	extra := map[string]interface{}{
		"service":    opts.Service,
		"scenario":   scenario.Name,
		"spawn_rate": spawnRate,
		"seed":       opts.Seed,
		"profile":    opts.Profile,
		"service_urls": map[string]string{
			"rule_engine":      cfg.Services.RuleEngineURL,
			"rule_management":  cfg.Services.RuleManagementURL,
			"transaction_mgmt": cfg.Services.TransactionMgmtURL,
			"ops_analyst":      cfg.Services.OpsAnalystURL,
		},
		"rule_engine_mix": map[string]float64{
			"auth":       cfg.RuleEng.TrafficMix.Auth,
			"monitoring": cfg.RuleEng.TrafficMix.Monitoring,
		},
	}
	path, err := h.WriteRunMetadata(dir, extra)
	if err != nil {
		logger.Error("write run metadata failed", zap.Error(err))
		return
	}
	logger.Info("run metadata written", zap.String("path", path))
}
