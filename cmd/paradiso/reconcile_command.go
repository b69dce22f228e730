package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"paradiso/internal/catalog"
	"paradiso/internal/config"
	"paradiso/internal/logging"
	"paradiso/internal/reconcile"
	"paradiso/internal/retry"
	"paradiso/internal/reviews"
	"paradiso/internal/runlock"
	"paradiso/internal/services"
	"paradiso/internal/textgen"
)

type reconcileFlags struct {
	batchSize     int
	limit         int
	debug         bool
	backend       string
	provider      string
	localModel    string
	revisitMedium bool
	json          bool
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var flags reconcileFlags

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match unprocessed reviews to catalog movies",
		Long: "Runs one reconciliation pass: reviews are read page by page, the movie each one\n" +
			"discusses is guessed, the catalog is searched, and a confirmed match is written back.\n" +
			"Ctrl-C stops after the current review; finished reviews keep their results.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyReconcileFlags(cmd, cfg, flags); err != nil {
				return err
			}
			if err := cfg.ValidateStores(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
			defer stop()
			return runReconcile(runCtx, cmd, cfg, flags)
		},
	}

	cmd.Flags().IntVar(&flags.batchSize, "batch-size", reconcile.DefaultBatchSize, "Reviews fetched per page (1-1000)")
	cmd.Flags().IntVar(&flags.limit, "limit", reconcile.DefaultLimit, "Maximum reviews attempted in this pass")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Generation backend: hosted or local")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "Hosted provider: openrouter, openai, anthropic, gemini, algolia")
	cmd.Flags().StringVar(&flags.localModel, "local-model", "", "Local model name (implies --backend local)")
	cmd.Flags().BoolVar(&flags.revisitMedium, "revisit-medium", false, "Also re-run reviews whose last outcome was a guess without a match")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the pass summary as JSON")
	return cmd
}

// applyReconcileFlags layers explicitly set flags over the loaded config.
func applyReconcileFlags(cmd *cobra.Command, cfg *config.Config, flags reconcileFlags) error {
	changed := cmd.Flags().Changed
	if changed("batch-size") {
		cfg.Reconcile.BatchSize = flags.batchSize
	}
	if changed("limit") {
		cfg.Reconcile.Limit = flags.limit
	}
	if changed("revisit-medium") {
		cfg.Reconcile.RevisitMedium = flags.revisitMedium
	}
	if err := cfg.OverrideBackend(flags.backend, flags.provider, flags.localModel); err != nil {
		return err
	}
	return cfg.Validate()
}

func runReconcile(ctx context.Context, cmd *cobra.Command, cfg *config.Config, flags reconcileFlags) error {
	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		if errors.Is(err, runlock.ErrHeld) {
			return fmt.Errorf("%w; wait for it to finish or stop it first", err)
		}
		return err
	}
	defer lock.Release()

	logger, logPath, err := logging.NewFromConfig(cfg, flags.debug)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger = logger.With(logging.String(logging.FieldRunID, runID))
	if removed := logging.CleanupOldLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath, time.Now()); removed > 0 {
		logger.Info("old run logs removed", logging.Int("removed", removed))
	}

	out := cmd.OutOrStdout()
	colorize := !flags.json && shouldColorize(out)

	pass, err := buildPass(ctx, cfg, logger)
	if err != nil {
		if ctx.Err() == nil {
			return err
		}
		logger.Info("reconciliation pass interrupted before the first review",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pass_interrupted"),
		)
		return reportPass(cmd, runID, reconcile.Result{Status: reconcile.StatusInterrupted}, flags.json, colorize)
	}
	defer pass.close()

	if !flags.json {
		printBanner(out, cfg, runID, logPath, colorize)
	}

	result := pass.orchestrator.Run(ctx)
	logger.Info("reconciliation pass finished",
		logging.String("status", string(result.Status)),
		logging.Int("attempted", result.Stats.Attempted),
		logging.Int("matched", result.Stats.Matched),
		logging.Duration("elapsed", result.Stats.Elapsed),
		logging.String(logging.FieldEventType, "pass_finished"),
	)
	return reportPass(cmd, runID, result, flags.json, colorize)
}

// reportPass prints the pass summary and turns an errored pass into a
// command error.
func reportPass(cmd *cobra.Command, runID string, result reconcile.Result, asJSON, colorize bool) error {
	if asJSON {
		if err := writeJSON(cmd, newPassReport(runID, result)); err != nil {
			return err
		}
	} else {
		printSummary(cmd.OutOrStdout(), result, colorize)
	}

	if result.Status == reconcile.StatusError {
		return fmt.Errorf("reconciliation pass failed: %w", result.Err)
	}
	return nil
}

type pass struct {
	orchestrator *reconcile.Orchestrator
	closers      []io.Closer
}

func (p *pass) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i].Close()
	}
}

// buildPass opens the backend and both stores and wires the stages.
func buildPass(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pass, error) {
	p := &pass{}
	fail := func(err error) (*pass, error) {
		p.close()
		return nil, err
	}

	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if closer, ok := backend.(io.Closer); ok {
		p.closers = append(p.closers, closer)
	}
	if preparer, ok := backend.(textgen.Preparer); ok {
		if err := preparer.Prepare(ctx, reconcile.Prompts()...); err != nil {
			return fail(fmt.Errorf("prepare backend: %w", err))
		}
	}

	store, err := reviews.Open(ctx, cfg, reviews.Options{RevisitMedium: cfg.Reconcile.RevisitMedium}, logger)
	if err != nil {
		return fail(fmt.Errorf("open review store: %w", err))
	}
	p.closers = append(p.closers, store)

	cat, err := catalog.Open(ctx, cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("open catalog: %w", err))
	}
	p.closers = append(p.closers, cat)

	policy := retry.Default()
	policy.MaxAttempts = cfg.Retry.MaxAttempts
	policy.BaseDelay, policy.MaxDelay = cfg.RetryDelays()
	policy.Logger = logger

	p.orchestrator = reconcile.NewOrchestrator(
		store,
		reconcile.NewExtractor(backend, policy),
		reconcile.NewCandidateSearch(cat),
		reconcile.NewConfirmer(backend, policy),
		reconcile.Options{
			BatchSize:     cfg.Reconcile.BatchSize,
			Limit:         cfg.Reconcile.Limit,
			MaxCandidates: cfg.Reconcile.MaxCandidates,
			Pacing:        cfg.Pacing(),
		},
		logger,
	)
	return p, nil
}

func printBanner(out io.Writer, cfg *config.Config, runID, logPath string, colorize bool) {
	for _, line := range renderSectionHeader("Paradiso reconciliation", colorize) {
		fmt.Fprintln(out, line)
	}
	selection := "unprocessed"
	if cfg.Reconcile.RevisitMedium {
		selection = "unprocessed + medium"
	}
	pairs := [][2]string{
		{"Run ID", runID},
		{"Backend", textgen.Describe(cfg)},
		{"Reviews", cfg.Store.Reviews},
		{"Catalog", cfg.Store.Catalog},
		{"Selection", selection},
		{"Batch size", fmt.Sprintf("%d", cfg.Reconcile.BatchSize)},
		{"Limit", fmt.Sprintf("%d", cfg.Reconcile.Limit)},
	}
	if logPath != "" {
		pairs = append(pairs, [2]string{"Log file", logPath})
	}
	fmt.Fprintln(out, keyValueTable(pairs))
}

func printSummary(out io.Writer, result reconcile.Result, colorize bool) {
	stats := result.Stats
	message := ""
	switch result.Status {
	case reconcile.StatusInterrupted:
		message = "stopped early; finished reviews keep their results"
	case reconcile.StatusError:
		if result.Err != nil {
			message = result.Err.Error()
		}
	}
	fmt.Fprintln(out, renderStatusLine("Pass "+string(result.Status), passStatusKind(result.Status), message, colorize))
	fmt.Fprintln(out, keyValueTable([][2]string{
		{"Attempted", fmt.Sprintf("%d", stats.Attempted)},
		{"Matched", fmt.Sprintf("%d", stats.Matched)},
		{"Guessed, no match", fmt.Sprintf("%d", stats.Medium)},
		{"Low confidence", fmt.Sprintf("%d", stats.Low)},
		{"Skipped (error)", fmt.Sprintf("%d", stats.Skipped)},
		{"Blank", fmt.Sprintf("%d", stats.Blank)},
		{"Match rate", fmt.Sprintf("%.1f%%", stats.MatchRate()*100)},
		{"Avg per review", fmt.Sprintf("%.2fs", stats.AverageSeconds())},
		{"Throughput", fmt.Sprintf("%.2f reviews/s", stats.Throughput())},
		{"Elapsed", stats.Elapsed.Round(time.Millisecond).String()},
		{"Batches", fmt.Sprintf("%d", len(stats.Batches))},
	}))
}

type passReport struct {
	RunID          string  `json:"run_id"`
	Status         string  `json:"status"`
	Attempted      int     `json:"attempted"`
	Matched        int     `json:"matched"`
	Medium         int     `json:"medium"`
	Low            int     `json:"low"`
	Skipped        int     `json:"skipped_error"`
	Blank          int     `json:"blank"`
	MatchRate      float64 `json:"match_rate"`
	AverageSeconds float64 `json:"average_seconds"`
	Throughput     float64 `json:"throughput"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Batches        int     `json:"batches"`
	Error          string  `json:"error,omitempty"`
}

func newPassReport(runID string, result reconcile.Result) passReport {
	stats := result.Stats
	report := passReport{
		RunID:          runID,
		Status:         string(result.Status),
		Attempted:      stats.Attempted,
		Matched:        stats.Matched,
		Medium:         stats.Medium,
		Low:            stats.Low,
		Skipped:        stats.Skipped,
		Blank:          stats.Blank,
		MatchRate:      stats.MatchRate(),
		AverageSeconds: stats.AverageSeconds(),
		Throughput:     stats.Throughput(),
		ElapsedSeconds: stats.Elapsed.Seconds(),
		Batches:        len(stats.Batches),
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	return report
}
