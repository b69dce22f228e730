package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paradiso/internal/logging"
	"paradiso/internal/reviews"
	"paradiso/internal/services"
)

// Defaults for Options fields left at zero.
const (
	DefaultBatchSize = 10
	DefaultLimit     = 100
	maxBatchSize     = 1000
)

// Options tunes the batch loop.
type Options struct {
	BatchSize     int
	Limit         int
	MaxCandidates int
	// Pacing is the fixed delay between reviews.
	Pacing time.Duration
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchSize > maxBatchSize {
		o.BatchSize = maxBatchSize
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

const stageSearch = "search"

// Decision types for decision logging.
const (
	decisionExtract = "extraction"
	decisionConfirm = "confirmation"
)

// errPersist marks review store write failures, which end the pass.
var errPersist = errors.New("review store write failed")

// Orchestrator drives a reconciliation pass over a review store.
type Orchestrator struct {
	store     reviews.Store
	extractor *Extractor
	search    *CandidateSearch
	confirmer *Confirmer
	opts      Options
	logger    *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(store reviews.Store, extractor *Extractor, search *CandidateSearch, confirmer *Confirmer, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		extractor: extractor,
		search:    search,
		confirmer: confirmer,
		opts:      opts.normalized(),
		logger:    logging.NewComponentLogger(logger, "reconcile"),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run processes pages until the selection is exhausted, the limit is reached,
// ctx is cancelled or the store fails. Writes made before an interrupt or a
// store failure stay in place.
func (o *Orchestrator) Run(ctx context.Context) Result {
	start := o.now()
	var stats Stats
	finish := func(status Status, err error) Result {
		stats.Elapsed = o.now().Sub(start)
		return Result{Status: status, Stats: stats, Err: err}
	}
	stop := func(err error) Result {
		if ctx.Err() != nil {
			return finish(StatusInterrupted, nil)
		}
		return finish(StatusError, err)
	}

	o.logger.Info("reconciliation pass started",
		logging.Int("batch_size", o.opts.BatchSize),
		logging.Int("limit", o.opts.Limit),
		logging.String(logging.FieldEventType, "pass_started"),
	)

	page, err := o.store.FindUnprocessed(ctx, o.opts.BatchSize)
	for {
		if err != nil {
			return stop(fmt.Errorf("fetch review page: %w", err))
		}
		if len(page.Reviews) == 0 {
			return finish(StatusCompleted, nil)
		}
		o.logger.Info("processing review batch",
			logging.Int("reviews", len(page.Reviews)),
			logging.Int("attempted", stats.Attempted),
			logging.String(logging.FieldEventType, "page_fetched"),
		)

		batch := BatchStats{}
		batchStart := o.now()
		for _, review := range page.Reviews {
			if stats.Attempted >= o.opts.Limit {
				break
			}
			if ctx.Err() != nil {
				stats.Batches = append(stats.Batches, batch)
				return finish(StatusInterrupted, nil)
			}
			if !review.HasText() {
				stats.Blank++
				logging.WarnWithContext(o.logger, "review has no text", "review_blank",
					logging.String(logging.FieldReviewID, review.ID),
					logging.String(logging.FieldImpact, "review left unprocessed"),
					logging.String(logging.FieldErrorHint, "add review text or summary"),
				)
				continue
			}
			if stats.Attempted > 0 {
				if err := o.sleep(ctx, o.opts.Pacing); err != nil {
					stats.Batches = append(stats.Batches, batch)
					return finish(StatusInterrupted, nil)
				}
			}

			outcome, err := o.ProcessReview(ctx, review)
			if ctx.Err() != nil {
				stats.Batches = append(stats.Batches, batch)
				return finish(StatusInterrupted, nil)
			}
			if errors.Is(err, errPersist) {
				stats.Batches = append(stats.Batches, batch)
				return finish(StatusError, err)
			}
			stats.record(outcome)
			batch.Reviews++
		}
		batch.Duration = o.now().Sub(batchStart)
		stats.Batches = append(stats.Batches, batch)
		o.logger.Info("review batch finished",
			logging.Int("reviews", batch.Reviews),
			logging.Duration("duration", batch.Duration),
			logging.Float64("reviews_per_second", batch.Throughput()),
			logging.String(logging.FieldEventType, "batch_finished"),
		)

		if page.Short() || stats.Attempted >= o.opts.Limit {
			return finish(StatusCompleted, nil)
		}
		page, err = o.store.AdvancePage(ctx, page)
	}
}

// ProcessReview runs one review to a terminal outcome. A stage failure
// returns OutcomeSkippedError with the cause and writes nothing. A store
// write failure wraps errPersist.
func (o *Orchestrator) ProcessReview(ctx context.Context, review reviews.Review) (Outcome, error) {
	ctx = services.WithReviewID(ctx, review.ID)
	logger := logging.WithContext(ctx, o.logger)

	guess, err := o.extractor.Extract(ctx, review)
	if err != nil {
		return o.skip(ctx, review, stageExtract, err)
	}
	if !guess.Usable() {
		logger.Info("low confidence guess, skipping match", logging.Args(append(
			logging.DecisionAttrs(decisionExtract, string(OutcomeLowConfidence), "guess has no usable title"),
			logging.String(logging.FieldEventType, "review_low_confidence"),
		)...)...)
		return o.write(ctx, review, OutcomeLowConfidence, reviews.NewLowAugmentation(o.now()), "")
	}

	candidates, err := o.search.Search(ctx, guess.Query, o.opts.MaxCandidates)
	if err != nil {
		return o.skip(ctx, review, stageSearch, err)
	}
	decision, err := o.confirmer.Confirm(ctx, guess.Query, candidates)
	if err != nil {
		return o.skip(ctx, review, stageConfirm, err)
	}

	if decision.Abstained() {
		reason := "confirmation abstained"
		if len(candidates) == 0 {
			reason = "catalog returned no candidates"
		}
		logger.Info("no confident match", logging.Args(append(
			logging.DecisionAttrs(decisionConfirm, string(OutcomeNoMatch), reason),
			logging.String("query", guess.Query),
			logging.Int("candidates", len(candidates)),
			logging.String(logging.FieldEventType, "review_no_match"),
		)...)...)
		return o.write(ctx, review, OutcomeNoMatch, reviews.NewMediumAugmentation(guess, o.now()), "")
	}
	logger.Info("match found", logging.Args(append(
		logging.DecisionAttrs(decisionConfirm, string(OutcomeMatched), "confirmed candidate"),
		logging.String("movie_id", decision.ObjectID),
		logging.String("title", guess.Title),
		logging.String(logging.FieldEventType, "review_matched"),
	)...)...)
	return o.write(ctx, review, OutcomeMatched, reviews.NewHighAugmentation(guess, decision.ObjectID, o.now()), reviews.TagAugmented)
}

func (o *Orchestrator) skip(ctx context.Context, review reviews.Review, stage string, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeSkippedError, ctx.Err()
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "review skipped", "review_skipped",
		logging.String(logging.FieldStage, stage),
		logging.Error(err),
		logging.String(logging.FieldImpact, "review left unprocessed for the next pass"),
		logging.String(logging.FieldErrorHint, skipHint(err)),
	)
	return OutcomeSkippedError, err
}

func skipHint(err error) string {
	switch {
	case errors.Is(err, services.ErrRateLimited):
		return "backend rate limit persisted; raise pacing_ms or retry later"
	case errors.Is(err, services.ErrConfiguration):
		return "check backend credentials with paradiso backend check"
	case errors.Is(err, services.ErrTimeout), errors.Is(err, services.ErrTransient):
		return "backend unavailable; retry the pass later"
	default:
		return "run with --debug for the raw backend exchange"
	}
}

func (o *Orchestrator) write(ctx context.Context, review reviews.Review, outcome Outcome, aug reviews.Augmentation, tag string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	if err := o.store.WriteAugmentation(ctx, review.ID, aug, tag); err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, o.logger), "review write failed", "review_write_failed",
			logging.String("outcome", string(outcome)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the review store is reachable and writable"),
		)
		return outcome, fmt.Errorf("%w: review %s: %w", errPersist, review.ID, err)
	}
	return outcome, nil
}
