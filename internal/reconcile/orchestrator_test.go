package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paradiso/internal/catalog"
	"paradiso/internal/logging"
	"paradiso/internal/normalize"
	"paradiso/internal/reconcile"
	"paradiso/internal/reviews"
	"paradiso/internal/services"
	"paradiso/internal/testsupport"
	"paradiso/internal/textgen"
)

const arrivalGuess = `{"title": "Arrival", "director": "Denis Villeneuve", "actors": ["Amy Adams"], "year": 2016, "query": "Arrival Denis Villeneuve Amy Adams"}`

type harness struct {
	store   *reviews.SQLiteStore
	backend *testsupport.ScriptedBackend
	orch    *reconcile.Orchestrator
}

func newHarness(t *testing.T, opts reconcile.Options, movies []catalog.Candidate, list ...reviews.Review) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{}, list...)
	cat := testsupport.MustOpenCatalogStore(t, cfg, movies...)
	backend := testsupport.NewScriptedBackend()
	return &harness{
		store:   store,
		backend: backend,
		orch:    newOrchestrator(store, cat, backend, opts),
	}
}

func newOrchestrator(store reviews.Store, cat catalog.Store, backend textgen.Backend, opts reconcile.Options) *reconcile.Orchestrator {
	return newLoggedOrchestrator(store, cat, backend, opts, nil)
}

func newLoggedOrchestrator(store reviews.Store, cat catalog.Store, backend textgen.Backend, opts reconcile.Options, logger *slog.Logger) *reconcile.Orchestrator {
	policy := fastPolicy()
	return reconcile.NewOrchestrator(store,
		reconcile.NewExtractor(backend, policy),
		reconcile.NewCandidateSearch(cat),
		reconcile.NewConfirmer(backend, policy),
		opts, logger)
}

// jsonRunLog returns a JSON logger at info level and a reader for its entries.
func jsonRunLog(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, func() []map[string]any {
		t.Helper()
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		var entries []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
			var entry map[string]any
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				t.Fatalf("decode json log %q: %v", line, err)
			}
			entries = append(entries, entry)
		}
		return entries
	}
}

func findEvent(entries []map[string]any, eventType string) map[string]any {
	for _, entry := range entries {
		if entry[logging.FieldEventType] == eventType {
			return entry
		}
	}
	return nil
}

func (h *harness) review(t *testing.T, id string) *reviews.Review {
	t.Helper()
	review, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return review
}

func arrivalCatalog() []catalog.Candidate {
	year := 2016
	return []catalog.Candidate{
		{ObjectID: "m_arrival", Title: "Arrival", Director: "Denis Villeneuve", Actors: []string{"Amy Adams"}, Year: &year},
		{ObjectID: "m_heat", Title: "Heat", Director: "Michael Mann"},
	}
}

func TestScenarioAHighConfidenceMatch(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, arrivalCatalog(),
		reviews.Review{ID: "r1", Text: "Denis Villeneuve's Arrival with Amy Adams blew me away"})
	h.backend.Text(reconcile.GuessPrompt.Name, arrivalGuess)
	h.backend.Text(reconcile.ConfirmPrompt.Name, "m_arrival")

	result := h.orch.Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Err != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Stats.Attempted != 1 || result.Stats.Matched != 1 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}

	review := h.review(t, "r1")
	if !review.Augmented() || review.Augmentation == nil {
		t.Fatalf("review not augmented: %+v", review)
	}
	aug := review.Augmentation
	if aug.Confidence != normalize.ConfidenceHigh || aug.MovieID != "m_arrival" || aug.Title != "Arrival" || aug.Director != "Denis Villeneuve" {
		t.Fatalf("unexpected augmentation: %+v", aug)
	}

	confirm := h.backend.Requests(reconcile.ConfirmPrompt.Name)
	if len(confirm) != 1 || len(confirm[0].Records) == 0 {
		t.Fatalf("confirmation should see candidates: %+v", confirm)
	}
}

func TestScenarioBLowConfidenceSkipsSearch(t *testing.T) {
	cat := &countingCatalog{}
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{}, reviews.Review{ID: "r1", Text: "it was okay I guess"})
	backend := testsupport.NewScriptedBackend().Text(reconcile.GuessPrompt.Name, `{"confidence": "low"}`)

	result := newOrchestrator(store, cat, backend, reconcile.Options{}).Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Stats.Low != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if cat.calls != 0 || len(backend.Requests(reconcile.ConfirmPrompt.Name)) != 0 {
		t.Fatal("low confidence must not reach search or confirmation")
	}
	review, err := store.Get(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if review.Augmentation == nil || review.Augmentation.Confidence != normalize.ConfidenceLow || review.Augmented() {
		t.Fatalf("unexpected review: %+v", review)
	}
}

func TestScenarioCNoMatchIsMedium(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, arrivalCatalog(),
		reviews.Review{ID: "r1", Text: "Arrival was stunning"},
		reviews.Review{ID: "r2", Text: "Obscure film nobody has"},
	)
	h.backend.Text(reconcile.GuessPrompt.Name,
		arrivalGuess,
		`{"title": "Zzyzx Road", "query": "Zzyzx Road"}`,
	)
	h.backend.Text(reconcile.ConfirmPrompt.Name, "NOT_SURE")

	result := h.orch.Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Stats.Medium != 2 || result.Stats.Matched != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	// r2 has no candidates, so only r1 reaches confirmation.
	if got := len(h.backend.Requests(reconcile.ConfirmPrompt.Name)); got != 1 {
		t.Fatalf("confirmation calls = %d, want 1", got)
	}
	for _, id := range []string{"r1", "r2"} {
		review := h.review(t, id)
		if review.Augmented() {
			t.Fatalf("%s must not be tagged augmented", id)
		}
		if review.Augmentation == nil || review.Augmentation.Confidence != normalize.ConfidenceMedium || review.Augmentation.MovieID != "" {
			t.Fatalf("%s: unexpected augmentation %+v", id, review.Augmentation)
		}
	}
}

func TestScenarioDRateLimitedConfirmationRecovers(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, arrivalCatalog(),
		reviews.Review{ID: "r1", Text: "Denis Villeneuve's Arrival with Amy Adams blew me away"})
	h.backend.Text(reconcile.GuessPrompt.Name, arrivalGuess)
	h.backend.Queue(reconcile.ConfirmPrompt.Name,
		testsupport.Reply{Err: rateLimited()},
		testsupport.Reply{Err: rateLimited()},
		testsupport.Reply{Text: "m_arrival"},
	)

	result := h.orch.Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Stats.Matched != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := len(h.backend.Requests(reconcile.ConfirmPrompt.Name)); got != 3 {
		t.Fatalf("confirmation calls = %d, want 3", got)
	}
}

func TestSecondPassProcessesNothing(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, arrivalCatalog(),
		reviews.Review{ID: "r1", Text: "Arrival!"},
		reviews.Review{ID: "r2", Text: "meh"},
		reviews.Review{ID: "r3", Text: "Something else"},
	)
	h.backend.Text(reconcile.GuessPrompt.Name, arrivalGuess, `{"confidence":"low"}`, `{"title":"Nothing","query":"Nothing"}`)
	h.backend.Text(reconcile.ConfirmPrompt.Name, "m_arrival")

	first := h.orch.Run(context.Background())
	if first.Stats.Attempted != 3 {
		t.Fatalf("first pass stats: %+v", first.Stats)
	}
	calls := len(h.backend.Requests(""))

	second := h.orch.Run(context.Background())
	if second.Status != reconcile.StatusCompleted || second.Stats.Attempted != 0 {
		t.Fatalf("second pass should be empty: %+v", second)
	}
	if got := len(h.backend.Requests("")); got != calls {
		t.Fatalf("second pass made %d backend calls", got-calls)
	}
}

func TestStageFailureLeavesReviewUnprocessed(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, arrivalCatalog(),
		reviews.Review{ID: "r1", Text: "first"},
		reviews.Review{ID: "r2", Text: "Arrival"},
	)
	h.backend.Queue(reconcile.GuessPrompt.Name,
		testsupport.Reply{Err: &textgen.StatusError{Service: "test", StatusCode: 400}},
		testsupport.Reply{Text: `{"confidence":"low"}`},
	)

	result := h.orch.Run(context.Background())
	if result.Status != reconcile.StatusCompleted {
		t.Fatalf("unexpected status: %+v", result)
	}
	if result.Stats.Attempted != 2 || result.Stats.Skipped != 1 || result.Stats.Low != 1 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
	if got := len(h.backend.Requests(reconcile.GuessPrompt.Name)); got != 2 {
		t.Fatalf("validation errors must not be retried, got %d extraction calls", got)
	}
	if review := h.review(t, "r1"); review.State != reviews.StateUnprocessed || review.Augmentation != nil {
		t.Fatalf("failed review must stay unprocessed: %+v", review)
	}
}

func TestBlankReviewsAreNotCounted(t *testing.T) {
	h := newHarness(t, reconcile.Options{}, nil,
		reviews.Review{ID: "r1", Text: "   "},
		reviews.Review{ID: "r2", Text: "fine"},
	)
	h.backend.Text(reconcile.GuessPrompt.Name, `{"confidence":"low"}`)

	result := h.orch.Run(context.Background())
	if result.Stats.Attempted != 1 || result.Stats.Blank != 1 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
	if got := len(h.backend.Requests("")); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
}

func TestLimitAndPaging(t *testing.T) {
	list := make([]reviews.Review, 0, 7)
	for i := 1; i <= 7; i++ {
		list = append(list, reviews.Review{ID: fmt.Sprintf("r%d", i), Text: "text"})
	}
	h := newHarness(t, reconcile.Options{BatchSize: 2, Limit: 5}, nil, list...)
	for range 7 {
		h.backend.Text(reconcile.GuessPrompt.Name, `{"confidence":"low"}`)
	}

	result := h.orch.Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Stats.Attempted != 5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Stats.Batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(result.Stats.Batches))
	}
	stats, err := h.store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Unprocessed != 2 {
		t.Fatalf("unprocessed = %d, want 2", stats.Unprocessed)
	}
}

// cancelingBackend cancels the pass during the Nth call.
type cancelingBackend struct {
	next   textgen.Backend
	cancel context.CancelFunc
	at     int
	calls  int
}

func (b *cancelingBackend) Generate(ctx context.Context, req textgen.Request) (string, error) {
	b.calls++
	if b.calls == b.at {
		b.cancel()
		return "", ctx.Err()
	}
	return b.next.Generate(ctx, req)
}

func TestInterruptKeepsCompletedWrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{},
		reviews.Review{ID: "r1", Text: "a"},
		reviews.Review{ID: "r2", Text: "b"},
		reviews.Review{ID: "r3", Text: "c"},
	)
	cat := testsupport.MustOpenCatalogStore(t, cfg)
	scripted := testsupport.NewScriptedBackend().Text(reconcile.GuessPrompt.Name, `{"confidence":"low"}`, `{"confidence":"low"}`)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &cancelingBackend{next: scripted, cancel: cancel, at: 2}

	result := newOrchestrator(store, cat, backend, reconcile.Options{}).Run(ctx)
	if result.Status != reconcile.StatusInterrupted || result.Err != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Stats.Attempted != 1 {
		t.Fatalf("attempted = %d, want 1", result.Stats.Attempted)
	}
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Low != 1 || stats.Unprocessed != 2 {
		t.Fatalf("unexpected store stats: %+v", stats)
	}
}

// failingWrites wraps a store and fails every write.
type failingWrites struct {
	reviews.Store
}

func (failingWrites) WriteAugmentation(context.Context, string, reviews.Augmentation, string) error {
	return services.Wrap(services.ErrTransient, "reviews", "write", "disk full", nil)
}

func TestStoreWriteFailureEndsPass(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{},
		reviews.Review{ID: "r1", Text: "a"},
		reviews.Review{ID: "r2", Text: "b"},
	)
	cat := testsupport.MustOpenCatalogStore(t, cfg)
	backend := testsupport.NewScriptedBackend().Text(reconcile.GuessPrompt.Name, `{"confidence":"low"}`, `{"confidence":"low"}`)

	result := newOrchestrator(failingWrites{store}, cat, backend, reconcile.Options{}).Run(context.Background())
	if result.Status != reconcile.StatusError || result.Err == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !errors.Is(result.Err, services.ErrTransient) {
		t.Fatalf("cause lost: %v", result.Err)
	}
	if got := len(backend.Requests("")); got != 1 {
		t.Fatalf("pass should stop after the failed write, made %d calls", got)
	}
}

func TestPageFetchFailureReportsError(t *testing.T) {
	backend := testsupport.NewScriptedBackend()
	result := newOrchestrator(brokenStore{}, &countingCatalog{}, backend, reconcile.Options{}).Run(context.Background())
	if result.Status != reconcile.StatusError || result.Err == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
}

type brokenStore struct{}

func (brokenStore) FindUnprocessed(context.Context, int) (reviews.Page, error) {
	return reviews.Page{}, errors.New("index unreachable")
}

func (brokenStore) AdvancePage(context.Context, reviews.Page) (reviews.Page, error) {
	return reviews.Page{}, errors.New("index unreachable")
}

func (brokenStore) WriteAugmentation(context.Context, string, reviews.Augmentation, string) error {
	return nil
}

func TestPassLogsDecisionsAndBatchThroughput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{},
		reviews.Review{ID: "r1", Text: "Denis Villeneuve's Arrival with Amy Adams blew me away"},
		reviews.Review{ID: "r2", Text: "it was okay I guess"},
	)
	cat := testsupport.MustOpenCatalogStore(t, cfg, arrivalCatalog()...)
	backend := testsupport.NewScriptedBackend().
		Text(reconcile.GuessPrompt.Name, arrivalGuess, `{"confidence": "low"}`).
		Text(reconcile.ConfirmPrompt.Name, "m_arrival")
	logger, readLog := jsonRunLog(t)

	result := newLoggedOrchestrator(store, cat, backend, reconcile.Options{}, logger).Run(context.Background())
	if result.Status != reconcile.StatusCompleted || result.Stats.Matched != 1 || result.Stats.Low != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	entries := readLog()

	batch := findEvent(entries, "batch_finished")
	if batch == nil {
		t.Fatalf("batch throughput not logged at info: %v", entries)
	}
	if batch["level"] != "info" || batch["reviews"] != float64(2) {
		t.Fatalf("unexpected batch entry: %v", batch)
	}
	if _, ok := batch["reviews_per_second"]; !ok {
		t.Fatalf("batch entry lacks throughput: %v", batch)
	}

	matched := findEvent(entries, "review_matched")
	if matched == nil || matched[logging.FieldDecisionType] != "confirmation" || matched["decision_result"] != "matched" {
		t.Fatalf("unexpected match entry: %v", matched)
	}
	if matched[logging.FieldReviewID] != "r1" {
		t.Fatalf("match entry lacks review id: %v", matched)
	}
	low := findEvent(entries, "review_low_confidence")
	if low == nil || low[logging.FieldDecisionType] != "extraction" || low["decision_result"] != "low-confidence" {
		t.Fatalf("unexpected low confidence entry: %v", low)
	}
}

func TestStoreWriteFailureIsLoggedAsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenReviewStore(t, cfg, reviews.Options{}, reviews.Review{ID: "r1", Text: "a"})
	cat := testsupport.MustOpenCatalogStore(t, cfg)
	backend := testsupport.NewScriptedBackend().Text(reconcile.GuessPrompt.Name, `{"confidence":"low"}`)
	logger, readLog := jsonRunLog(t)

	result := newLoggedOrchestrator(failingWrites{store}, cat, backend, reconcile.Options{}, logger).Run(context.Background())
	if result.Status != reconcile.StatusError {
		t.Fatalf("unexpected result: %+v", result)
	}
	entry := findEvent(readLog(), "review_write_failed")
	if entry == nil || entry["level"] != "error" {
		t.Fatalf("write failure not logged as error: %v", entry)
	}
	if entry[logging.FieldErrorHint] == nil || entry[logging.FieldReviewID] != "r1" {
		t.Fatalf("write failure entry lacks context: %v", entry)
	}
}
