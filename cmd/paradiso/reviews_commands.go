package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paradiso/internal/normalize"
	"paradiso/internal/reviews"
)

func newReviewsCommand(ctx *commandContext) *cobra.Command {
	reviewsCmd := &cobra.Command{
		Use:   "reviews",
		Short: "Inspect and seed the review store",
	}
	reviewsCmd.AddCommand(newReviewsListCommand(ctx))
	reviewsCmd.AddCommand(newReviewsShowCommand(ctx))
	reviewsCmd.AddCommand(newReviewsStatsCommand(ctx))
	reviewsCmd.AddCommand(newReviewsImportCommand(ctx))
	reviewsCmd.AddCommand(newReviewsResetCommand(ctx))
	return reviewsCmd
}

// reviewFilter maps the --state flag onto a store filter. "augmented"
// selects confirmed matches.
func reviewFilter(state string, limit int) (reviews.Filter, error) {
	filter := reviews.Filter{Limit: limit}
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "":
	case string(reviews.StateUnprocessed):
		filter.State = reviews.StateUnprocessed
	case string(reviews.StateProcessed):
		filter.State = reviews.StateProcessed
	case reviews.TagAugmented:
		filter.Confidence = normalize.ConfidenceHigh
	default:
		return filter, fmt.Errorf("unsupported state %q (use unprocessed, processed, or augmented)", state)
	}
	return filter, nil
}

func newReviewsListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := reviewFilter(state, limit)
			if err != nil {
				return err
			}
			return ctx.withReviews(cmd.Context(), reviews.Options{}, func(repo reviews.Repository) error {
				list, err := repo.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOut {
					views := make([]reviewView, 0, len(list))
					for _, review := range list {
						views = append(views, newReviewView(review))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No reviews")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, review := range list {
					rows = append(rows, reviewRow(review))
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "State", "Confidence", "Guess", "Movie", "Text"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state: unprocessed, processed, augmented")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum reviews to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func reviewRow(review reviews.Review) []string {
	confidence, guess, movie := "-", "-", "-"
	if aug := review.Augmentation; aug != nil {
		confidence = string(aug.Confidence)
		if aug.Title != "" {
			guess = aug.Title
		}
		if aug.MovieID != "" {
			movie = aug.MovieID
		}
	}
	return []string{review.ID, string(review.State), confidence, guess, movie, preview(reviewText(review), 40)}
}

func reviewText(review reviews.Review) string {
	if text := strings.TrimSpace(review.Text); text != "" {
		return text
	}
	return strings.TrimSpace(review.Summary)
}

func preview(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

type reviewView struct {
	ID           string         `json:"id"`
	State        string         `json:"state"`
	Tags         []string       `json:"tags"`
	Text         string         `json:"text,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	Augmentation map[string]any `json:"augmentation,omitempty"`
}

func newReviewView(review reviews.Review) reviewView {
	view := reviewView{
		ID:      review.ID,
		State:   string(review.State),
		Tags:    review.Tags,
		Text:    review.Text,
		Summary: review.Summary,
	}
	if view.Tags == nil {
		view.Tags = []string{}
	}
	if review.Augmentation != nil {
		view.Augmentation = review.Augmentation.Fields()
	}
	return view
}

func newReviewsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one review and its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withReviews(cmd.Context(), reviews.Options{}, func(repo reviews.Repository) error {
				review, err := repo.Get(cmd.Context(), id)
				if errors.Is(err, reviews.ErrNotFound) {
					return fmt.Errorf("review %s not found", id)
				}
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, newReviewView(*review))
				}
				out := cmd.OutOrStdout()
				pairs := [][2]string{
					{"ID", review.ID},
					{"State", string(review.State)},
					{"Tags", strings.Join(review.Tags, ", ")},
				}
				if !review.UpdatedAt.IsZero() {
					pairs = append(pairs, [2]string{"Updated", review.UpdatedAt.Format(time.RFC3339)})
				}
				if aug := review.Augmentation; aug != nil {
					pairs = append(pairs,
						[2]string{"Confidence", string(aug.Confidence)},
						[2]string{"Processed", time.Unix(aug.ProcessedAt, 0).UTC().Format(time.RFC3339)},
					)
					if aug.Title != "" {
						pairs = append(pairs, [2]string{"Guessed title", aug.Title})
					}
					if aug.Query != "" {
						pairs = append(pairs, [2]string{"Search query", aug.Query})
					}
					if aug.MovieID != "" {
						pairs = append(pairs, [2]string{"Movie", aug.MovieID})
					}
				}
				fmt.Fprintln(out, keyValueTable(pairs))
				if review.Summary != "" {
					fmt.Fprintf(out, "\nSummary:\n%s\n", review.Summary)
				}
				if review.Text != "" {
					fmt.Fprintf(out, "\nText:\n%s\n", review.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newReviewsStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count reviews by outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReviews(cmd.Context(), reviews.Options{}, func(repo reviews.Repository) error {
				stats, err := repo.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]int{
						"total":       stats.Total,
						"unprocessed": stats.Unprocessed,
						"high":        stats.High,
						"medium":      stats.Medium,
						"low":         stats.Low,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), keyValueTable([][2]string{
					{"Total", fmt.Sprintf("%d", stats.Total)},
					{"Unprocessed", fmt.Sprintf("%d", stats.Unprocessed)},
					{"Matched (high)", fmt.Sprintf("%d", stats.High)},
					{"No match (medium)", fmt.Sprintf("%d", stats.Medium)},
					{"Low confidence", fmt.Sprintf("%d", stats.Low)},
				}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

// reviewRecord is one line of a review import file. Both the hosted record
// field names and short aliases are accepted.
type reviewRecord struct {
	ObjectID   string   `json:"objectID"`
	ID         string   `json:"id"`
	ReviewText string   `json:"review_text"`
	Text       string   `json:"text"`
	Summary    string   `json:"summary"`
	HostTags   []string `json:"_tags"`
	Tags       []string `json:"tags"`
}

func (r reviewRecord) review() reviews.Review {
	review := reviews.Review{
		ID:      firstNonEmpty(r.ObjectID, r.ID),
		Text:    firstNonEmpty(r.ReviewText, r.Text),
		Summary: strings.TrimSpace(r.Summary),
		State:   reviews.StateUnprocessed,
		Tags:    reviews.MergeTags(r.HostTags, r.Tags...),
	}
	return review
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func newReviewsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Load reviews from a JSON Lines file",
		Long: "Each line is an object with objectID (or id), review_text (or text), and an optional\n" +
			"summary and _tags. Existing reviews get their text updated and keep their outcome.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readJSONL[reviewRecord](args[0])
			if err != nil {
				return err
			}
			list := make([]reviews.Review, 0, len(records))
			missing := 0
			for _, record := range records {
				review := record.review()
				if review.ID == "" {
					missing++
					continue
				}
				list = append(list, review)
			}
			return ctx.withReviews(cmd.Context(), reviews.Options{}, func(repo reviews.Repository) error {
				imported, err := repo.Import(cmd.Context(), list)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d reviews from %s\n", imported, args[0])
				if missing > 0 {
					fmt.Fprintf(out, "Skipped %d records without an ID\n", missing)
				}
				return nil
			})
		},
	}
}

func newReviewsResetCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reset [id...]",
		Short: "Clear outcomes so reviews are selected again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass review IDs or --all, not both")
			}
			if !all && len(args) == 0 {
				return errors.New("review ID required (or --all)")
			}
			return ctx.withReviews(cmd.Context(), reviews.Options{}, func(repo reviews.Repository) error {
				out := cmd.OutOrStdout()
				if all {
					if err := repo.Reset(cmd.Context(), ""); err != nil {
						return err
					}
					fmt.Fprintln(out, "Reset all reviews")
					return nil
				}
				for _, id := range args {
					id = strings.TrimSpace(id)
					if err := repo.Reset(cmd.Context(), id); err != nil {
						if errors.Is(err, reviews.ErrNotFound) {
							return fmt.Errorf("review %s not found", id)
						}
						return err
					}
				}
				fmt.Fprintf(out, "Reset %d reviews\n", len(args))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reset every review")
	return cmd
}
