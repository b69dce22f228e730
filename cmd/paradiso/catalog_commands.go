package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"paradiso/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Search and seed the movie catalog",
	}
	catalogCmd.AddCommand(newCatalogSearchCommand(ctx))
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	return catalogCmd
}

func newCatalogSearchCommand(ctx *commandContext) *cobra.Command {
	var maxHits int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run the candidate search used by reconciliation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return ctx.withCatalog(cmd.Context(), func(cat catalog.Catalog) error {
				candidates, err := cat.Search(cmd.Context(), query, maxHits, catalog.CandidateAttributes)
				if err != nil {
					return err
				}
				if jsonOut {
					if candidates == nil {
						candidates = []catalog.Candidate{}
					}
					return writeJSON(cmd, candidates)
				}
				out := cmd.OutOrStdout()
				if len(candidates) == 0 {
					fmt.Fprintln(out, "No candidates")
					return nil
				}
				rows := make([][]string, 0, len(candidates))
				for _, c := range candidates {
					year := "-"
					if c.Year != nil {
						year = strconv.Itoa(*c.Year)
					}
					rows = append(rows, []string{c.ObjectID, c.Title, year, c.Director, preview(strings.Join(c.Actors, ", "), 40)})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Year", "Director", "Actors"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxHits, "max-hits", catalog.DefaultMaxHits, "Maximum candidates returned")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON")
	return cmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Load movies from a JSON Lines file",
		Long:  "Each line is an object with objectID and title, and optionally director, actors, and year.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movies, err := readJSONL[catalog.Candidate](args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(cmd.Context(), func(cat catalog.Catalog) error {
				importer, ok := cat.(catalog.Importer)
				if !ok {
					cfg, _ := ctx.ensureConfig()
					return fmt.Errorf("catalog store %q is read-only", cfg.Store.Catalog)
				}
				imported, err := importer.Import(cmd.Context(), movies)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d movies from %s\n", imported, args[0])
				return nil
			})
		},
	}
}
