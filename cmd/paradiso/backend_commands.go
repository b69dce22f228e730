package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"paradiso/internal/config"
	"paradiso/internal/reconcile"
	"paradiso/internal/textgen"
)

// checkPrompt is the throwaway request used to prove the backend answers.
var checkPrompt = textgen.Prompt{
	Name:         "Paradiso - Backend Check",
	Instructions: "Reply with the single word OK.",
}

func newBackendCommand(ctx *commandContext) *cobra.Command {
	backendCmd := &cobra.Command{
		Use:   "backend",
		Short: "Set up and verify the text-generation backend",
	}
	backendCmd.AddCommand(newBackendSetupCommand(ctx))
	backendCmd.AddCommand(newBackendCheckCommand(ctx))
	return backendCmd
}

func newBackendSetupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Register prompts and data sources with a hosted backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.UsesLocalBackend() || cfg.Backend.Provider != config.ProviderAlgolia {
				fmt.Fprintf(out, "Backend %s needs no registration\n", textgen.Describe(cfg))
				return nil
			}
			backend, err := newBackend(cmd.Context(), cfg, ctx.commandLogger())
			if err != nil {
				return err
			}
			if closer, ok := backend.(io.Closer); ok {
				defer closer.Close()
			}
			preparer, ok := backend.(textgen.Preparer)
			if !ok {
				fmt.Fprintf(out, "Backend %s needs no registration\n", textgen.Describe(cfg))
				return nil
			}
			prompts := reconcile.Prompts()
			if err := preparer.Prepare(cmd.Context(), prompts...); err != nil {
				return fmt.Errorf("register backend: %w", err)
			}
			fmt.Fprintf(out, "Registered %d prompts and the review and catalog data sources\n", len(prompts))
			return nil
		},
	}
}

func newBackendCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Send a test request to the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			label := textgen.Describe(cfg)

			backend, err := newBackend(cmd.Context(), cfg, ctx.commandLogger())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Backend", statusError, err.Error(), colorize))
				return err
			}
			if closer, ok := backend.(io.Closer); ok {
				defer closer.Close()
			}
			reply, err := backend.Generate(cmd.Context(), textgen.Request{
				Prompt: checkPrompt,
				Query:  "ping",
				Source: textgen.SourceCatalog,
			})
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Backend", statusError, err.Error(), colorize))
				return fmt.Errorf("backend check failed: %w", err)
			}
			fmt.Fprintln(out, renderStatusLine("Backend", statusOK, label, colorize))
			fmt.Fprintf(out, "%sReply: %s\n", statusIndent, preview(reply, 60))
			return nil
		},
	}
}
