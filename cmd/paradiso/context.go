package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"paradiso/internal/catalog"
	"paradiso/internal/config"
	"paradiso/internal/logging"
	"paradiso/internal/reviews"
	"paradiso/internal/textgen"
)

// newBackend builds the generation backend for a command. Tests replace it.
var newBackend = textgen.New

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// commandLogger is the stderr logger used by administrative commands.
// Reconciliation passes build their own per-run logger instead.
func (c *commandContext) commandLogger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: cfg.Logging.Format})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withReviews(ctx context.Context, opts reviews.Options, fn func(reviews.Repository) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStores(); err != nil {
		return err
	}
	repo, err := reviews.Open(ctx, cfg, opts, c.commandLogger())
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(repo)
}

func (c *commandContext) withCatalog(ctx context.Context, fn func(catalog.Catalog) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateStores(); err != nil {
		return err
	}
	cat, err := catalog.Open(ctx, cfg, c.commandLogger())
	if err != nil {
		return err
	}
	defer cat.Close()
	return fn(cat)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
