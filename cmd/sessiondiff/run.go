package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/godsownf/sessiondiff/pkg/config"
	"github.com/godsownf/sessiondiff/pkg/observability"
	"github.com/godsownf/sessiondiff/pkg/orchestrator"
	"github.com/godsownf/sessiondiff/pkg/session"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured session batch and capture each session's traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd)
		},
	}
}

func runBatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	effective, err := effectiveConfig(cfg, logger)
	if err != nil {
		return err
	}

	runOpts := &playwright.RunOptions{Verbose: false, Stdout: io.Discard, Stderr: io.Discard}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("installing playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("starting playwright: %w", err)
	}
	defer func() {
		if err := pw.Stop(); err != nil {
			logger.Warn("Playwright stop failed", zap.Error(err))
		}
	}()

	configs := make([]session.Config, 0, effective.Accounts)
	for i := 1; i <= effective.Accounts; i++ {
		configs = append(configs, session.BuildConfig(effective, strconv.Itoa(i)))
	}

	orch := orchestrator.New(func(c session.Config) orchestrator.Runner {
		return session.NewRunner(pw, c, logger)
	}, logger)

	results, err := orch.Run(ctx, configs, effective.MaxConcurrency)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Succeeded {
			logger.Info("Session result",
				zap.String("account", res.AccountID),
				zap.Int("captured_requests", len(res.Requests)))
		} else {
			logger.Warn("Session result",
				zap.String("account", res.AccountID), zap.Error(res.Err))
		}
	}

	if effective.KeepAlive {
		orchestrator.WaitForShutdown(ctx, logger)
	}
	return nil
}

// effectiveConfig merges the target host's policy overrides into a copy of
// the base configuration. A missing policy file is normal; a malformed one
// is logged and the base configuration kept.
func effectiveConfig(base *config.Config, logger *zap.Logger) (*config.Config, error) {
	u, err := url.Parse(base.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("parsing target URL: %w", err)
	}
	policy, err := config.LoadHostPolicy(base.Policy.Dir, u.Hostname())
	if err != nil {
		logger.Warn("Host policy unusable, using base configuration", zap.Error(err))
		return base, nil
	}
	if policy == nil {
		return base, nil
	}
	merged, unknown := base.ForHost(policy)
	for _, key := range unknown {
		logger.Warn("Unknown policy key ignored",
			zap.String("host", u.Hostname()), zap.String("key", key))
	}
	logger.Info("Host policy applied",
		zap.String("host", u.Hostname()), zap.Int("overrides", len(policy)))
	return &merged, nil
}
