package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/config"
	"github.com/danielpatrickdp/siteplan/internal/env"
	"github.com/danielpatrickdp/siteplan/internal/eval"
	"github.com/danielpatrickdp/siteplan/internal/logging"
	"github.com/danielpatrickdp/siteplan/internal/policy"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region main
func main() {
	flags := pflag.NewFlagSet("rollout", pflag.ExitOnError)
	configPath := flags.String("config", envOr("SITEPLAN_CONFIG", ""), "service config file (yaml)")
	flags.String("db-path", "", "SQLite file to record episodes into; empty disables")
	flags.String("catalog-path", "", "catalog YAML/JSON; empty uses the embedded sample")
	flags.String("log-level", "", "debug | info | warn | error")
	policyName := flags.String("policy", "greedy", "greedy | random | random-explore")
	episodes := flags.Int("episodes", 10, "episodes to run")
	workers := flags.Int("workers", 4, "episodes run in parallel")
	seed := flags.Int64("seed", 1, "base seed; episode i uses seed+i")
	maxSteps := flags.Int("max-steps", 1000, "step cap per episode")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	opts := rolloutOptions{
		policy:   *policyName,
		episodes: *episodes,
		workers:  *workers,
		seed:     *seed,
		maxSteps: *maxSteps,
	}
	code, err := run(cfg, opts, logger)
	if err != nil {
		logger.Error("rollout failed", zap.Error(err))
		os.Exit(2)
	}
	os.Exit(code)
}

// #endregion main

// #region run
type rolloutOptions struct {
	policy   string
	episodes int
	workers  int
	seed     int64
	maxSteps int
}

func run(cfg config.ServiceConfig, opts rolloutOptions, logger *zap.Logger) (int, error) {
	var cat *catalog.Catalog
	catalogYAML := catalog.SampleYAML()
	if cfg.CatalogPath == "" {
		cat = catalog.Sample()
	} else {
		data, err := os.ReadFile(cfg.CatalogPath)
		if err != nil {
			return 2, fmt.Errorf("read catalog: %w", err)
		}
		if cat, err = catalog.Parse(data); err != nil {
			return 2, fmt.Errorf("catalog %s: %w", cfg.CatalogPath, err)
		}
		catalogYAML = data
	}
	if _, err := policy.ByName(opts.policy, cat, 0); err != nil {
		return 2, err
	}

	envOpts := []env.Option{env.WithLogger(logger), env.WithRewards(cfg.Rewards())}
	if cfg.DBPath != "" {
		store, err := state.NewStore(cfg.DBPath)
		if err != nil {
			return 2, fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		envOpts = append(envOpts, env.WithRecorder(logging.NewRecorder(store, catalogYAML, opts.policy)))
	}

	harness := eval.NewEvalHarness(cat, eval.DefaultEvalConfig())
	reports := make([]eval.EpisodeReport, opts.episodes)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, opts.workers))
	for i := 0; i < opts.episodes; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			episodeSeed := opts.seed + int64(i)
			p, _ := policy.ByName(opts.policy, cat, episodeSeed)
			e := env.New(cat, envOpts...)
			report, err := harness.RunEpisode(e, &episodeSeed, opts.maxSteps, func(env.Info) int {
				return p.Act(e.ActionMask())
			})
			if err != nil {
				return fmt.Errorf("episode %d: %w", i, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 2, err
	}

	return printReports(reports), nil
}

// #endregion run

// #region output
func printReports(reports []eval.EpisodeReport) int {
	fmt.Printf("%-8s| %-6s| %-10s| %-9s| %s\n", "Episode", "Steps", "Return", "Failures", "Warnings")
	fmt.Printf("%-8s+%-7s+%-11s+%-10s+%s\n", "--------", "-------", "-----------", "----------", "---------")

	var total float64
	failures, truncated := 0, 0
	for i, r := range reports {
		capped := ""
		if r.Truncated {
			capped = "  (capped)"
			truncated++
		}
		fmt.Printf("%-8d| %-6d| %-10.2f| %-9d| %d%s\n", i, r.Steps, r.TotalReward, r.Failures, r.Warnings, capped)
		for _, reason := range r.Reasons {
			fmt.Printf("          %s\n", reason)
		}
		total += r.TotalReward
		failures += r.Failures
	}
	mean := 0.0
	if len(reports) > 0 {
		mean = total / float64(len(reports))
	}
	fmt.Printf("\nSummary: %d episodes, mean return %.2f, %d invariant failures, %d capped at --max-steps\n",
		len(reports), mean, failures, truncated)

	if failures > 0 {
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
