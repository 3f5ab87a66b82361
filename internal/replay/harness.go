package replay

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/env"
	"github.com/danielpatrickdp/siteplan/internal/eval"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// #region types
// Step is one recorded action with the outcome it is expected to produce.
// Nil expectations are not checked.
type Step struct {
	Action              int
	ExpectedReward      *float64
	ExpectedTerminated  *bool
	ExpectedDescription string
}

// ReplayConfig bundles the reward schedule and eval tolerances for a run.
type ReplayConfig struct {
	Rewards    update.RewardConfig
	EvalConfig eval.EvalConfig
}

// DefaultReplayConfig returns the environment's defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Rewards:    update.DefaultRewardConfig(),
		EvalConfig: eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures one replayed step.
type ReplayResult struct {
	StepIndex   int
	Action      int
	Outcome     string // "build" | "infeasible" | "pass" | "invalid"
	Description string
	Reward      float64
	Terminated  bool
	Info        env.Info
	Eval        eval.EvalResult

	// Mismatch is empty when every expectation held.
	Mismatch string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps   int
	Builds       int
	Infeasible   int
	Passes       int
	Invalid      int
	TotalReward  float64
	Mismatches   int
	EvalFailures int
	Terminated   bool
}

// #endregion types

// #region replay
// Replay runs steps through a fresh environment over cat. It stops at the
// first terminal step; any steps left over are reported as an error along
// with the results so far.
func Replay(cat *catalog.Catalog, steps []Step, config ReplayConfig) ([]ReplayResult, error) {
	e := env.New(cat, env.WithRewards(config.Rewards))
	harness := eval.NewEvalHarness(cat, config.EvalConfig)
	_, prev := e.Reset(nil)

	results := make([]ReplayResult, 0, len(steps))
	for i, s := range steps {
		res, err := e.Step(s.Action)
		if err != nil {
			return results, fmt.Errorf("replay step %d: %w", i, err)
		}

		r := ReplayResult{
			StepIndex:   i,
			Action:      s.Action,
			Outcome:     outcome(cat, s.Action, res),
			Description: res.Info.ActionDescription,
			Reward:      res.Reward,
			Terminated:  res.Terminated,
			Info:        res.Info,
			Eval:        harness.Run(prev, s.Action, res),
		}
		r.Mismatch = compare(s, r)
		results = append(results, r)

		if res.Terminated && i < len(steps)-1 {
			return results, fmt.Errorf("replay: episode terminated at step %d with %d steps left: %w",
				i, len(steps)-1-i, env.ErrNeedsReset)
		}
		prev = res.Info
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case "build":
			s.Builds++
		case "infeasible":
			s.Infeasible++
		case "pass":
			s.Passes++
		case "invalid":
			s.Invalid++
		}
		s.TotalReward += r.Reward
		if r.Mismatch != "" {
			s.Mismatches++
		}
		if !r.Eval.Passed {
			s.EvalFailures++
		}
		s.Terminated = r.Terminated
	}
	return s
}

// #endregion replay

// #region helpers
func outcome(cat *catalog.Catalog, action int, res env.StepResult) string {
	switch {
	case action == cat.PassAction():
		return "pass"
	case action < 0 || action > cat.PassAction():
		return "invalid"
	case res.Info.SiteBuiltKey != nil:
		return "build"
	default:
		return "infeasible"
	}
}

func compare(s Step, r ReplayResult) string {
	if s.ExpectedReward != nil && math.Abs(*s.ExpectedReward-r.Reward) > 1e-9 {
		return fmt.Sprintf("reward %.4f, expected %.4f", r.Reward, *s.ExpectedReward)
	}
	if s.ExpectedTerminated != nil && *s.ExpectedTerminated != r.Terminated {
		return fmt.Sprintf("terminated %v, expected %v", r.Terminated, *s.ExpectedTerminated)
	}
	if s.ExpectedDescription != "" && s.ExpectedDescription != r.Description {
		return fmt.Sprintf("description %q, expected %q", r.Description, s.ExpectedDescription)
	}
	return ""
}

// #endregion helpers
