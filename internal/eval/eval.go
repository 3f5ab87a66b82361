package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/env"
)

// #region eval-harness
// EvalHarness checks each transition of an episode against the state
// machine's invariants, using only what the environment reports.
type EvalHarness struct {
	cat    *catalog.Catalog
	config EvalConfig
}

// NewEvalHarness creates a harness for environments built from cat.
func NewEvalHarness(cat *catalog.Catalog, config EvalConfig) *EvalHarness {
	return &EvalHarness{cat: cat, config: config}
}

// Run checks one transition: prev is the Info before the step, action the
// index that was stepped and res what Step returned.
func (h *EvalHarness) Run(prev env.Info, action int, res env.StepResult) EvalResult {
	var metrics []EvalMetric
	var failReasons []string
	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	cur := res.Info
	isPass := action == h.cat.PassAction()
	isInvalid := action < 0 || action > h.cat.PassAction()

	var built *catalog.Site
	if cur.SiteBuiltKey != nil {
		if idx, ok := h.cat.SiteIndex(cur.SiteBuiltKey.Category, cur.SiteBuiltKey.SiteType); ok {
			site := h.cat.Site(idx)
			built = &site
		}
	}

	// 1. Observation length
	check("observation_length", float64(len(res.Observation)),
		len(res.Observation) == h.cat.ObservationSize(),
		fmt.Sprintf("observation length %d, want %d", len(res.Observation), h.cat.ObservationSize()))

	// 2. Overall budget debit
	wantOverall := prev.RemainingOverallBudget
	if built != nil {
		wantOverall -= built.OverallCost
	}
	overallDrift := math.Abs(cur.RemainingOverallBudget - wantOverall)
	check("overall_budget_drift", overallDrift,
		overallDrift <= h.config.BudgetTolerance && cur.RemainingOverallBudget <= prev.RemainingOverallBudget+h.config.BudgetTolerance,
		fmt.Sprintf("overall budget %.2f, want %.2f", cur.RemainingOverallBudget, wantOverall))

	// 3. Regional budget debit, only in the built category
	var regionalDrift float64
	for _, name := range h.cat.Categories() {
		want := prev.RemainingRegionalBudgets[name]
		if built != nil && built.CategoryName == name {
			want -= built.RegionalCostImpact
		}
		regionalDrift = math.Max(regionalDrift, math.Abs(cur.RemainingRegionalBudgets[name]-want))
	}
	check("regional_budget_drift", regionalDrift, regionalDrift <= h.config.BudgetTolerance,
		fmt.Sprintf("regional budgets drifted by %.4f", regionalDrift))

	// 4. Built flags are permanent and at most the built site is new
	var cleared, unexpected int
	for key, was := range prev.SiteBuiltMaskReadable {
		now := cur.SiteBuiltMaskReadable[key]
		switch {
		case was == 1 && now != 1:
			cleared++
		case was == 0 && now == 1 && (built == nil || built.Key() != key):
			unexpected++
		}
	}
	check("built_flags", float64(cleared+unexpected), cleared == 0 && unexpected == 0,
		fmt.Sprintf("%d built flags cleared, %d set without a build", cleared, unexpected))

	// 5. Period counters reset exactly on pass
	wantPeriod := prev.CurrentPeriod
	if isPass {
		wantPeriod++
	}
	countersOK := cur.CurrentPeriod == wantPeriod
	if isPass {
		countersOK = countersOK && cur.ProjectsBuiltThisPeriod == 0
		for _, n := range cur.SitesBuiltInCategoryThisPeriod {
			countersOK = countersOK && n == 0
		}
	}
	for _, name := range h.cat.Categories() {
		want := prev.TotalSitesBuiltInCategory[name]
		if built != nil && built.CategoryName == name {
			want++
		}
		countersOK = countersOK && cur.TotalSitesBuiltInCategory[name] == want
	}
	check("period_counters", float64(cur.CurrentPeriod), countersOK,
		fmt.Sprintf("counters inconsistent after action %d at period %d", action, cur.CurrentPeriod))

	// 6. Termination only on the final pass or an invalid action
	wantTerminated := isInvalid || (isPass && cur.CurrentPeriod >= h.cat.Periods())
	check("termination", boolValue(res.Terminated),
		res.Terminated == wantTerminated && !res.Truncated,
		fmt.Sprintf("terminated=%v truncated=%v, want terminated=%v", res.Terminated, res.Truncated, wantTerminated))

	// 7. Observation ceiling: informational, the unclamped fractions may exceed it
	var peak float32
	for _, v := range res.Observation {
		if v > peak {
			peak = v
		}
	}
	metrics = append(metrics, EvalMetric{
		Name:          "observation_peak",
		Value:         float64(peak),
		Pass:          peak <= h.config.ObservationCeiling,
		Informational: true,
	})

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region episode
// Driver is the subset of env.Env the episode check needs.
type Driver interface {
	Reset(seed *int64) (env.Observation, env.Info)
	Step(action int) (env.StepResult, error)
	Close()
}

// RunEpisode resets e, steps it with next until the episode terminates or
// maxSteps is reached, and checks every transition. An episode cut off by
// maxSteps is closed and reported as Truncated.
func (h *EvalHarness) RunEpisode(e Driver, seed *int64, maxSteps int, next func(env.Info) int) (EpisodeReport, error) {
	var report EpisodeReport
	_, prev := e.Reset(seed)
	for report.Steps < maxSteps {
		action := next(prev)
		res, err := e.Step(action)
		if err != nil {
			return report, fmt.Errorf("step %d: %w", report.Steps, err)
		}
		report.Steps++
		report.TotalReward += res.Reward

		verdict := h.Run(prev, action, res)
		if !verdict.Passed {
			report.Failures++
			report.Reasons = append(report.Reasons, fmt.Sprintf("step %d: %s", report.Steps-1, verdict.Reason))
		}
		for _, m := range verdict.Metrics {
			if m.Informational && !m.Pass {
				report.Warnings++
			}
		}
		if res.Terminated {
			return report, nil
		}
		prev = res.Info
	}
	e.Close()
	report.Truncated = true
	return report, nil
}

// #endregion episode

// #region helpers
func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
