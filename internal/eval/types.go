package eval

// #region eval-config
// EvalConfig holds the tolerances for transition checks.
type EvalConfig struct {
	BudgetTolerance    float64 // allowed float drift when comparing budget debits
	ObservationCeiling float32 // warn if any observation element exceeds this
}

// DefaultEvalConfig returns the defaults used by rollouts.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		BudgetTolerance:    1e-6,
		ObservationCeiling: 1.0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result. Informational metrics never
// fail a transition.
type EvalMetric struct {
	Name          string
	Value         float64
	Pass          bool
	Informational bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the verdict for one transition.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// EpisodeReport aggregates the verdicts of one episode.
type EpisodeReport struct {
	Steps       int
	Failures    int
	Warnings    int
	TotalReward float64
	Truncated   bool // stopped at the step cap and closed
	Reasons     []string
}

// #endregion eval-result
