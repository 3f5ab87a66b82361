package logging

import "time"

// #region transition-entry
// TransitionEntry is a single row in the transitions table.
type TransitionEntry struct {
	EpisodeID   string
	StepIndex   int
	Action      int
	Description string // "BUILD Category-SiteType" | "PASS" | "N/A"
	Reward      float64
	Terminated  bool
	ActionValid bool
	Observation []float32
	InfoJSON    string
	CreatedAt   time.Time
}

// #endregion transition-entry
