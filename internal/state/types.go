package state

import (
	"time"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
)

// #region episode-state
// EpisodeState is the mutable per-episode record. Slices are sized from the
// catalog once and reset in place; they are never shared between episodes.
type EpisodeState struct {
	Period             int
	OverallBudget      float64
	RegionalBudget     []float64 // by category index
	ProjectsThisPeriod int
	BuiltThisPeriod    []int  // by category index, zeroed on pass
	BuiltTotal         []int  // by category index, never zeroed
	Built              []bool // by site index, set once per episode
}

// NewEpisodeState allocates a state sized for cat and resets it.
func NewEpisodeState(cat *catalog.Catalog) *EpisodeState {
	s := &EpisodeState{
		RegionalBudget:  make([]float64, cat.NumCategories()),
		BuiltThisPeriod: make([]int, cat.NumCategories()),
		BuiltTotal:      make([]int, cat.NumCategories()),
		Built:           make([]bool, cat.NumSites()),
	}
	s.Reset(cat)
	return s
}

// Reset restores the initial values from cat without reallocating.
func (s *EpisodeState) Reset(cat *catalog.Catalog) {
	s.Period = 0
	s.OverallBudget = cat.InitialOverallBudget()
	s.ProjectsThisPeriod = 0
	for ci := range s.RegionalBudget {
		s.RegionalBudget[ci] = cat.InitialRegionalBudget(ci)
		s.BuiltThisPeriod[ci] = 0
		s.BuiltTotal[ci] = 0
	}
	for i := range s.Built {
		s.Built[i] = false
	}
}

// Clone returns a deep copy.
func (s *EpisodeState) Clone() *EpisodeState {
	return &EpisodeState{
		Period:             s.Period,
		OverallBudget:      s.OverallBudget,
		RegionalBudget:     append([]float64(nil), s.RegionalBudget...),
		ProjectsThisPeriod: s.ProjectsThisPeriod,
		BuiltThisPeriod:    append([]int(nil), s.BuiltThisPeriod...),
		BuiltTotal:         append([]int(nil), s.BuiltTotal...),
		Built:              append([]bool(nil), s.Built...),
	}
}

// #endregion episode-state

// #region episode-record
// EpisodeRecord is a recorded episode row.
type EpisodeRecord struct {
	EpisodeID   string
	CatalogHash string
	ConfigYAML  string
	Seed        *int64
	Policy      string
	RewardsJSON string // reward schedule the episode was scored with; empty means defaults
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the episode is open
	Steps       int
	TotalReward float64
	Terminated  bool
}

// #endregion episode-record

// #region transition-record
// TransitionRecord is one recorded step of an episode.
type TransitionRecord struct {
	EpisodeID   string
	StepIndex   int
	Action      int
	Description string
	Reward      float64
	Terminated  bool
	ActionValid bool
	Observation []float32
	InfoJSON    string
	CreatedAt   time.Time
}

// #endregion transition-record
