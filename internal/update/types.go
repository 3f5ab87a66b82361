package update

import (
	"errors"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/gate"
)

// ErrInvalidAction marks an action index outside [0, pass action].
var ErrInvalidAction = errors.New("invalid action index")

// #region reward-config
// RewardConfig holds the fixed rewards of non-build outcomes.
type RewardConfig struct {
	InvalidActionPenalty float64 `json:"invalid_action_penalty"` // reward for an out-of-range index
	InfeasiblePenalty    float64 `json:"infeasible_penalty"`     // reward for a build that fails a constraint
	PassReward           float64 `json:"pass_reward"`
}

// DefaultRewardConfig returns the standard reward schedule.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		InvalidActionPenalty: -100,
		InfeasiblePenalty:    -1,
		PassReward:           0,
	}
}

// #endregion reward-config

// #region result
// Result describes one applied transition.
//
// Valid and Effective are kept apart: Valid means the index was inside the
// action space, Effective means the state changed because of a build. A pass
// is valid but not effective.
type Result struct {
	Action      int
	Kind        gate.Kind
	Reward      float64
	Terminated  bool
	Truncated   bool // never set; kept for the step contract
	Valid       bool
	Effective   bool
	Site        *catalog.Site // built site, nil unless Effective
	Vetoes      []gate.VetoSignal
	Description string
	Err         error // non-nil only for invalid indices
}

// ActionValid is the single flag surfaced in diagnostics: a successful build
// or a pass.
func (r Result) ActionValid() bool {
	return r.Effective || r.Kind == gate.KindPass
}

// #endregion result
