package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/state"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. The catalog
// comes from Config (inline JSON), ConfigYAML, or the embedded sample when
// both are empty.
type Fixture struct {
	Description string          `json:"description"`
	EpisodeID   string          `json:"episode_id,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	ConfigYAML  string          `json:"config_yaml,omitempty"`
	Rewards     *FixtureRewards `json:"rewards,omitempty"`
	Steps       []FixtureStep   `json:"steps"`
}

// FixtureRewards mirrors update.RewardConfig with JSON tags.
type FixtureRewards struct {
	InvalidActionPenalty float64 `json:"invalid_action_penalty"`
	InfeasiblePenalty    float64 `json:"infeasible_penalty"`
	PassReward           float64 `json:"pass_reward"`
}

// FixtureStep mirrors replay.Step with JSON tags.
type FixtureStep struct {
	Action              int      `json:"action"`
	ExpectedReward      *float64 `json:"expected_reward,omitempty"`
	ExpectedTerminated  *bool    `json:"expected_terminated,omitempty"`
	ExpectedDescription string   `json:"expected_description,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Catalog builds the catalog the fixture was recorded against.
func (f *Fixture) Catalog() (*catalog.Catalog, error) {
	switch {
	case len(f.Config) > 0:
		// JSON is valid YAML, so the ordered-mapping decoder applies.
		return catalog.Parse(f.Config)
	case f.ConfigYAML != "":
		return catalog.Parse([]byte(f.ConfigYAML))
	default:
		return catalog.Sample(), nil
	}
}

// ToSteps converts the fixture steps to domain steps.
func (f *Fixture) ToSteps() []Step {
	steps := make([]Step, len(f.Steps))
	for i, fs := range f.Steps {
		steps[i] = Step{
			Action:              fs.Action,
			ExpectedReward:      fs.ExpectedReward,
			ExpectedTerminated:  fs.ExpectedTerminated,
			ExpectedDescription: fs.ExpectedDescription,
		}
	}
	return steps
}

// ToReplayConfig returns the defaults with the fixture's rewards applied.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if f.Rewards != nil {
		cfg.Rewards = update.RewardConfig{
			InvalidActionPenalty: f.Rewards.InvalidActionPenalty,
			InfeasiblePenalty:    f.Rewards.InfeasiblePenalty,
			PassReward:           f.Rewards.PassReward,
		}
	}
	return cfg
}

// #endregion fixture-loader

// #region recorded
// FromRecorded builds a fixture from an episode in the store, with every
// recorded reward and termination flag as an expectation.
func FromRecorded(store *state.Store, episodeID string) (*Fixture, error) {
	ep, err := store.GetEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	transitions, err := store.ListTransitions(episodeID)
	if err != nil {
		return nil, err
	}
	if len(transitions) == 0 {
		return nil, fmt.Errorf("episode %s: %w", episodeID, errNoTransitions)
	}

	f := &Fixture{
		Description: fmt.Sprintf("recorded episode %s (policy %q, catalog %s)", ep.EpisodeID, ep.Policy, ep.CatalogHash),
		EpisodeID:   ep.EpisodeID,
		ConfigYAML:  ep.ConfigYAML,
		Steps:       make([]FixtureStep, len(transitions)),
	}
	if ep.RewardsJSON != "" {
		var rewards FixtureRewards
		if err := json.Unmarshal([]byte(ep.RewardsJSON), &rewards); err != nil {
			return nil, fmt.Errorf("episode %s rewards: %w", episodeID, err)
		}
		f.Rewards = &rewards
	}
	for i, tr := range transitions {
		reward, terminated := tr.Reward, tr.Terminated
		f.Steps[i] = FixtureStep{
			Action:              tr.Action,
			ExpectedReward:      &reward,
			ExpectedTerminated:  &terminated,
			ExpectedDescription: tr.Description,
		}
	}
	return f, nil
}

var errNoTransitions = errors.New("no recorded transitions")

// #endregion recorded
