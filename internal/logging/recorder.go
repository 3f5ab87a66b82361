package logging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/siteplan/internal/env"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region recorder
// Recorder persists episodes and transitions to a Store. It satisfies
// env.Recorder and may be shared by several environments.
type Recorder struct {
	store      *state.Store
	configYAML string
	policy     string

	// SQLite serializes writers anyway; the lock keeps step rows of one
	// episode from interleaving with its finish.
	mu sync.Mutex
}

var _ env.Recorder = (*Recorder)(nil)

// NewRecorder records into store. configYAML is stored with every episode so
// it can be replayed without the original catalog file.
func NewRecorder(store *state.Store, configYAML []byte, policy string) *Recorder {
	return &Recorder{store: store, configYAML: string(configYAML), policy: policy}
}

func (r *Recorder) EpisodeStarted(meta env.EpisodeMeta) error {
	rewardsJSON, err := json.Marshal(meta.Rewards)
	if err != nil {
		return fmt.Errorf("marshal rewards: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.CreateEpisode(state.EpisodeRecord{
		EpisodeID:   meta.EpisodeID,
		CatalogHash: meta.CatalogHash,
		ConfigYAML:  r.configYAML,
		Seed:        meta.Seed,
		Policy:      r.policy,
		RewardsJSON: string(rewardsJSON),
	})
}

func (r *Recorder) StepTaken(episodeID string, stepIndex, action int, res env.StepResult) error {
	infoJSON, err := json.Marshal(res.Info)
	if err != nil {
		return fmt.Errorf("marshal info: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return LogTransition(r.store.DB(), TransitionEntry{
		EpisodeID:   episodeID,
		StepIndex:   stepIndex,
		Action:      action,
		Description: res.Info.ActionDescription,
		Reward:      res.Reward,
		Terminated:  res.Terminated,
		ActionValid: res.Info.ActionValid,
		Observation: res.Observation,
		InfoJSON:    string(infoJSON),
	})
}

func (r *Recorder) EpisodeEnded(episodeID string, steps int, totalReward float64, terminated bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.FinishEpisode(episodeID, steps, totalReward, terminated)
}

// #endregion recorder
