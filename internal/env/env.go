package env

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/gate"
	"github.com/danielpatrickdp/siteplan/internal/projection"
	"github.com/danielpatrickdp/siteplan/internal/state"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// ErrNeedsReset is returned by Step before the first Reset and after the
// episode has terminated.
var ErrNeedsReset = errors.New("episode needs reset")

// #region types
// Observation is the normalized state vector.
type Observation = []float32

// StepResult is the outcome of one Step. Truncated is always false.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Environment is the capability set a training or inference driver needs.
type Environment interface {
	Reset(seed *int64) (Observation, Info)
	Step(action int) (StepResult, error)
	ActionSpaceSize() int
	ObservationSize() int
}

// EpisodeMeta describes an episode as it starts. Rewards is the schedule the
// episode is scored with, so a recording can be replayed faithfully.
type EpisodeMeta struct {
	EpisodeID   string
	CatalogHash string
	Seed        *int64
	Rewards     update.RewardConfig
}

// Recorder receives the lifecycle of every episode. Implementations must be
// safe for concurrent use when shared between environments.
type Recorder interface {
	EpisodeStarted(meta EpisodeMeta) error
	StepTaken(episodeID string, stepIndex, action int, res StepResult) error
	EpisodeEnded(episodeID string, steps int, totalReward float64, terminated bool) error
}

// #endregion types

// #region env
// Env is one episode controller. It owns its state exclusively and is not
// safe for concurrent use; run one Env per goroutine.
type Env struct {
	cat      *catalog.Catalog
	engine   *update.Engine
	st       *state.EpisodeState
	rewards  update.RewardConfig
	logger   *zap.Logger
	recorder Recorder

	episodeID   string
	seed        *int64
	steps       int
	totalReward float64
	active      bool
}

// Option configures an Env.
type Option func(*Env)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) { e.logger = l }
}

// WithRecorder attaches a recorder that sees every episode and step.
func WithRecorder(r Recorder) Option {
	return func(e *Env) { e.recorder = r }
}

// WithRewards overrides the default reward schedule.
func WithRewards(cfg update.RewardConfig) Option {
	return func(e *Env) { e.rewards = cfg }
}

// New creates an environment over cat. Call Reset before Step.
func New(cat *catalog.Catalog, opts ...Option) *Env {
	e := &Env{
		cat:     cat,
		st:      state.NewEpisodeState(cat),
		rewards: update.DefaultRewardConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.engine = update.NewEngine(cat, e.rewards)
	return e
}

func (e *Env) Catalog() *catalog.Catalog { return e.cat }

func (e *Env) ActionSpaceSize() int { return e.cat.ActionSpaceSize() }

func (e *Env) ObservationSize() int { return e.cat.ObservationSize() }

// EpisodeID identifies the current episode; empty before the first Reset.
func (e *Env) EpisodeID() string { return e.episodeID }

// Done reports whether Step currently requires a Reset.
func (e *Env) Done() bool { return !e.active }

// ActionMask reports which actions are currently feasible.
func (e *Env) ActionMask() []bool { return e.engine.Gate().Mask(e.st) }

// State returns a copy of the episode state.
func (e *Env) State() *state.EpisodeState { return e.st.Clone() }

// Rewards returns the reward schedule in use.
func (e *Env) Rewards() update.RewardConfig { return e.rewards }

// Close ends the active episode as abandoned. It is a no-op when no episode
// is active; a later Reset starts a new one.
func (e *Env) Close() {
	if e.active {
		e.endEpisode(false)
	}
}

// #endregion env

// #region reset
// Reset starts a new episode. The environment is deterministic; seed is only
// recorded with the episode.
func (e *Env) Reset(seed *int64) (Observation, Info) {
	e.Close()

	e.st.Reset(e.cat)
	e.episodeID = uuid.New().String()
	e.seed = seed
	e.steps = 0
	e.totalReward = 0
	e.active = true

	if e.recorder != nil {
		meta := EpisodeMeta{EpisodeID: e.episodeID, CatalogHash: e.cat.Hash(), Seed: seed, Rewards: e.rewards}
		if err := e.recorder.EpisodeStarted(meta); err != nil {
			e.recorderFailed("episode start", err)
		}
	}
	e.logger.Debug("episode reset", zap.String("episode_id", e.episodeID))

	return projection.Project(e.cat, e.st), snapshot(e.cat, e.st)
}

// #endregion reset

// #region step
// Step applies one action. Feasibility violations and out-of-range indices
// are reported through the reward and Info, not as errors; the only error is
// ErrNeedsReset.
func (e *Env) Step(action int) (StepResult, error) {
	if !e.active {
		return StepResult{}, fmt.Errorf("step %d: %w", action, ErrNeedsReset)
	}

	res := e.engine.Apply(e.st, action)
	e.observe(res)

	out := StepResult{
		Observation: projection.Project(e.cat, e.st),
		Reward:      res.Reward,
		Terminated:  res.Terminated,
		Truncated:   false,
		Info:        snapshot(e.cat, e.st).withResult(res),
	}

	stepIndex := e.steps
	e.steps++
	e.totalReward += res.Reward

	if e.recorder != nil {
		if err := e.recorder.StepTaken(e.episodeID, stepIndex, action, out); err != nil {
			e.recorderFailed("step", err)
		}
	}
	if res.Terminated {
		e.endEpisode(true)
	}
	return out, nil
}

func (e *Env) observe(res update.Result) {
	switch {
	case res.Kind == gate.KindInvalid:
		stepsTotal.WithLabelValues("invalid").Inc()
		e.logger.Warn("invalid action",
			zap.String("episode_id", e.episodeID),
			zap.Int("action", res.Action),
			zap.Error(res.Err))
	case res.Kind == gate.KindPass:
		stepsTotal.WithLabelValues("pass").Inc()
		e.logger.Debug("pass",
			zap.String("episode_id", e.episodeID),
			zap.Int("period", e.st.Period))
	case res.Effective:
		stepsTotal.WithLabelValues("build").Inc()
		e.logger.Debug("build",
			zap.String("episode_id", e.episodeID),
			zap.String("site", res.Site.Key()),
			zap.Float64("reward", res.Reward))
	default:
		stepsTotal.WithLabelValues("infeasible").Inc()
		for _, v := range res.Vetoes {
			vetoesTotal.WithLabelValues(string(v.Type)).Inc()
		}
		e.logger.Debug("infeasible build",
			zap.String("episode_id", e.episodeID),
			zap.Int("action", res.Action),
			zap.Int("vetoes", len(res.Vetoes)))
	}
}

// #endregion step

// #region episode-end
func (e *Env) endEpisode(terminated bool) {
	e.active = false
	end := "terminated"
	if !terminated {
		end = "abandoned"
	}
	episodesTotal.WithLabelValues(end).Inc()
	episodeReturn.Observe(e.totalReward)

	if e.recorder != nil {
		if err := e.recorder.EpisodeEnded(e.episodeID, e.steps, e.totalReward, terminated); err != nil {
			e.recorderFailed("episode end", err)
		}
	}
	e.logger.Info("episode finished",
		zap.String("episode_id", e.episodeID),
		zap.String("end", end),
		zap.Int("steps", e.steps),
		zap.Float64("return", e.totalReward))
}

func (e *Env) recorderFailed(stage string, err error) {
	recorderErrors.Inc()
	e.logger.Warn("recorder failed",
		zap.String("episode_id", e.episodeID),
		zap.String("stage", stage),
		zap.Error(err))
}

// #endregion episode-end
