package update

import (
	"fmt"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/gate"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region engine
// Engine is the transition function of the environment. It is the only code
// that mutates an EpisodeState after reset.
type Engine struct {
	cat    *catalog.Catalog
	gate   *gate.Gate
	config RewardConfig
}

// NewEngine creates an engine for cat with the given reward schedule.
func NewEngine(cat *catalog.Catalog, config RewardConfig) *Engine {
	return &Engine{cat: cat, gate: gate.NewGate(cat), config: config}
}

// Gate exposes the validator the engine consults.
func (e *Engine) Gate() *gate.Gate { return e.gate }

// Apply validates action against st and applies it in place.
func (e *Engine) Apply(st *state.EpisodeState, action int) Result {
	decision := e.gate.Evaluate(st, action)

	switch decision.Kind {
	case gate.KindInvalid:
		return Result{
			Action:      action,
			Kind:        gate.KindInvalid,
			Reward:      e.config.InvalidActionPenalty,
			Terminated:  true,
			Description: "N/A",
			Err:         fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidAction, action, e.cat.PassAction()),
		}

	case gate.KindPass:
		st.Period++
		st.ProjectsThisPeriod = 0
		for ci := range st.BuiltThisPeriod {
			st.BuiltThisPeriod[ci] = 0
		}
		return Result{
			Action:      action,
			Kind:        gate.KindPass,
			Reward:      e.config.PassReward,
			Terminated:  st.Period >= e.cat.Periods(),
			Valid:       true,
			Description: "PASS",
		}
	}

	site := e.cat.Site(action)
	res := Result{
		Action:      action,
		Kind:        gate.KindBuild,
		Valid:       true,
		Description: fmt.Sprintf("BUILD %s-%s", site.CategoryName, site.SiteTypeName),
	}
	if !decision.Feasible {
		res.Reward = e.config.InfeasiblePenalty
		res.Vetoes = decision.Vetoes
		return res
	}

	ci := site.Category
	st.OverallBudget -= site.OverallCost
	st.RegionalBudget[ci] -= site.RegionalCostImpact
	st.ProjectsThisPeriod++
	st.BuiltThisPeriod[ci]++
	st.BuiltTotal[ci]++
	st.Built[action] = true

	res.Reward = site.PriorityScore
	res.Effective = true
	res.Site = &site
	return res
}

// #endregion engine
