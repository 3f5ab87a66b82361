package gate

import (
	"fmt"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region gate
// Gate decides whether an action is feasible against the current episode
// state. It never mutates state.
type Gate struct {
	cat *catalog.Catalog
}

// NewGate creates a gate over the given catalog.
func NewGate(cat *catalog.Catalog) *Gate {
	return &Gate{cat: cat}
}

// Classify maps an action index to pass, build or invalid.
func (g *Gate) Classify(action int) Kind {
	switch {
	case action == g.cat.PassAction():
		return KindPass
	case action >= 0 && action < g.cat.NumSites():
		return KindBuild
	default:
		return KindInvalid
	}
}

// Evaluate runs every build check in order. The checks are independent, so
// the verdict is their conjunction and every failure is reported.
func (g *Gate) Evaluate(st *state.EpisodeState, action int) Decision {
	kind := g.Classify(action)
	switch kind {
	case KindInvalid:
		return Decision{Kind: kind}
	case KindPass:
		return Decision{Kind: kind, Feasible: true}
	}

	site := g.cat.Site(action)
	ci := site.Category
	limits := g.cat.Limits()
	var vetoes []VetoSignal

	// 1. Built flag
	if st.Built[action] {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoAlreadyBuilt,
			Reason: fmt.Sprintf("%s already built this episode", site.Key()),
		})
	}

	// 2. Overall budget
	if site.OverallCost > st.OverallBudget {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoOverallBudget,
			Reason: fmt.Sprintf("overall cost %.2f exceeds remaining %.2f", site.OverallCost, st.OverallBudget),
		})
	}

	// 3. Regional budget
	if site.RegionalCostImpact > st.RegionalBudget[ci] {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoRegionalBudget,
			Reason: fmt.Sprintf("regional cost %.2f exceeds %s remaining %.2f",
				site.RegionalCostImpact, site.CategoryName, st.RegionalBudget[ci]),
		})
	}

	// 4. Projects per period
	if st.ProjectsThisPeriod >= limits.ProjectsPerPeriod {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoProjectsPerPeriod,
			Reason: fmt.Sprintf("%d projects this period, limit %d", st.ProjectsThisPeriod, limits.ProjectsPerPeriod),
		})
	}

	// 5. Sites in category per period
	if st.BuiltThisPeriod[ci] >= limits.SitesInCategoryPerPeriod {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoCategoryPerPeriod,
			Reason: fmt.Sprintf("%d sites in %s this period, limit %d",
				st.BuiltThisPeriod[ci], site.CategoryName, limits.SitesInCategoryPerPeriod),
		})
	}

	// 6. Sites in category over the episode
	if st.BuiltTotal[ci] >= limits.TotalSitesInCategory {
		vetoes = append(vetoes, VetoSignal{
			Type: VetoCategoryTotalLimit,
			Reason: fmt.Sprintf("%d sites in %s this episode, limit %d",
				st.BuiltTotal[ci], site.CategoryName, limits.TotalSitesInCategory),
		})
	}

	return Decision{
		Kind:     kind,
		Feasible: len(vetoes) == 0,
		Vetoes:   vetoes,
	}
}

// Feasible reports only the verdict of Evaluate.
func (g *Gate) Feasible(st *state.EpisodeState, action int) bool {
	return g.Evaluate(st, action).Feasible
}

// Mask returns the feasibility of every action in [0, ActionSpaceSize).
// The pass action is always true.
func (g *Gate) Mask(st *state.EpisodeState) []bool {
	mask := make([]bool, g.cat.ActionSpaceSize())
	for a := range mask {
		mask[a] = g.Feasible(st, a)
	}
	return mask
}

// #endregion gate
