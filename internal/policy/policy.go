package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
)

// Policy picks the next action from the feasibility mask of the current
// state. Policies are not safe for concurrent use.
type Policy interface {
	Name() string
	Act(mask []bool) int
}

// #region random
// Random picks uniformly among feasible actions. With Explore set it picks
// among the whole action space instead, so infeasible builds occur too.
type Random struct {
	rng     *rand.Rand
	Explore bool
}

// NewRandom creates a seeded random policy.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (p *Random) Name() string {
	if p.Explore {
		return "random-explore"
	}
	return "random"
}

func (p *Random) Act(mask []bool) int {
	if p.Explore {
		return p.rng.IntN(len(mask))
	}
	feasible := make([]int, 0, len(mask))
	for a, ok := range mask {
		if ok {
			feasible = append(feasible, a)
		}
	}
	// The pass action is always feasible, so feasible is never empty.
	return feasible[p.rng.IntN(len(feasible))]
}

// #endregion random

// #region greedy
// Greedy builds the feasible site with the best priority per unit of
// overall cost and passes when no feasible site has a positive score.
type Greedy struct {
	cat *catalog.Catalog
}

func NewGreedy(cat *catalog.Catalog) *Greedy {
	return &Greedy{cat: cat}
}

func (p *Greedy) Name() string { return "greedy" }

func (p *Greedy) Act(mask []bool) int {
	best, bestScore := p.cat.PassAction(), 0.0
	for _, site := range p.cat.Sites() {
		if !mask[site.Index] {
			continue
		}
		score := site.PriorityScore
		if site.OverallCost > 0 {
			score /= site.OverallCost
		}
		if score > bestScore {
			best, bestScore = site.Index, score
		}
	}
	return best
}

// #endregion greedy

// ByName builds one of the baseline policies.
func ByName(name string, cat *catalog.Catalog, seed int64) (Policy, error) {
	switch name {
	case "greedy":
		return NewGreedy(cat), nil
	case "random":
		return NewRandom(seed), nil
	case "random-explore":
		p := NewRandom(seed)
		p.Explore = true
		return p, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
