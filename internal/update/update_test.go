package update

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/gate"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

const (
	aAlpha = 0
	bAlpha = 3
	bBeta  = 4
	pass   = 6
)

func newEngine() (*Engine, *state.EpisodeState) {
	cat := catalog.Sample()
	return NewEngine(cat, DefaultRewardConfig()), state.NewEpisodeState(cat)
}

func TestFeasibleBuildDebitsExactly(t *testing.T) {
	e, st := newEngine()
	before := st.Clone()

	res := e.Apply(st, bAlpha)

	if res.Reward != 16 {
		t.Fatalf("expected reward 16, got %f", res.Reward)
	}
	if !res.Valid || !res.Effective || res.Terminated || res.Truncated {
		t.Fatalf("unexpected flags: %+v", res)
	}
	if res.Site == nil || res.Site.Key() != "Category_B/Site_Type_Alpha" {
		t.Fatalf("unexpected built site: %+v", res.Site)
	}
	if res.Description != "BUILD Category_B-Site_Type_Alpha" {
		t.Fatalf("unexpected description %q", res.Description)
	}
	if st.OverallBudget != before.OverallBudget-14352038 {
		t.Fatalf("overall budget %f", st.OverallBudget)
	}
	if st.RegionalBudget[1] != before.RegionalBudget[1]-3075759 {
		t.Fatalf("regional budget %f", st.RegionalBudget[1])
	}
	if st.RegionalBudget[0] != before.RegionalBudget[0] || st.BuiltThisPeriod[0] != 0 || st.BuiltTotal[0] != 0 {
		t.Fatal("other category changed")
	}
	if st.ProjectsThisPeriod != 1 || st.BuiltThisPeriod[1] != 1 || st.BuiltTotal[1] != 1 || !st.Built[bAlpha] {
		t.Fatalf("counters not incremented: %+v", st)
	}
	if !res.ActionValid() {
		t.Fatal("successful build should surface as valid")
	}
}

func TestInfeasibleBuildLeavesStateUntouched(t *testing.T) {
	e, st := newEngine()
	e.Apply(st, bAlpha)
	before := st.Clone()

	res := e.Apply(st, bAlpha)

	if res.Reward != -1 {
		t.Fatalf("expected reward -1, got %f", res.Reward)
	}
	if !res.Valid || res.Effective || res.Terminated || res.Site != nil {
		t.Fatalf("unexpected flags: %+v", res)
	}
	if res.ActionValid() {
		t.Fatal("infeasible build should surface as not valid")
	}
	if len(res.Vetoes) == 0 || res.Vetoes[0].Type != gate.VetoAlreadyBuilt {
		t.Fatalf("expected already_built veto, got %v", res.Vetoes)
	}
	if diff := cmp.Diff(before, st); diff != "" {
		t.Fatalf("state mutated (-before +after):\n%s", diff)
	}
}

func TestPassResetsPeriodCounters(t *testing.T) {
	e, st := newEngine()
	e.Apply(st, bAlpha)

	res := e.Apply(st, pass)

	if res.Reward != 0 || res.Terminated || !res.Valid || res.Effective {
		t.Fatalf("unexpected pass result: %+v", res)
	}
	if !res.ActionValid() {
		t.Fatal("pass should surface as valid")
	}
	if res.Description != "PASS" {
		t.Fatalf("unexpected description %q", res.Description)
	}
	if st.Period != 1 || st.ProjectsThisPeriod != 0 || st.BuiltThisPeriod[1] != 0 {
		t.Fatalf("period counters not reset: %+v", st)
	}
	if st.BuiltTotal[1] != 1 || !st.Built[bAlpha] {
		t.Fatal("cumulative counters or flags changed on pass")
	}
}

func TestTerminatesOnlyWhenPeriodsExhausted(t *testing.T) {
	e, st := newEngine()
	for i := 1; i <= 3; i++ {
		res := e.Apply(st, pass)
		if want := i == 3; res.Terminated != want {
			t.Fatalf("pass %d: terminated=%v want %v", i, res.Terminated, want)
		}
	}
	if st.Period != 3 {
		t.Fatalf("expected period 3, got %d", st.Period)
	}
}

func TestBuildNeverTerminates(t *testing.T) {
	e, st := newEngine()
	e.Apply(st, pass)
	e.Apply(st, pass)
	// Last period: a build, an infeasible build, then the final pass.
	if res := e.Apply(st, aAlpha); res.Terminated || !res.Effective {
		t.Fatalf("build in last period: %+v", res)
	}
	if res := e.Apply(st, bBeta); res.Terminated || res.Effective {
		t.Fatalf("infeasible build in last period: %+v", res)
	}
	if res := e.Apply(st, pass); !res.Terminated {
		t.Fatal("final pass should terminate")
	}
}

func TestInvalidActionHardFails(t *testing.T) {
	e, st := newEngine()
	before := st.Clone()

	for _, action := range []int{pass + 5, -1, pass + 1} {
		res := e.Apply(st, action)
		if res.Reward != -100 || !res.Terminated {
			t.Fatalf("action %d: reward=%f terminated=%v", action, res.Reward, res.Terminated)
		}
		if res.Valid || res.Effective || res.ActionValid() {
			t.Fatalf("action %d: flags %+v", action, res)
		}
		if !errors.Is(res.Err, ErrInvalidAction) {
			t.Fatalf("action %d: expected ErrInvalidAction, got %v", action, res.Err)
		}
	}
	if diff := cmp.Diff(before, st); diff != "" {
		t.Fatalf("state mutated (-before +after):\n%s", diff)
	}
}

func TestProjectsPerPeriodLimit(t *testing.T) {
	e, st := newEngine()
	if res := e.Apply(st, aAlpha); !res.Effective {
		t.Fatal("first build should succeed")
	}
	res := e.Apply(st, bAlpha)
	if res.Effective || res.Reward != -1 {
		t.Fatalf("second build in the same period should fail: %+v", res)
	}
	e.Apply(st, pass)
	if res := e.Apply(st, bAlpha); !res.Effective {
		t.Fatalf("build after pass should succeed: %v", res.Vetoes)
	}
}

func TestCustomRewardConfig(t *testing.T) {
	cat := catalog.Sample()
	e := NewEngine(cat, RewardConfig{InvalidActionPenalty: -7, InfeasiblePenalty: -0.5, PassReward: 0.25})
	st := state.NewEpisodeState(cat)

	if r := e.Apply(st, pass).Reward; r != 0.25 {
		t.Fatalf("pass reward %f", r)
	}
	e.Apply(st, aAlpha)
	if r := e.Apply(st, aAlpha).Reward; r != -0.5 {
		t.Fatalf("infeasible reward %f", r)
	}
	if r := e.Apply(st, 100).Reward; r != -7 {
		t.Fatalf("invalid reward %f", r)
	}
}

func TestRegionalBudgetExhaustion(t *testing.T) {
	e, st := newEngine()
	// Category_B: Alpha (3075759) then Beta (3738422) exceeds 6296763.
	e.Apply(st, bAlpha)
	e.Apply(st, pass)
	res := e.Apply(st, bBeta)
	if res.Effective {
		t.Fatal("expected regional budget to block the second Category_B build")
	}
	if len(res.Vetoes) != 1 || res.Vetoes[0].Type != gate.VetoRegionalBudget {
		t.Fatalf("expected regional veto, got %v", res.Vetoes)
	}
}
