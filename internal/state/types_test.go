package state

import (
	"testing"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
)

func TestNewEpisodeStateInitialValues(t *testing.T) {
	cat := catalog.Sample()
	s := NewEpisodeState(cat)

	if s.Period != 0 || s.ProjectsThisPeriod != 0 {
		t.Fatalf("expected zero counters, got period=%d projects=%d", s.Period, s.ProjectsThisPeriod)
	}
	if s.OverallBudget != cat.InitialOverallBudget() {
		t.Fatalf("expected overall budget %f, got %f", cat.InitialOverallBudget(), s.OverallBudget)
	}
	if len(s.RegionalBudget) != 2 || len(s.Built) != 6 {
		t.Fatalf("unexpected sizes: regional=%d built=%d", len(s.RegionalBudget), len(s.Built))
	}
	if s.RegionalBudget[1] != 6296763 {
		t.Fatalf("expected Category_B budget 6296763, got %f", s.RegionalBudget[1])
	}
}

func TestResetInPlace(t *testing.T) {
	cat := catalog.Sample()
	s := NewEpisodeState(cat)
	built := s.Built

	s.Period = 2
	s.OverallBudget = 1
	s.RegionalBudget[0] = 0
	s.ProjectsThisPeriod = 1
	s.BuiltThisPeriod[1] = 1
	s.BuiltTotal[1] = 3
	s.Built[4] = true

	s.Reset(cat)

	if &built[0] != &s.Built[0] {
		t.Fatal("Reset reallocated the built flags")
	}
	if s.Period != 0 || s.OverallBudget != cat.InitialOverallBudget() || s.RegionalBudget[0] != cat.InitialRegionalBudget(0) {
		t.Fatalf("state not restored: %+v", s)
	}
	if s.ProjectsThisPeriod != 0 || s.BuiltThisPeriod[1] != 0 || s.BuiltTotal[1] != 0 || s.Built[4] {
		t.Fatalf("counters not cleared: %+v", s)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewEpisodeState(catalog.Sample())
	c := s.Clone()

	c.Built[0] = true
	c.RegionalBudget[0] = -1
	c.BuiltTotal[0] = 9

	if s.Built[0] || s.RegionalBudget[0] == -1 || s.BuiltTotal[0] == 9 {
		t.Fatal("clone shares memory with original")
	}
}
