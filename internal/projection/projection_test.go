package projection

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

func approx() cmp.Option {
	return cmpopts.EquateApprox(0, 1e-6)
}

func TestInitialObservation(t *testing.T) {
	cat := catalog.Sample()
	obs := Project(cat, state.NewEpisodeState(cat))

	want := []float32{
		0, 1, 0, // period, overall budget, projects
		0, 0, // category period
		0, 0, // category total
		1, 1, // regional budget
		0, 0, 0, 0, 0, 0, // built flags
	}
	if diff := cmp.Diff(want, obs); diff != "" {
		t.Fatalf("observation (-want +got):\n%s", diff)
	}
}

func TestObservationAfterBuild(t *testing.T) {
	cat := catalog.Sample()
	st := state.NewEpisodeState(cat)
	// Category_B/Site_Type_Alpha applied by hand.
	st.OverallBudget -= 14352038
	st.RegionalBudget[1] -= 3075759
	st.ProjectsThisPeriod = 1
	st.BuiltThisPeriod[1] = 1
	st.BuiltTotal[1] = 1
	st.Built[3] = true

	obs := Project(cat, st)

	want := []float32{
		0,
		float32((407790913.0 - 14352038.0) / 407790913.0),
		1,
		0, 0.25,
		0, 0.2,
		1, float32((6296763.0 - 3075759.0) / 6296763.0),
		0, 0, 0, 1, 0, 0,
	}
	if diff := cmp.Diff(want, obs, approx()); diff != "" {
		t.Fatalf("observation (-want +got):\n%s", diff)
	}
}

func TestPeriodProgressIsNotClamped(t *testing.T) {
	cat := catalog.Sample()
	st := state.NewEpisodeState(cat)
	st.Period = 3

	obs := Project(cat, st)
	if obs[0] != 1.5 {
		t.Fatalf("expected 1.5 after the final pass, got %f", obs[0])
	}
}

func TestUnclampedFractionsPreserved(t *testing.T) {
	cat := catalog.Sample()
	st := state.NewEpisodeState(cat)
	st.OverallBudget = 2 * cat.InitialOverallBudget()
	st.BuiltTotal[0] = 10
	st.ProjectsThisPeriod = 3
	st.RegionalBudget[0] = 3 * cat.InitialRegionalBudget(0)

	obs := Project(cat, st)
	seg := Segments(cat)
	if obs[seg.OverallBudget[0]] != 2 {
		t.Fatalf("overall budget fraction should not be clamped, got %f", obs[seg.OverallBudget[0]])
	}
	if obs[seg.Projects[0]] != 3 {
		t.Fatalf("projects fraction should not be clamped, got %f", obs[seg.Projects[0]])
	}
	if obs[seg.CategoryTotal[0]] != 2 {
		t.Fatalf("category total fraction should not be clamped, got %f", obs[seg.CategoryTotal[0]])
	}
	if obs[seg.RegionalBudget[0]] != 1 {
		t.Fatalf("regional fraction should be clamped to 1, got %f", obs[seg.RegionalBudget[0]])
	}
}

func TestSinglePeriodProgress(t *testing.T) {
	cat, err := catalog.Parse([]byte(strings.Replace(string(catalog.SampleYAML()), "Periods: 3", "Periods: 1", 1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	st := state.NewEpisodeState(cat)
	st.Period = 1
	if got := Project(cat, st)[0]; got != 1 {
		t.Fatalf("expected 1, got %f", got)
	}
}

func TestZeroLimitsEmitZero(t *testing.T) {
	doc := `
Periods: 2
Total_Overall_Budget: 0
Limit_Projects_Per_Period: 0
Limit_Sites_In_Region_Per_Period: 0
Limit_Total_Sites_In_Region: 0
Regions:
  Only:
    Initial_Regional_Budget: 0
    Site_Types_Available:
      T: {Priority_Score: 1, Overall_Cost: 1}
`
	cat, err := catalog.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	st := state.NewEpisodeState(cat)
	st.ProjectsThisPeriod = 1
	st.BuiltThisPeriod[0] = 1
	st.BuiltTotal[0] = 1

	want := []float32{0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(want, Project(cat, st)); diff != "" {
		t.Fatalf("observation (-want +got):\n%s", diff)
	}
}

func TestRegionalFraction(t *testing.T) {
	cases := []struct {
		remaining, initial float64
		want               float32
	}{
		{5, 10, 0.5},
		{20, 10, 1},
		{-5, 10, 0},
		{0.5, 0, 1},
		{1e-7, 0, 0},
		{0, 0, 0},
		{3, -1, 1},
	}
	for _, c := range cases {
		if got := regionalFraction(c.remaining, c.initial); got != c.want {
			t.Errorf("regionalFraction(%v, %v) = %v, want %v", c.remaining, c.initial, got, c.want)
		}
	}
}

func TestSegmentsCoverObservation(t *testing.T) {
	cat := catalog.Sample()
	seg := Segments(cat)
	next := 0
	for _, s := range seg.Named() {
		if s.Range[0] != next {
			t.Fatalf("segment %s starts at %d, want %d", s.Name, s.Range[0], next)
		}
		next = s.Range[1]
	}
	if next != cat.ObservationSize() {
		t.Fatalf("segments end at %d, observation size %d", next, cat.ObservationSize())
	}
}

func TestProjectIntoReusesBuffer(t *testing.T) {
	cat := catalog.Sample()
	st := state.NewEpisodeState(cat)
	buf := make([]float32, cat.ObservationSize())
	for i := range buf {
		buf[i] = float32(math.NaN())
	}

	out := ProjectInto(buf, cat, st)
	if &out[0] != &buf[0] {
		t.Fatal("ProjectInto allocated a new slice")
	}
	if diff := cmp.Diff(Project(cat, st), out); diff != "" {
		t.Fatalf("ProjectInto differs from Project (-want +got):\n%s", diff)
	}
}
