package eval

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/env"
)

func newHarness() (*EvalHarness, *env.Env) {
	cat := catalog.Sample()
	return NewEvalHarness(cat, DefaultEvalConfig()), env.New(cat)
}

func metric(r EvalResult, name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

func TestEvalPassesOnFeasibleBuild(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)

	res, err := e.Step(3)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	result := h.Run(prev, 3, res)
	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 7 {
		t.Fatalf("expected 7 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalPassesOnEveryActionKind(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)

	for _, action := range []int{0, 0, 4, 6, 4, 5, 6, 6} {
		res, err := e.Step(action)
		if err != nil {
			t.Fatalf("step %d: %v", action, err)
		}
		if result := h.Run(prev, action, res); !result.Passed {
			t.Fatalf("action %d: %s", action, result.Reason)
		}
		prev = res.Info
	}
}

func TestEvalPassesOnInvalidAction(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)

	res, _ := e.Step(99)
	if result := h.Run(prev, 99, res); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Reason)
	}
}

func TestEvalFailsOnClearedFlag(t *testing.T) {
	h, e := newHarness()
	e.Reset(nil)
	built, _ := e.Step(3)
	res, _ := e.Step(6)

	res.Info.SiteBuiltMaskReadable["Category_B/Site_Type_Alpha"] = 0
	result := h.Run(built.Info, 6, res)
	if result.Passed {
		t.Fatal("expected fail on cleared flag")
	}
	m, ok := metric(result, "built_flags")
	if !ok || m.Pass {
		t.Fatalf("expected built_flags metric to fail, got %+v", m)
	}
}

func TestEvalFailsOnBudgetIncrease(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)
	res, _ := e.Step(6)

	res.Info.RemainingOverallBudget += 10
	res.Info.RemainingRegionalBudgets["Category_A"] += 10
	result := h.Run(prev, 6, res)
	if result.Passed {
		t.Fatal("expected fail on budget increase")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Fatalf("expected two failures, got %q", result.Reason)
	}
}

func TestEvalFailsOnCounterNotReset(t *testing.T) {
	h, e := newHarness()
	e.Reset(nil)
	built, _ := e.Step(0)
	res, _ := e.Step(6)

	res.Info.ProjectsBuiltThisPeriod = 1
	if result := h.Run(built.Info, 6, res); result.Passed {
		t.Fatal("expected fail when per-period counter survives a pass")
	}
}

func TestEvalFailsOnEarlyTermination(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)
	res, _ := e.Step(0)

	res.Terminated = true
	result := h.Run(prev, 0, res)
	m, _ := metric(result, "termination")
	if result.Passed || m.Pass {
		t.Fatal("expected termination metric to fail")
	}
}

func TestEvalObservationPeakIsInformational(t *testing.T) {
	h, e := newHarness()
	_, prev := e.Reset(nil)
	res, _ := e.Step(6)

	res.Observation[1] = 2
	result := h.Run(prev, 6, res)
	if !result.Passed {
		t.Fatalf("peak should not fail the transition: %s", result.Reason)
	}
	m, _ := metric(result, "observation_peak")
	if m.Pass || !m.Informational {
		t.Fatalf("unexpected peak metric %+v", m)
	}
}

func TestRunEpisode(t *testing.T) {
	h, e := newHarness()
	actions := []int{3, 3, 6, 0, 6, 6}
	i := 0
	report, err := h.RunEpisode(e, nil, 100, func(env.Info) int {
		a := actions[i]
		i++
		return a
	})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if report.Steps != 6 || report.Failures != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TotalReward != 16-1+3 {
		t.Fatalf("total reward %f", report.TotalReward)
	}
}

func TestRunEpisodeStopsAtMaxSteps(t *testing.T) {
	h, e := newHarness()
	report, err := h.RunEpisode(e, nil, 4, func(env.Info) int { return 0 })
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if report.Steps != 4 {
		t.Fatalf("expected 4 steps, got %d", report.Steps)
	}
	if !report.Truncated {
		t.Fatal("expected a truncated report")
	}
	if !e.Done() {
		t.Fatal("capped episode left active")
	}
}

func TestRunEpisodeCappedEpisodeIsRecordedAsEnded(t *testing.T) {
	rec := &endRecorder{}
	cat := catalog.Sample()
	h := NewEvalHarness(cat, DefaultEvalConfig())
	e := env.New(cat, env.WithRecorder(rec))

	report, err := h.RunEpisode(e, nil, 2, func(env.Info) int { return 0 })
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if report.Steps != 2 || !report.Truncated {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(rec.ended) != 1 || rec.ended[0].terminated || rec.ended[0].steps != 2 {
		t.Fatalf("expected one abandoned episode of 2 steps, got %+v", rec.ended)
	}
}

func TestRunEpisodeTerminatedIsNotTruncated(t *testing.T) {
	h, e := newHarness()
	report, err := h.RunEpisode(e, nil, 3, func(env.Info) int { return 6 })
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if report.Truncated || report.Steps != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

type endRecorder struct {
	ended []struct {
		steps      int
		terminated bool
	}
}

func (r *endRecorder) EpisodeStarted(env.EpisodeMeta) error { return nil }

func (r *endRecorder) StepTaken(string, int, int, env.StepResult) error { return nil }

func (r *endRecorder) EpisodeEnded(_ string, steps int, _ float64, terminated bool) error {
	r.ended = append(r.ended, struct {
		steps      int
		terminated bool
	}{steps, terminated})
	return nil
}
