package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/env"
	"github.com/danielpatrickdp/siteplan/internal/logging"
	"github.com/danielpatrickdp/siteplan/internal/state"
	"github.com/danielpatrickdp/siteplan/internal/update"
)

// #region fixture-tests

func runFixture(t *testing.T, name string) []ReplayResult {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	cat, err := f.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	results, err := Replay(cat, f.ToSteps(), f.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != len(f.Steps) {
		t.Fatalf("expected %d results, got %d", len(f.Steps), len(results))
	}
	for _, r := range results {
		if r.Mismatch != "" {
			t.Errorf("step %d (action %d): %s", r.StepIndex, r.Action, r.Mismatch)
		}
	}
	return results
}

func TestFixture_SampleEpisode(t *testing.T) {
	results := runFixture(t, "sample_episode.json")
	s := Summarize(results)
	if !s.Terminated || s.TotalReward != 16-1+7-1-1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestFixture_InlineCatalog(t *testing.T) {
	results := runFixture(t, "tiny_catalog.json")
	last := results[len(results)-1]
	if last.Outcome != "invalid" || last.Info.Error == "" {
		t.Errorf("expected invalid final step, got %+v", last)
	}
}

func TestLoadFixture_Missing(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing fixture")
	}
}

func TestLoadFixture_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFixture_BadInlineCatalog(t *testing.T) {
	f := &Fixture{Config: []byte(`{"Periods": 0}`)}
	if _, err := f.Catalog(); err == nil {
		t.Fatal("expected catalog error")
	}
}

// #endregion fixture-tests

// #region recorded-tests

func TestFromRecorded_RoundTrip(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	e := env.New(catalog.Sample(), env.WithRecorder(logging.NewRecorder(store, catalog.SampleYAML(), "manual")))
	e.Reset(nil)
	id := e.EpisodeID()
	for _, a := range []int{5, 5, 6, 1, 6, 6} {
		if _, err := e.Step(a); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	f, err := FromRecorded(store, id)
	if err != nil {
		t.Fatalf("FromRecorded: %v", err)
	}
	if len(f.Steps) != 6 || f.EpisodeID != id {
		t.Fatalf("unexpected fixture: %+v", f)
	}
	cat, err := f.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if cat.Hash() != catalog.Sample().Hash() {
		t.Error("recorded catalog differs from the sample")
	}

	results, err := Replay(cat, f.ToSteps(), f.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if s := Summarize(results); s.Mismatches != 0 || !s.Terminated {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestFromRecorded_CustomRewards(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	rewards := update.DefaultRewardConfig()
	rewards.InfeasiblePenalty = -5
	e := env.New(catalog.Sample(),
		env.WithRewards(rewards),
		env.WithRecorder(logging.NewRecorder(store, catalog.SampleYAML(), "manual")))
	e.Reset(nil)
	id := e.EpisodeID()
	for _, a := range []int{3, 3, 6, 6, 6} {
		if _, err := e.Step(a); err != nil {
			t.Fatalf("step: %v", err)
		}
	}

	f, err := FromRecorded(store, id)
	if err != nil {
		t.Fatalf("FromRecorded: %v", err)
	}
	if f.Rewards == nil || f.Rewards.InfeasiblePenalty != -5 || f.Rewards.InvalidActionPenalty != -100 {
		t.Fatalf("rewards not restored: %+v", f.Rewards)
	}
	if got := f.ToReplayConfig().Rewards; got != rewards {
		t.Fatalf("replay rewards %+v, want %+v", got, rewards)
	}

	cat, err := f.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	results, err := Replay(cat, f.ToSteps(), f.ToReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if s := Summarize(results); s.Mismatches != 0 || s.TotalReward != 11 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if results[1].Reward != -5 {
		t.Errorf("infeasible step replayed with reward %f", results[1].Reward)
	}
}

func TestFromRecorded_EpisodeWithoutRewardsUsesDefaults(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.CreateEpisode(state.EpisodeRecord{EpisodeID: "ep-1", CatalogHash: "h"}); err != nil {
		t.Fatalf("CreateEpisode: %v", err)
	}
	if err := logging.LogTransition(store.DB(), logging.TransitionEntry{
		EpisodeID: "ep-1", Action: 6, Description: "PASS", Observation: []float32{0},
	}); err != nil {
		t.Fatalf("LogTransition: %v", err)
	}

	f, err := FromRecorded(store, "ep-1")
	if err != nil {
		t.Fatalf("FromRecorded: %v", err)
	}
	if f.Rewards != nil {
		t.Fatalf("expected nil rewards, got %+v", f.Rewards)
	}
	if got := f.ToReplayConfig().Rewards; got != update.DefaultRewardConfig() {
		t.Fatalf("expected default rewards, got %+v", got)
	}
}

func TestFromRecorded_UnknownEpisode(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if _, err := FromRecorded(store, "missing"); err == nil {
		t.Fatal("expected error for unknown episode")
	}
}

// #endregion recorded-tests
