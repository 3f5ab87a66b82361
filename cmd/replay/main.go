package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/replay"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region main

func main() {
	dbPath := pflag.String("db", "", "path to the episode database (DB mode)")
	episode := pflag.String("episode", "", "episode to replay in DB mode")
	fixturePath := pflag.String("fixture", "", "path to fixture JSON (fixture mode)")
	pflag.Parse()

	dbMode := *dbPath != "" && *episode != ""
	if dbMode == (*fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/siteplan.db --episode id")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var f *replay.Fixture
	var err error
	if dbMode {
		f, err = loadRecorded(*dbPath, *episode)
	} else {
		f, err = replay.LoadFixture(*fixturePath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		os.Exit(2)
	}
	os.Exit(runFixture(f))
}

// #endregion main

// #region modes

func loadRecorded(dbPath, episodeID string) (*replay.Fixture, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()
	return replay.FromRecorded(store, episodeID)
}

func runFixture(f *replay.Fixture) int {
	cat, err := f.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
		return 2
	}

	results, err := replay.Replay(cat, f.ToSteps(), f.ToReplayConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
	}
	fmt.Println(f.Description)
	code := printComparison(cat, results)
	if err != nil {
		return 1
	}
	return code
}

// #endregion modes

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(cat *catalog.Catalog, results []replay.ReplayResult) int {
	fmt.Printf("%-5s| %-7s| %-40s| %-11s| %-9s| %s\n", "Step", "Action", "Description", "Outcome", "Reward", "Match")
	fmt.Printf("%-5s+%-8s+%-41s+%-12s+%-10s+%s\n",
		"-----", "--------", "-----------------------------------------", "------------", "----------", "------")

	for _, r := range results {
		match := "OK"
		if r.Mismatch != "" {
			match = "DIFF " + r.Mismatch
		}
		if !r.Eval.Passed {
			match += " | EVAL " + r.Eval.Reason
		}
		fmt.Printf("%-5d| %-7d| %-40s| %-11s| %-9.2f| %s\n",
			r.StepIndex, r.Action, r.Description, r.Outcome, r.Reward, match)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d steps (%d build, %d infeasible, %d pass, %d invalid), return %.2f, terminated=%v, pass action %d\n",
		s.TotalSteps, s.Builds, s.Infeasible, s.Passes, s.Invalid, s.TotalReward, s.Terminated, cat.PassAction())
	fmt.Printf("         %d diverge, %d invariant failures\n", s.Mismatches, s.EvalFailures)

	if s.Mismatches > 0 || s.EvalFailures > 0 {
		return 1
	}
	return 0
}

// #endregion output
