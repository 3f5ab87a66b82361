package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/danielpatrickdp/siteplan/internal/replay"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region main

func main() {
	dbPath := pflag.String("db", "", "path to the episode database")
	episode := pflag.String("episode", "", "episode to export; empty exports the most recent finished one")
	outPath := pflag.String("out", "", "output fixture JSON path")
	description := pflag.String("description", "", "fixture description; defaults to the episode summary")
	pflag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--episode id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *episode, *outPath, *description); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, episodeID, outPath, description string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if episodeID == "" {
		if episodeID, err = latestFinished(store); err != nil {
			return err
		}
	}

	f, err := replay.FromRecorded(store, episodeID)
	if err != nil {
		return fmt.Errorf("export %s: %w", episodeID, err)
	}
	if description != "" {
		f.Description = description
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Exported %d steps of episode %s to %s\n", len(f.Steps), episodeID, outPath)
	return nil
}

// latestFinished returns the most recently started episode that has ended.
func latestFinished(store *state.Store) (string, error) {
	episodes, err := store.ListEpisodes(50)
	if err != nil {
		return "", err
	}
	for _, ep := range episodes {
		if !ep.FinishedAt.IsZero() {
			return ep.EpisodeID, nil
		}
	}
	return "", fmt.Errorf("no finished episodes in the last %d", len(episodes))
}

// #endregion export
