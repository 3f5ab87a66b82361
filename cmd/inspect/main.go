package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
	"github.com/danielpatrickdp/siteplan/internal/projection"
	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region main

func main() {
	dbPath := pflag.String("db", "", "path to the episode database")
	last := pflag.Int("last", 20, "show N most recent episodes")
	episode := pflag.String("episode", "", "show the transitions of one episode")
	segment := pflag.String("segment", "", "filter the observation breakdown to one segment")
	jsonOut := pflag.Bool("json", false, "output as JSON instead of table")
	pflag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/siteplan.db [--last N] [--episode id] [--segment name] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *episode != "" {
		err = runDetailMode(store, *episode, *segment, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	EpisodeID   string  `json:"episode_id"`
	Policy      string  `json:"policy,omitempty"`
	Seed        *int64  `json:"seed,omitempty"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"total_reward"`
	End         string  `json:"end"`
	StartedAt   string  `json:"started_at"`
	CatalogHash string  `json:"catalog_hash"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	episodes, err := store.ListEpisodes(last)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		fmt.Fprintln(os.Stderr, "no episodes found")
		return nil
	}

	rows := make([]listRow, len(episodes))
	for i, ep := range episodes {
		rows[i] = listRow{
			EpisodeID:   ep.EpisodeID,
			Policy:      ep.Policy,
			Seed:        ep.Seed,
			Steps:       ep.Steps,
			TotalReward: ep.TotalReward,
			End:         endLabel(ep),
			StartedAt:   ep.StartedAt.Format(time.RFC3339),
			CatalogHash: shortHash(ep.CatalogHash),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-36s  %-14s  %5s  %10s  %-10s  %-20s  %s\n", "Episode", "Policy", "Steps", "Return", "End", "Started", "Catalog")
	fmt.Println(strings.Repeat("-", 118))
	for _, r := range rows {
		fmt.Printf("%-36s  %-14s  %5d  %10.2f  %-10s  %-20s  %s\n",
			r.EpisodeID, r.Policy, r.Steps, r.TotalReward, r.End, r.StartedAt, r.CatalogHash)
	}
	return nil
}

func endLabel(ep state.EpisodeRecord) string {
	switch {
	case ep.FinishedAt.IsZero():
		return "open"
	case ep.Terminated:
		return "terminated"
	default:
		return "abandoned"
	}
}

// #endregion list-mode

// #region detail-mode

type stepRow struct {
	Step        int                  `json:"step"`
	Action      int                  `json:"action"`
	Description string               `json:"description"`
	Reward      float64              `json:"reward"`
	Valid       bool                 `json:"action_valid"`
	Terminated  bool                 `json:"terminated"`
	Segments    map[string][]float32 `json:"segments"`
}

func runDetailMode(store *state.Store, episodeID, segFilter string, jsonOut bool) error {
	ep, err := store.GetEpisode(episodeID)
	if err != nil {
		return err
	}
	transitions, err := store.ListTransitions(episodeID)
	if err != nil {
		return err
	}

	cat := catalog.Sample()
	if ep.ConfigYAML != "" {
		if cat, err = catalog.Parse([]byte(ep.ConfigYAML)); err != nil {
			return fmt.Errorf("recorded catalog: %w", err)
		}
	}
	segments := projection.Segments(cat).Named()
	if segFilter != "" && !hasSegment(segments, segFilter) {
		return fmt.Errorf("unknown segment %q", segFilter)
	}

	rows := make([]stepRow, len(transitions))
	for i, tr := range transitions {
		rows[i] = stepRow{
			Step:        tr.StepIndex,
			Action:      tr.Action,
			Description: tr.Description,
			Reward:      tr.Reward,
			Valid:       tr.ActionValid,
			Terminated:  tr.Terminated,
			Segments:    splitObservation(tr.Observation, segments, segFilter),
		}
	}

	if jsonOut {
		return printJSON(struct {
			Episode listRow   `json:"episode"`
			Steps   []stepRow `json:"steps"`
		}{
			Episode: listRow{
				EpisodeID:   ep.EpisodeID,
				Policy:      ep.Policy,
				Seed:        ep.Seed,
				Steps:       ep.Steps,
				TotalReward: ep.TotalReward,
				End:         endLabel(ep),
				StartedAt:   ep.StartedAt.Format(time.RFC3339),
				CatalogHash: ep.CatalogHash,
			},
			Steps: rows,
		})
	}

	fmt.Printf("Episode %s  policy=%s  steps=%d  return=%.2f  end=%s\n\n",
		ep.EpisodeID, ep.Policy, ep.Steps, ep.TotalReward, endLabel(ep))
	for _, r := range rows {
		fmt.Printf("[%3d] action=%-3d %-40s reward=%8.2f valid=%-5v terminated=%v\n",
			r.Step, r.Action, r.Description, r.Reward, r.Valid, r.Terminated)
		for _, seg := range segments {
			vals, ok := r.Segments[seg.Name]
			if !ok {
				continue
			}
			fmt.Printf("      %-16s %s\n", seg.Name, formatValues(vals))
		}
	}
	return nil
}

// #endregion detail-mode

// #region helpers

func splitObservation(obs []float32, segments []projection.Segment, filter string) map[string][]float32 {
	out := make(map[string][]float32, len(segments))
	for _, seg := range segments {
		if filter != "" && seg.Name != filter {
			continue
		}
		lo, hi := seg.Range[0], seg.Range[1]
		if hi > len(obs) {
			continue
		}
		out[seg.Name] = obs[lo:hi]
	}
	return out
}

func hasSegment(segments []projection.Segment, name string) bool {
	for _, seg := range segments {
		if seg.Name == name {
			return true
		}
	}
	return false
}

func formatValues(vals []float32) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
