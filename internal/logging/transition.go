package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/siteplan/internal/state"
)

// #region log-transition
// LogTransition writes one step to the transitions table.
func LogTransition(db *sql.DB, entry TransitionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO transitions (episode_id, step_index, action, description, reward, terminated, action_valid, observation, info_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EpisodeID,
		entry.StepIndex,
		entry.Action,
		entry.Description,
		entry.Reward,
		boolToInt(entry.Terminated),
		boolToInt(entry.ActionValid),
		state.EncodeVector(entry.Observation),
		nullIfEmpty(entry.InfoJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log transition: %w", err)
	}
	return nil
}

// #endregion log-transition

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
