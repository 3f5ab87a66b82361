package codec

import "github.com/danielpatrickdp/siteplan/internal/env"

// #region messages
// OpenRequest creates an environment. An empty ConfigYAML selects the
// server's default catalog.
type OpenRequest struct {
	ConfigYAML string `json:"config_yaml,omitempty"`
}

type OpenResponse struct {
	EnvID           string `json:"env_id"`
	ActionSpace     int    `json:"action_space"`
	ObservationSize int    `json:"observation_size"`
	PassAction      int    `json:"pass_action"`
	CatalogHash     string `json:"catalog_hash"`
}

type ResetRequest struct {
	EnvID string `json:"env_id"`
	Seed  *int64 `json:"seed,omitempty"`
}

type ResetResponse struct {
	EpisodeID   string    `json:"episode_id"`
	Observation []float32 `json:"observation"`
	Info        env.Info  `json:"info"`
}

type StepRequest struct {
	EnvID  string `json:"env_id"`
	Action int    `json:"action"`
}

type StepResponse struct {
	Observation []float32 `json:"observation"`
	Reward      float64   `json:"reward"`
	Terminated  bool      `json:"terminated"`
	Truncated   bool      `json:"truncated"`
	Info        env.Info  `json:"info"`
}

type CloseRequest struct {
	EnvID string `json:"env_id"`
}

type CloseResponse struct{}

// #endregion messages
