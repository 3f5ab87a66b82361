package env

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #region metrics
var (
	// stepsTotal counts steps by outcome: pass, build, infeasible, invalid.
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteplan_env_steps_total",
		Help: "Total environment steps by outcome",
	}, []string{"outcome"})

	// vetoesTotal counts failed build constraints by type.
	vetoesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteplan_env_vetoes_total",
		Help: "Total failed build constraints by constraint",
	}, []string{"constraint"})

	episodesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "siteplan_env_episodes_total",
		Help: "Total finished episodes by how they ended",
	}, []string{"end"})

	episodeReturn = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "siteplan_env_episode_return",
		Help:    "Sum of rewards per finished episode",
		Buckets: []float64{-100, -10, -1, 0, 5, 10, 20, 50, 100, 200},
	})

	recorderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteplan_env_recorder_errors_total",
		Help: "Total episode recorder failures",
	})
)

// #endregion metrics
