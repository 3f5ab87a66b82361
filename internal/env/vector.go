package env

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/siteplan/internal/catalog"
)

// Vector steps several independent environments over the same catalog in
// parallel. Each member keeps its own state; finished members are not reset
// automatically.
type Vector struct {
	envs []*Env
}

// NewVector creates n environments sharing cat and opts.
func NewVector(cat *catalog.Catalog, n int, opts ...Option) (*Vector, error) {
	if n <= 0 {
		return nil, fmt.Errorf("vector size must be positive, got %d", n)
	}
	envs := make([]*Env, n)
	for i := range envs {
		envs[i] = New(cat, opts...)
	}
	return &Vector{envs: envs}, nil
}

func (v *Vector) Len() int { return len(v.envs) }

// Env returns member i.
func (v *Vector) Env(i int) *Env { return v.envs[i] }

// ResetAll resets every member. Member i gets seed+i when seed is set.
func (v *Vector) ResetAll(ctx context.Context, seed *int64) ([]Observation, []Info, error) {
	obs := make([]Observation, len(v.envs))
	infos := make([]Info, len(v.envs))

	g, ctx := errgroup.WithContext(ctx)
	for i, e := range v.envs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var s *int64
			if seed != nil {
				s = new(int64)
				*s = *seed + int64(i)
			}
			obs[i], infos[i] = e.Reset(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("reset vector: %w", err)
	}
	return obs, infos, nil
}

// StepAll applies actions[i] to member i. Every member is stepped even when
// another fails, so results always has one entry per member: the outcome of
// each member that stepped and a zero StepResult for each that failed. The
// returned error is the first member failure. A done context stops the call
// before any member is stepped.
func (v *Vector) StepAll(ctx context.Context, actions []int) ([]StepResult, error) {
	if len(actions) != len(v.envs) {
		return nil, fmt.Errorf("step vector: got %d actions for %d environments", len(actions), len(v.envs))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("step vector: %w", err)
	}
	results := make([]StepResult, len(v.envs))

	var g errgroup.Group
	for i, e := range v.envs {
		g.Go(func() error {
			res, err := e.Step(actions[i])
			if err != nil {
				return fmt.Errorf("env %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("step vector: %w", err)
	}
	return results, nil
}
