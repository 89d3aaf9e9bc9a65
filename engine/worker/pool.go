// Package worker provides a bounded, process-wide pool that drives many
// cases concurrently through a shared *engine.Engine, generalizing the
// teacher's per-run Frontier/Scheduler (graph/scheduler.go) from "work
// items inside one run" to "cases ready to be driven" — each case still
// drives its own paths sequentially inside Engine.driveLoop, so the pool's
// only job is bounding how many cases are in flight at once.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/caseflow-io/caseengine/engine"
)

// Job is one unit of work submitted to the Pool: drive caseID either via
// Start or Resume.
type Job struct {
	CaseID string
	Run    func(ctx context.Context, eng *engine.Engine) (engine.CaseState, error)
}

// Pool bounds concurrent case-driving against a shared Engine, using a
// weighted semaphore for admission and an errgroup to propagate the first
// fatal error, mirroring the bounded-concurrency shape of the teacher's
// scheduler without replicating its per-run work-item queue.
type Pool struct {
	eng *engine.Engine
	sem *semaphore.Weighted
}

// New constructs a Pool of the given size driving eng.
func New(eng *engine.Engine, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{eng: eng, sem: semaphore.NewWeighted(int64(size))}
}

// Run drives every job concurrently, bounded by the pool's size, and
// returns the first error encountered (subsequent jobs already admitted
// continue to completion; jobs not yet admitted are not started once ctx
// is cancelled by the errgroup).
func (p *Pool) Run(ctx context.Context, jobs []Job) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		if err := p.sem.Acquire(ctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			_, err := job.Run(ctx, p.eng)
			return err
		})
	}
	return g.Wait()
}
