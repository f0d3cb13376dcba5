// Package worker provides the bounded goroutine pools I/O-bound tools fan
// out to.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
)

// Pool bounds concurrency and carries the deadline for one fan-out.
type Pool struct {
	size     int
	deadline time.Duration
	log      *logger.Logger
}

// New returns a pool of size workers. A zero deadline means the caller's
// context alone bounds the work.
func New(size int, deadline time.Duration, log *logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pool{size: size, deadline: deadline, log: log}
}

func (p *Pool) Size() int { return p.size }

func (p *Pool) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.deadline > 0 {
		return context.WithTimeout(ctx, p.deadline)
	}
	return context.WithCancel(ctx)
}

// Each calls fn once per job with at most p.Size() calls in flight and
// waits for all of them. Jobs not yet started when the deadline passes are
// skipped. An error from fn is logged and does not stop other jobs.
func Each[J any](ctx context.Context, p *Pool, jobs []J, fn func(ctx context.Context, job J) error) error {
	ctx, cancel := p.context(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(p.size)

	skipped := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			skipped++
			continue
		}
		job := job
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := fn(ctx, job); err != nil {
				p.log.Debugw("Worker job failed", "job", fmt.Sprint(job), "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if skipped > 0 {
		return fmt.Errorf("deadline reached with %d of %d jobs not started", skipped, len(jobs))
	}
	return nil
}

// Loop starts p.Size() workers that call fn repeatedly until the deadline
// or ctx ends, then joins them. fn returning an error stops that worker.
func Loop(ctx context.Context, p *Pool, fn func(ctx context.Context, worker int) error) error {
	ctx, cancel := p.context(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		worker := i
		g.Go(func() error {
			for gctx.Err() == nil {
				if err := fn(gctx, worker); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("worker %d: %w", worker, err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	p.log.Debugw("Worker pool joined", "workers", p.size, "error", err)
	return err
}
