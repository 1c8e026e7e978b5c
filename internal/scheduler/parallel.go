package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
)

// PlanAll runs independent planning inputs concurrently and merges their schedules into
// one ranking of at most K entries, K taken from the first input. Inputs share the
// catalog read-only. A run that fails is dropped; the error is returned only when no
// run produced a schedule.
func PlanAll(ctx context.Context, inputs []Input, workers int) (*Result, error) {
	if len(inputs) == 0 {
		return nil, noFeasibleSchedule(Constraint{Kind: ConstraintNoCandidates, Detail: "no planning inputs"}, 0)
	}
	if workers <= 0 {
		workers = len(inputs)
	}

	start := time.Now()
	p := pool.NewWithResults[*Result]().WithContext(ctx).WithMaxGoroutines(workers)
	for _, in := range inputs {
		in := in
		p.Go(func(ctx context.Context) (*Result, error) {
			return Plan(ctx, in)
		})
	}
	results, err := p.Wait()

	// results arrive in completion order
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Best(), results[j].Best()
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return Better(a, b)
	})

	merged := newBestK(inputs[0].K)
	out := &Result{}
	for _, r := range results {
		for _, s := range r.Schedules {
			merged.Offer(s)
		}
		out.Truncated = out.Truncated || r.Truncated
		out.Cancelled = out.Cancelled || r.Cancelled
		out.Stats.merge(r.Stats)
	}
	out.Schedules = merged.Items()
	out.Stats.Elapsed = time.Since(start)

	if len(out.Schedules) == 0 {
		if err != nil {
			return nil, err
		}
		if !out.Cancelled && ctx.Err() == nil {
			return nil, noFeasibleSchedule(Constraint{Kind: ConstraintNoCandidates, Detail: "no run produced a schedule"}, 0)
		}
		out.Cancelled = true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		out.Cancelled = true
	}
	return out, nil
}

// PlanSeeds repeats one input with different annealing seeds.
func PlanSeeds(ctx context.Context, in Input, seeds []int64, workers int) (*Result, error) {
	if len(seeds) == 0 {
		return Plan(ctx, in)
	}
	inputs := make([]Input, len(seeds))
	for i, seed := range seeds {
		inputs[i] = in
		inputs[i].Seed = seed
	}
	return PlanAll(ctx, inputs, workers)
}

func (s *Stats) merge(o Stats) {
	for _, name := range o.Strategies {
		if !lo.Contains(s.Strategies, name) {
			s.Strategies = append(s.Strategies, name)
		}
	}
	if o.Candidates > s.Candidates {
		s.Candidates = o.Candidates
	}
	s.Nodes += o.Nodes
	s.Terminals += o.Terminals
	s.AnnealIterations += o.AnnealIterations
	s.AnnealAccepted += o.AnnealAccepted
	s.Repaired += o.Repaired
	s.Exhaustive = s.Exhaustive || o.Exhaustive
}
