package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Strategy is one way of searching a problem. prior holds schedules already found by an
// earlier strategy, best first.
type Strategy interface {
	Name() string
	Search(ctx context.Context, p *Problem, prior []*Schedule) Outcome
}

// Outcome is what a strategy reports back to the planner.
type Outcome struct {
	Schedules  []*Schedule
	NearMiss   *Schedule
	Nodes      int
	Terminals  int
	Iterations int
	Accepted   int
	Trace      []float64
	Truncated  bool
	Cancelled  bool
	Tightest   *Constraint
}

// Exhaustive runs the depth-first enumerator.
type Exhaustive struct {
	Budget Budget
}

func (Exhaustive) Name() string { return "exhaustive" }

func (x Exhaustive) Search(ctx context.Context, p *Problem, _ []*Schedule) Outcome {
	r := NewEnumerator(x.Budget).Run(ctx, p)
	return Outcome{
		Schedules: r.Schedules,
		Nodes:     r.Nodes,
		Terminals: r.Terminals,
		Truncated: r.Truncated,
		Cancelled: r.Cancelled,
		Tightest:  r.Tightest,
	}
}

// Perturbative runs the annealer seeded by the best prior schedule.
type Perturbative struct {
	Config AnnealConfig
}

func (Perturbative) Name() string { return "perturbative" }

func (x Perturbative) Search(ctx context.Context, p *Problem, prior []*Schedule) Outcome {
	var (
		seed   *Schedule
		spread float64
	)
	exclude := make(map[string]struct{}, len(prior))
	if len(prior) > 0 {
		seed = prior[0]
		spread = prior[len(prior)-1].Cost() - prior[0].Cost()
		for _, s := range prior {
			exclude[s.footprint] = struct{}{}
		}
	}
	r := NewAnnealer(x.Config).Run(ctx, p, seed, spread, exclude)
	return Outcome{
		Schedules:  r.Schedules,
		NearMiss:   r.NearMiss,
		Iterations: r.Iterations,
		Accepted:   r.Accepted,
		Trace:      r.Trace,
		Cancelled:  r.Cancelled,
	}
}

// Input describes one planning run.
type Input struct {
	Catalog     *Catalog
	Selection   map[string]Selection
	Preferences Preferences
	Policy      OverlapPolicy
	// ECTSCeiling caps the load optional groups may fill up to; zero means no ceiling.
	ECTSCeiling float64
	// ECTSTarget defaults to the ceiling.
	ECTSTarget float64
	// MaxOptional caps the number of optional groups per schedule; zero means no cap.
	MaxOptional int
	K           int
	Budget      Budget
	Seed        int64
	// Weights defaults to DefaultWeights when left zero.
	Weights   Weights
	Annealing AnnealConfig
	// TargetCount is the number of schedules wanted before annealing is skipped; defaults to K.
	TargetCount int
	// TargetScore, when positive, also triggers annealing while the best cost is above it.
	TargetScore      float64
	RepairSwaps      int
	DisableAnnealing bool
}

// Stats summarizes the work done by a planning run.
type Stats struct {
	Strategies       []string      `json:"strategies"`
	Candidates       int           `json:"candidates"`
	Nodes            int           `json:"nodes"`
	Terminals        int           `json:"terminals"`
	AnnealIterations int           `json:"annealIterations"`
	AnnealAccepted   int           `json:"annealAccepted"`
	Repaired         int           `json:"repaired"`
	Exhaustive       bool          `json:"exhaustive"`
	Elapsed          time.Duration `json:"elapsed"`
	Trace            []float64     `json:"-"`
}

// Result is the ranked output of a planning run.
type Result struct {
	Schedules []*Schedule
	Truncated bool
	Cancelled bool
	Stats     Stats
}

// Best returns the top-ranked schedule or nil.
func (r *Result) Best() *Schedule {
	if r == nil || len(r.Schedules) == 0 {
		return nil
	}
	return r.Schedules[0]
}

func (in Input) problem(points []DecisionPoint) *Problem {
	weights := in.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	target := in.ECTSTarget
	if target <= 0 {
		target = in.ECTSCeiling
	}
	return &Problem{
		Points:      points,
		Policy:      in.Policy,
		ECTSCeiling: in.ECTSCeiling,
		MaxOptional: in.MaxOptional,
		K:           clampK(in.K),
		Scorer:      NewScorer(weights, target, in.Preferences),
	}
}

// Plan assembles decision points, enumerates schedules within budget and falls back to
// annealing when the enumeration was cut short before reaching the target. Budget
// exhaustion and cancellation are reported as flags; an empty search fails with
// ErrNoFeasibleSchedule naming the tightest violated constraint.
func Plan(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	points, err := Assemble(in.Catalog, in.Selection, in.Preferences)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, noFeasibleSchedule(Constraint{Kind: ConstraintNoCandidates, Detail: "no course groups selected"}, 0)
	}

	problem := in.problem(points)
	merged := newBestK(problem.K)
	res := &Result{Stats: Stats{Candidates: len(points)}}

	exhaustive := Exhaustive{Budget: in.Budget}
	out := exhaustive.Search(ctx, problem, nil)
	res.Stats.Strategies = append(res.Stats.Strategies, exhaustive.Name())
	res.Stats.Nodes = out.Nodes
	res.Stats.Terminals = out.Terminals
	res.Stats.Exhaustive = !out.Truncated && !out.Cancelled
	res.Truncated = out.Truncated
	res.Cancelled = out.Cancelled
	for _, s := range out.Schedules {
		merged.Offer(s)
	}

	if !res.Cancelled && !res.Stats.Exhaustive && !in.DisableAnnealing && in.wantsMore(merged) {
		cfg := in.Annealing
		cfg.Seed = in.Seed
		perturbative := Perturbative{Config: cfg}
		aout := perturbative.Search(ctx, problem, merged.Items())
		res.Stats.Strategies = append(res.Stats.Strategies, perturbative.Name())
		res.Stats.AnnealIterations = aout.Iterations
		res.Stats.AnnealAccepted = aout.Accepted
		res.Stats.Trace = aout.Trace
		res.Cancelled = aout.Cancelled
		for _, s := range aout.Schedules {
			merged.Offer(s)
		}
		if aout.NearMiss != nil && in.wantsMore(merged) {
			repaired := Repair(aout.NearMiss, problem, in.RepairSwaps)
			if repaired.Feasible && merged.Offer(repaired.Schedule) {
				res.Stats.Repaired++
			}
		}
	}

	res.Schedules = merged.Items()
	res.Stats.Elapsed = time.Since(start)
	if len(res.Schedules) == 0 && !res.Cancelled {
		return nil, noFeasibleSchedule(emptyConstraint(out), len(points))
	}
	return res, nil
}

func (in Input) wantsMore(found *bestK) bool {
	target := in.TargetCount
	if target <= 0 {
		target = clampK(in.K)
	}
	if found.Len() < target {
		return true
	}
	return in.TargetScore > 0 && found.items[0].Cost() > in.TargetScore
}

func emptyConstraint(out Outcome) Constraint {
	if out.Truncated {
		return Constraint{
			Kind:   ConstraintSearchBudget,
			Detail: fmt.Sprintf("search budget exhausted after %d nodes without a feasible schedule", out.Nodes),
		}
	}
	if out.Tightest != nil {
		return *out.Tightest
	}
	return Constraint{Kind: ConstraintNoCandidates, Detail: "no section combination covers the selection"}
}
