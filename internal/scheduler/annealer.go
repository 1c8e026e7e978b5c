package scheduler

import (
	"context"
	"math"
	"math/rand"
)

// AnnealConfig tunes the simulated-annealing search.
type AnnealConfig struct {
	Seed int64 `json:"seed"`
	// InitialTempFactor scales the observed cost spread into the starting temperature.
	InitialTempFactor float64 `json:"initialTempFactor"`
	// CoolingRate multiplies the temperature after every iteration; kept within [0.95, 0.99].
	CoolingRate       float64 `json:"coolingRate"`
	MinTemperature    float64 `json:"minTemperature"`
	MaxIterations     int     `json:"maxIterations"`
	InfeasiblePenalty float64 `json:"infeasiblePenalty"`
	// SpreadSamples is the number of seed neighbours probed when no spread is known.
	SpreadSamples int `json:"spreadSamples"`
}

// DefaultAnnealConfig returns the default annealing parameters.
func DefaultAnnealConfig() AnnealConfig {
	return AnnealConfig{
		InitialTempFactor: 1.0,
		CoolingRate:       0.97,
		MinTemperature:    1e-3,
		MaxIterations:     5000,
		InfeasiblePenalty: 100,
		SpreadSamples:     16,
	}
}

func (c AnnealConfig) withDefaults() AnnealConfig {
	def := DefaultAnnealConfig()
	if c.InitialTempFactor <= 0 {
		c.InitialTempFactor = def.InitialTempFactor
	}
	switch {
	case c.CoolingRate <= 0:
		c.CoolingRate = def.CoolingRate
	case c.CoolingRate < 0.95:
		c.CoolingRate = 0.95
	case c.CoolingRate > 0.99:
		c.CoolingRate = 0.99
	}
	if c.MinTemperature <= 0 {
		c.MinTemperature = def.MinTemperature
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.InfeasiblePenalty <= 0 {
		c.InfeasiblePenalty = def.InfeasiblePenalty
	}
	if c.SpreadSamples <= 0 {
		c.SpreadSamples = def.SpreadSamples
	}
	return c
}

// AnnealResult is the outcome of an annealing run.
type AnnealResult struct {
	// Schedules holds the best feasible schedules found that were not excluded.
	Schedules []*Schedule
	// NearMiss is the lowest-energy infeasible state visited, a candidate for repair.
	NearMiss *Schedule
	// Trace records the current energy after every accepted move.
	Trace       []float64
	Iterations  int
	Accepted    int
	Temperature float64
	Cancelled   bool
}

// Annealer perturbs schedules one group at a time.
type Annealer struct {
	cfg AnnealConfig
}

// NewAnnealer builds an annealer; unset fields take their defaults.
func NewAnnealer(cfg AnnealConfig) *Annealer {
	return &Annealer{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (a *Annealer) Config() AnnealConfig {
	return a.cfg
}

// annealState indexes the chosen section of every decision point, -1 when skipped.
type annealState []int

// Run anneals from seed, or from a random assignment when seed is nil. spread is the
// observed cost spread used to derive the starting temperature; exclude lists the
// footprints that must not be reported again.
func (a *Annealer) Run(ctx context.Context, p *Problem, seed *Schedule, spread float64, exclude map[string]struct{}) AnnealResult {
	rng := rand.New(rand.NewSource(a.cfg.Seed))
	policy := p.Policy.normalized()
	best := newBestK(p.K)
	var result AnnealResult

	if len(p.Points) == 0 {
		return result
	}

	current := a.initialState(rng, p, seed)
	currentSchedule := a.materialize(p, policy, current)
	currentEnergy := a.energy(currentSchedule)

	nearMissEnergy := math.Inf(1)
	observe := func(s *Schedule, energy float64) {
		if s.Len() == 0 {
			return
		}
		if s.Feasible() {
			if _, seen := exclude[s.footprint]; !seen {
				best.Offer(s)
			}
			return
		}
		if energy < nearMissEnergy {
			nearMissEnergy = energy
			result.NearMiss = s
		}
	}
	observe(currentSchedule, currentEnergy)

	mutable := func(state annealState) []int {
		var idx []int
		for i, choice := range state {
			if choice >= 0 && len(p.Points[i].Group.Sections) > 1 {
				idx = append(idx, i)
			}
		}
		return idx
	}

	temperature := a.cfg.InitialTempFactor * spread
	if temperature <= 0 {
		temperature = a.cfg.InitialTempFactor * a.sampleSpread(rng, p, policy, current, currentEnergy, mutable(current))
	}
	if temperature <= 0 {
		temperature = 1.0
	}

	for result.Iterations < a.cfg.MaxIterations && temperature > a.cfg.MinTemperature {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		candidates := mutable(current)
		if len(candidates) == 0 {
			break
		}
		result.Iterations++

		next, ok := a.neighbour(rng, p, current, currentSchedule, candidates)
		if ok {
			nextSchedule := a.materialize(p, policy, next)
			nextEnergy := a.energy(nextSchedule)
			observe(nextSchedule, nextEnergy)

			delta := nextEnergy - currentEnergy
			if delta <= 0 || rng.Float64() < math.Exp(-delta/temperature) {
				current, currentSchedule, currentEnergy = next, nextSchedule, nextEnergy
				result.Accepted++
				result.Trace = append(result.Trace, currentEnergy)
			}
		}
		temperature *= a.cfg.CoolingRate
	}

	result.Temperature = temperature
	result.Schedules = best.Items()
	return result
}

func (a *Annealer) energy(s *Schedule) float64 {
	return s.cost.Total + a.cfg.InfeasiblePenalty*float64(s.violation.Total())
}

// initialState maps the seed onto decision points or assembles a random seed: every
// mandatory group gets a random section and optional groups are added in random order
// while they fit the ECTS ceiling.
func (a *Annealer) initialState(rng *rand.Rand, p *Problem, seed *Schedule) annealState {
	state := make(annealState, len(p.Points))
	for i := range state {
		state[i] = -1
	}
	if seed != nil {
		for i, point := range p.Points {
			chosen, ok := seed.Section(point.Group.Code)
			if !ok {
				continue
			}
			for j, sec := range point.Group.Sections {
				if sec.ID() == chosen.ID() {
					state[i] = j
					break
				}
			}
		}
		return state
	}

	ects := 0.0
	var optional []int
	for i, point := range p.Points {
		if !point.Mandatory() {
			optional = append(optional, i)
			continue
		}
		state[i] = rng.Intn(len(point.Group.Sections))
		ects += point.Group.Sections[state[i]].ECTS
	}
	added := 0
	for _, k := range rng.Perm(len(optional)) {
		i := optional[k]
		if p.MaxOptional > 0 && added >= p.MaxOptional {
			break
		}
		point := p.Points[i]
		j := rng.Intn(len(point.Group.Sections))
		if !p.optionalFits(ects, point.Group.Sections[j].ECTS) {
			continue
		}
		state[i] = j
		ects += point.Group.Sections[j].ECTS
		added++
	}
	return state
}

// neighbour re-rolls one group to a different section chosen uniformly. Moves that push
// a load already above the ECTS ceiling further up are rejected.
func (a *Annealer) neighbour(rng *rand.Rand, p *Problem, state annealState, current *Schedule, candidates []int) (annealState, bool) {
	i := candidates[rng.Intn(len(candidates))]
	sections := p.Points[i].Group.Sections
	pick := rng.Intn(len(sections) - 1)
	if pick >= state[i] {
		pick++
	}
	ects := current.ects - sections[state[i]].ECTS + sections[pick].ECTS
	if p.ECTSCeiling > 0 && ects > p.ECTSCeiling+costEpsilon && ects > current.ects {
		return nil, false
	}
	next := append(annealState(nil), state...)
	next[i] = pick
	return next, true
}

func (a *Annealer) sampleSpread(rng *rand.Rand, p *Problem, policy OverlapPolicy, state annealState, energy float64, candidates []int) float64 {
	if len(candidates) == 0 {
		return 0
	}
	current := a.materialize(p, policy, state)
	low, high := energy, energy
	for n := 0; n < a.cfg.SpreadSamples; n++ {
		next, ok := a.neighbour(rng, p, state, current, candidates)
		if !ok {
			continue
		}
		e := a.energy(a.materialize(p, policy, next))
		low = math.Min(low, e)
		high = math.Max(high, e)
	}
	return high - low
}

func (a *Annealer) materialize(p *Problem, policy OverlapPolicy, state annealState) *Schedule {
	entries := make([]Entry, 0, len(state))
	for i, choice := range state {
		if choice < 0 {
			continue
		}
		point := p.Points[i]
		entries = append(entries, Entry{Section: point.Group.Sections[choice], Selection: point.Selection})
	}
	return buildSchedule(entries, policy, p.Scorer)
}
