package pipeline

import (
	"sync"
	"time"
)

// Phase is a timed segment of a run used for ETA estimates.
type Phase string

const (
	PhaseGenerate Phase = "llm"
	PhaseCompile  Phase = "compile"
	PhaseRefine   Phase = "refine"
)

const defaultETAAlpha = 0.3

// Seed estimates used until a phase has been observed once.
var defaultPhaseSeeds = map[Phase]time.Duration{
	PhaseGenerate: 45 * time.Second,
	PhaseCompile:  6 * time.Second,
	PhaseRefine:   30 * time.Second,
}

// ETAEstimator keeps an exponentially smoothed moving average of phase
// durations. It is safe for concurrent use and is shared across runs.
type ETAEstimator struct {
	mu    sync.Mutex
	alpha float64
	avg   map[Phase]time.Duration
}

// NewETAEstimator uses alpha 0.3 when alpha is outside (0, 1].
func NewETAEstimator(alpha float64) *ETAEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = defaultETAAlpha
	}
	avg := make(map[Phase]time.Duration, len(defaultPhaseSeeds))
	for p, d := range defaultPhaseSeeds {
		avg[p] = d
	}
	return &ETAEstimator{alpha: alpha, avg: avg}
}

// Observe folds one measured duration into the phase average.
func (e *ETAEstimator) Observe(phase Phase, d time.Duration) {
	if e == nil || d < 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	prev, ok := e.avg[phase]
	if !ok {
		e.avg[phase] = d
		return
	}
	e.avg[phase] = time.Duration(e.alpha*float64(d) + (1-e.alpha)*float64(prev))
}

// Average returns the current smoothed duration for phase.
func (e *ETAEstimator) Average(phase Phase) time.Duration {
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avg[phase]
}

// Remaining sums the averages of the phases still ahead, rounded up to whole
// seconds.
func (e *ETAEstimator) Remaining(phases ...Phase) int {
	var total time.Duration
	for _, p := range phases {
		total += e.Average(p)
	}
	return int((total + time.Second - 1) / time.Second)
}
