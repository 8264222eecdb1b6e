// Copyright 2025 Certen Protocol
//
// RED (Regressive Entropic Displacement) engine - the non-ML salience
// engine. Per spec §4.D.

package red

import (
	"log"
	"math"
	"os"
	"sync"
)

const (
	// DefaultDimensions is D, the fixed dimensionality of p, q, and L.
	DefaultDimensions uint32 = 65536

	// DefaultLearningRate is η.
	DefaultLearningRate = 0.1

	// epsilon floors q during KL computation so log(0) never occurs.
	epsilon = 1e-10

	// reframeBlend is α, the posterior/prior blend weight on reframe.
	reframeBlend = 0.1

	// fallbackScore is returned, with a log line, when an operation is
	// given invalid input - spec §7: "RED errors are non-fatal: if
	// inputs are invalid, the engine returns 0.5 and logs."
	fallbackScore = 0.5
)

// Engine holds one vault's RED state: a fixed prior p, posterior q, and
// cumulative loss L over dims dimensions. RED state is node-local
// advisory state, never part of the chain's canonical hash (spec §5).
type Engine struct {
	mu sync.Mutex

	dims uint32
	eta  float64

	p []float64
	q []float64
	l []float64

	observations uint64
	retrievals   uint64

	log *log.Logger
}

// Option configures a new Engine.
type Option func(*Engine)

// WithDimensions overrides D (default 65536).
func WithDimensions(dims uint32) Option {
	return func(e *Engine) { e.dims = dims }
}

// WithLearningRate overrides η (default 0.1).
func WithLearningRate(eta float64) Option {
	return func(e *Engine) { e.eta = eta }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine constructs an Engine with p = q = uniform, L = 0.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		dims: DefaultDimensions,
		eta:  DefaultLearningRate,
		log:  log.New(os.Stderr, "[RED] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.p = uniform(e.dims)
	e.q = uniform(e.dims)
	e.l = make([]float64, e.dims)
	return e
}

func uniform(dims uint32) []float64 {
	out := make([]float64, dims)
	u := 1.0 / float64(dims)
	for i := range out {
		out[i] = u
	}
	return out
}

// Dimensions returns D, the fixed dimensionality new feature vectors for
// this engine must be encoded against.
func (e *Engine) Dimensions() uint32 {
	return e.dims
}

// Observations returns the number of Observe calls so far.
func (e *Engine) Observations() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observations
}

// Retrievals returns the number of Feedback calls since the last Reframe.
func (e *Engine) Retrievals() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.retrievals
}

// Snapshot returns a copy of the current posterior, for later use with
// Displacement.
func (e *Engine) Snapshot() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.q))
	copy(out, e.q)
	return out
}

// Observe updates the posterior from an observed feature vector:
// q[d] *= (1 + η·w) for each nonzero (d, w), then renormalizes.
func (e *Engine) Observe(v *SparseVector) {
	if v == nil {
		e.log.Printf("observe: nil vector, ignoring")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for d, w := range v.Nonzero() {
		if int(d) >= len(e.q) {
			continue
		}
		e.q[d] *= 1 + e.eta*w
	}
	renormalize(e.q)
	e.observations++
}

// Feedback applies multiplicative-weights feedback from a retrieval
// outcome: loss ℓ = 0 if useful else 1; L[d] += ℓ·w; q[d] *= exp(-η·ℓ·w);
// renormalizes.
func (e *Engine) Feedback(v *SparseVector, useful bool) {
	if v == nil {
		e.log.Printf("feedback: nil vector, ignoring")
		return
	}
	loss := 0.0
	if !useful {
		loss = 1.0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for d, w := range v.Nonzero() {
		if int(d) >= len(e.q) {
			continue
		}
		e.l[d] += loss * w
		e.q[d] *= math.Exp(-e.eta * loss * w)
	}
	renormalize(e.q)
	e.retrievals++
}

// Entropy computes novelty for v: KL(p' ‖ q) with p' = v.ToDistribution()
// and an ε floor on q, mapped through sigmoid(KL − 1) into (0, 1).
// Returns 0.5 (and logs) for a nil vector, per the RED non-fatal error
// policy.
func (e *Engine) Entropy(v *SparseVector) float64 {
	if v == nil {
		e.log.Printf("entropy: nil vector, returning fallback score")
		return fallbackScore
	}
	dist := v.ToDistribution()

	e.mu.Lock()
	defer e.mu.Unlock()

	var kl float64
	for d, p := range dist.Nonzero() {
		qd := epsilon
		if int(d) < len(e.q) && e.q[d] > epsilon {
			qd = e.q[d]
		}
		kl += p * math.Log(p/qd)
	}
	return sigmoid(kl - 1)
}

// Displacement reports learning pressure since qOld was snapshotted:
// KL(q ‖ q_old).
func (e *Engine) Displacement(qOld []float64) float64 {
	if qOld == nil {
		e.log.Printf("displacement: nil snapshot, returning fallback score")
		return fallbackScore
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var kl float64
	for d := range e.q {
		qd := e.q[d]
		if qd <= 0 {
			continue
		}
		old := epsilon
		if d < len(qOld) && qOld[d] > epsilon {
			old = qOld[d]
		}
		kl += qd * math.Log(qd/old)
	}
	return kl
}

// Reframe is periodic consolidation: average loss per dimension over
// the retrievals since the last reframe becomes the new prior via
// softmax(1/(1+L̄)); L resets to 0; the posterior blends toward the new
// prior at α=0.1 and renormalizes. A no-op if no feedback has been
// recorded.
func (e *Engine) Reframe() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retrievals == 0 {
		return
	}

	lbar := make([]float64, len(e.l))
	logits := make([]float64, len(e.l))
	for d, l := range e.l {
		lbar[d] = l / float64(e.retrievals)
		logits[d] = 1 / (1 + lbar[d])
	}
	softmaxInPlace(logits)
	e.p = logits

	for d := range e.l {
		e.l[d] = 0
	}
	e.retrievals = 0

	for d := range e.q {
		e.q[d] = (1-reframeBlend)*e.q[d] + reframeBlend*e.p[d]
	}
	renormalize(e.q)
}

// Score computes the combined salience score for an observation:
// 0.4·entropy(v) + 0.3·min(c/3, 1) + 0.3·(1 − exp(−t/86400)).
func (e *Engine) Score(v *SparseVector, conflictCount int, secondsSinceLastSimilar float64) float64 {
	if v == nil {
		e.log.Printf("score: nil vector, returning fallback score")
		return fallbackScore
	}
	novelty := e.Entropy(v)
	conflictTerm := math.Min(float64(conflictCount)/3.0, 1.0)
	recencyTerm := 1 - math.Exp(-secondsSinceLastSimilar/86400)
	return 0.4*novelty + 0.3*conflictTerm + 0.3*recencyTerm
}

func renormalize(dist []float64) {
	var sum float64
	for _, x := range dist {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i, x := range dist {
		dist[i] = x / sum
	}
}

func softmaxInPlace(logits []float64) {
	max := math.Inf(-1)
	for _, x := range logits {
		if x > max {
			max = x
		}
	}
	var sum float64
	for i, x := range logits {
		e := math.Exp(x - max)
		logits[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i, x := range logits {
		logits[i] = x / sum
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
