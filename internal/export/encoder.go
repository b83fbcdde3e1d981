package export

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// StepsPerPhase is the number of progress steps each phase is divided into.
const StepsPerPhase = 5

// minStepDelay is the floor of a simulated step before jitter.
const minStepDelay = 50 * time.Millisecond

// maxStepJitter is the exclusive upper bound of the random delay added to each simulated step.
const maxStepJitter = 75 * time.Millisecond

// PhaseSpec describes one pipeline stage.
type PhaseSpec struct {
	Phase       domain.ExportPhase
	MinProgress int
	MaxProgress int
	// Duration is the nominal wall time of the phase in the simulated encoder.
	Duration time.Duration
}

// Pipeline is the fixed phase sequence every job runs through.
var Pipeline = []PhaseSpec{
	{domain.PhaseInitializing, 0, 10, 250 * time.Millisecond},
	{domain.PhasePreprocessing, 10, 30, 400 * time.Millisecond},
	{domain.PhaseEncoding, 30, 60, 700 * time.Millisecond},
	{domain.PhaseOptimizing, 60, 80, 450 * time.Millisecond},
	{domain.PhaseWatermarking, 80, 90, 250 * time.Millisecond},
	{domain.PhaseFinalizing, 90, 100, 350 * time.Millisecond},
}

// Encoder does the work behind each pipeline step.
//
// Step is called StepsPerPhase times per phase after the job's progress has
// been advanced for that step; it should block for the duration of the unit
// of work and honour ctx, which carries the phase deadline. Finalize is
// called once after the last phase and returns the output's metadata. Both
// receive a snapshot of the job; mutating it has no effect.
type Encoder interface {
	Step(ctx context.Context, job *domain.ExportJob, phase PhaseSpec, step int) error
	Finalize(ctx context.Context, job *domain.ExportJob) (*domain.ExportMetadata, error)
}

// SimulatedEncoder sleeps through each step and synthesizes metadata.
// Each step lasts max(phase duration / StepsPerPhase, 50ms) plus up to 75ms of
// jitter, multiplied by Scale. A zero Scale makes every step instant.
type SimulatedEncoder struct {
	Scale float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedEncoder creates a simulated encoder with the given delay scale.
func NewSimulatedEncoder(scale float64) *SimulatedEncoder {
	return &SimulatedEncoder{
		Scale: scale,
		rnd:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // Simulation jitter
	}
}

// StepDelay returns how long a step of phase would take, before jitter and scaling.
func StepDelay(phase PhaseSpec) time.Duration {
	return max(phase.Duration/StepsPerPhase, minStepDelay)
}

// Step implements Encoder.
func (e *SimulatedEncoder) Step(ctx context.Context, _ *domain.ExportJob, phase PhaseSpec, _ int) error {
	if e.Scale <= 0 {
		return ctx.Err()
	}

	e.mu.Lock()
	jitter := time.Duration(e.rnd.Int64N(int64(maxStepJitter)))
	e.mu.Unlock()

	delay := time.Duration(float64(StepDelay(phase)+jitter) * e.Scale)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Finalize implements Encoder with SynthesizeMetadata.
func (e *SimulatedEncoder) Finalize(ctx context.Context, job *domain.ExportJob) (*domain.ExportMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return SynthesizeMetadata(job, e.rnd), nil
}
