package sim

import (
	"fmt"
	"log"
	"time"

	"github.com/astroseed/gosph/internal/config"
	"github.com/astroseed/gosph/internal/integrals"
	"github.com/astroseed/gosph/internal/integrator"
	"github.com/astroseed/gosph/internal/runs"
	"github.com/astroseed/gosph/internal/sched"
	"github.com/astroseed/gosph/internal/snapshot"
	"github.com/astroseed/gosph/internal/stats"
	"github.com/astroseed/gosph/internal/timestep"
)

// computeRetries bounds the rollback-and-halve attempts per step.
const computeRetries = 3

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Steps     int
	DtHistory []float64
	Snapshots []string
	Integrals map[string]float64
}

// Runner drives the reference gravity simulation from a configuration.
type Runner struct {
	cfg    *config.Config
	logger *log.Logger
}

func NewRunner(cfg *config.Config, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// BuildCriterion assembles the composite step criterion from the
// timestepping block; an empty criteria list disables step election.
func BuildCriterion(tc config.TimesteppingConfig) (timestep.Criterion, error) {
	var crits []timestep.Criterion
	for _, name := range tc.Criteria {
		switch name {
		case "courant":
			crits = append(crits, &timestep.CourantCriterion{Factor: tc.CourantNumber, Power: tc.MeanPower})
		case "acceleration":
			crits = append(crits, &timestep.AccelerationCriterion{Power: tc.MeanPower})
		case "derivative":
			crits = append(crits, &timestep.DerivativeCriterion{Factor: tc.DerivativeFactor, Power: tc.MeanPower})
		default:
			return nil, fmt.Errorf("sim: unknown timestep criterion %q", name)
		}
	}
	if len(crits) == 0 {
		return nil, nil
	}
	return timestep.NewMultiCriterion(tc.MaxChange, tc.InitialStep, crits...), nil
}

// BuildScheduler returns the configured backend and its stop function.
func BuildScheduler(rc config.RunConfig) (sched.Scheduler, func(), error) {
	switch rc.Scheduler {
	case "sequential":
		return sched.Sequential{}, func() {}, nil
	case "stealing":
		s := sched.NewStealing(rc.Threads)
		return s, s.Stop, nil
	case "", "pool":
		p := sched.NewPool(rc.Threads)
		return p, p.Stop, nil
	default:
		return nil, nil, fmt.Errorf("sim: unknown scheduler %q", rc.Scheduler)
	}
}

func (r *Runner) Run() (*Result, error) {
	cfg := r.cfg
	scheduler, stop, err := BuildScheduler(cfg.Run)
	if err != nil {
		return nil, err
	}
	defer stop()

	store, err := NewOrbitCloud(cfg.Run.Particles, 42)
	if err != nil {
		return nil, err
	}
	solver := NewGravitySolver(1, cloudSmoothing)
	mat, err := store.Material(0)
	if err != nil {
		return nil, err
	}
	if err := solver.Create(store, mat.Material); err != nil {
		return nil, err
	}

	criterion, err := BuildCriterion(cfg.Timestepping)
	if err != nil {
		return nil, err
	}
	integ, err := integrator.New(integrator.Kind(cfg.Timestepping.Integrator), store, integrator.Options{
		InitialStep:       cfg.Timestepping.InitialStep,
		MaxStep:           cfg.Timestepping.MaxStep,
		Criterion:         criterion,
		SaveParticleSteps: cfg.Timestepping.SaveSteps,
		MaxRetries:        computeRetries,
	})
	if err != nil {
		return nil, err
	}

	runStore := runs.New(cfg.Output.Directory)
	run, err := runStore.NewRun(cfg.Output.RunName)
	if err != nil {
		return nil, err
	}

	observers := []integrals.Integral{
		integrals.NewTotalMass(),
		integrals.NewTotalMomentum(),
		integrals.NewKineticEnergy(),
	}
	snapOpts := snapshot.Options{Compact: cfg.Output.Compact, RunType: snapshot.NoRunType}

	st := stats.New()
	result := &Result{RunID: run.ID, Integrals: make(map[string]float64)}
	t := 0.0
	nextDump := 0.0
	snapIdx := 0
	started := time.Now()

	dump := func() error {
		st.Set(stats.RunTime, t)
		st.Set(stats.WallclockTime, float64(time.Since(started).Milliseconds()))
		path := run.SnapshotPath(snapIdx)
		if err := snapshot.Write(path, store, st, snapOpts); err != nil {
			return err
		}
		result.Snapshots = append(result.Snapshots, path)
		snapIdx++
		return nil
	}

	r.logger.Printf("run %s: %d particles, integrator %s", run.ID, store.ParticleCount(), cfg.Timestepping.Integrator)
	for t < cfg.Run.Duration {
		if t >= nextDump {
			if err := dump(); err != nil {
				return nil, err
			}
			nextDump += cfg.Run.OutputInterval
		}

		dt := integ.TimeStep()
		st.Set(stats.RunTime, t)
		if err := integ.Step(scheduler, solver, st); err != nil {
			// preserve the failing state for post-mortem inspection
			if derr := dump(); derr != nil {
				r.logger.Printf("run %s: diagnostic snapshot failed: %v", run.ID, derr)
			}
			return nil, err
		}
		t += dt
		result.Steps++
		result.DtHistory = append(result.DtHistory, dt)
		st.Increment(stats.RunIndex)
	}

	st.Set(stats.RunTime, t)
	if err := dump(); err != nil {
		return nil, err
	}

	for _, obs := range observers {
		obs.Observe(store, t)
		result.Integrals[obs.Name()] = obs.Value()
	}

	meta := runs.Metadata{
		ID:          run.ID,
		Timestamp:   started,
		Integrator:  cfg.Timestepping.Integrator,
		Particles:   store.ParticleCount(),
		Duration:    cfg.Run.Duration,
		InitialStep: cfg.Timestepping.InitialStep,
		Steps:       result.Steps,
		Snapshots:   result.Snapshots,
		Integrals:   result.Integrals,
	}
	if err := runStore.SaveMetadata(run, meta); err != nil {
		return nil, err
	}
	r.logger.Printf("run %s: %d steps in %s", run.ID, result.Steps, time.Since(started).Round(time.Millisecond))
	return result, nil
}
