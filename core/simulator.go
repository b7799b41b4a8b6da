// core/simulator.go
package core

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/logging"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/observability"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/timectrl"
)

// DebugIterationPrint is how often (in ticks) the run loop logs a full
// statistics line.
const DebugIterationPrint = 10

// SimulationInput is everything the loaders hand the engine: the built
// geography, the citizen roster, the disease model, the intervention
// configuration and the global seed.
type SimulationInput struct {
	Region   string
	Areas    []model.OutputArea
	Citizens []model.Citizen
	Disease  model.DiseaseModel

	Interventions InterventionConfig
	KindParams    [model.NumBuildingKinds]model.KindParams

	Seed uint64
	// Weekends enables the weekend stay-at-home calendar.
	Weekends bool
	StartDay timectrl.DayOfWeek
}

// Config carries the engine's runtime wiring.
type Config struct {
	// Threads is the worker count for the parallel phases. 0 means 1.
	Threads int
	Logger  logging.Logger
	// Collector receives per-tick gauges; nil disables metrics.
	Collector *observability.SimulationCollector
	// TracerProvider emits a span per tick with child spans per phase;
	// nil disables tracing.
	TracerProvider trace.TracerProvider
	// Trajectory, when set, receives the per-citizen status trajectory.
	Trajectory io.Writer
}

// Simulator owns all simulation state and advances it one tick at a
// time. It is constructed once from loader outputs and mutated only by
// Step; citizens are never written concurrently from two threads within
// a phase.
type Simulator struct {
	log    logging.Logger
	tracer trace.Tracer

	clock      *timectrl.Clock
	areas      []model.OutputArea
	areaIndex  *model.AreaIndex
	citizens   []model.Citizen
	disease    model.DiseaseModel
	kindParams [model.NumBuildingKinds]model.KindParams

	controller *Controller
	recorder   *Recorder
	collector  *observability.SimulationCollector

	seed     uint64
	threads  int
	weekends bool

	tick int
	eff  Effects

	// Flat building enumeration: buildingOffset[area] + local is the
	// global building index used for RNG keying and the occupancy arena.
	buildingOffset []int32
	flatBuildings  []*model.Building

	// Occupancy arena, reused across ticks.
	occCounts []int32
	occStarts []int32
	occCursor []int32
	occArena  []int32

	// Per-worker exposure buffers, reused across ticks.
	expBuffers [][]exposureEvent

	// eligible holds the dense indices of citizens currently eligible
	// for vaccination, in ascending order.
	eligible     []int32
	eligibleNext []int32

	clampWarned atomic.Bool

	// Previous cumulative totals, for per-tick metric deltas.
	prevExposures, prevDeaths, prevVaccinations uint64

	tickListeners []func(TickStats)
}

// NewSimulator validates the input and builds the engine state. All
// configuration errors surface here, before any ticks run.
func NewSimulator(input *SimulationInput, cfg Config) (*Simulator, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Noop()
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}

	disease := input.Disease.ApplyDefaults()
	if err := disease.Validate(); err != nil {
		return nil, err
	}
	if len(input.Citizens) == 0 {
		return nil, fmt.Errorf("%w: no citizens", model.ErrInvalidDiseaseModel)
	}

	areaIndex := model.NewAreaIndex()
	for i := range input.Areas {
		idx, err := areaIndex.Add(input.Areas[i].Code)
		if err != nil {
			return nil, err
		}
		if idx != input.Areas[i].Index {
			return nil, fmt.Errorf("area %q has index %d, expected %d",
				input.Areas[i].Code, input.Areas[i].Index, idx)
		}
	}
	areaIndex.Freeze()

	var tracer trace.Tracer
	if cfg.TracerProvider != nil {
		tracer = cfg.TracerProvider.Tracer("simulator")
	} else {
		tracer = noop.NewTracerProvider().Tracer("simulator")
	}

	s := &Simulator{
		log:        log,
		tracer:     tracer,
		clock:      timectrl.NewClock(time.Time{}, input.StartDay),
		areas:      input.Areas,
		areaIndex:  areaIndex,
		citizens:   input.Citizens,
		disease:    disease,
		kindParams: input.KindParams,
		controller: NewController(input.Interventions, log),
		recorder:   NewRecorder(cfg.Trajectory),
		collector:  cfg.Collector,
		seed:       input.Seed,
		threads:    threads,
		weekends:   input.Weekends,
	}
	if s.kindParams == ([model.NumBuildingKinds]model.KindParams{}) {
		s.kindParams = model.DefaultKindParams()
	}

	// Flatten buildings for the kernel partition and the arena.
	s.buildingOffset = make([]int32, len(s.areas)+1)
	for i := range s.areas {
		s.buildingOffset[i+1] = s.buildingOffset[i] + int32(len(s.areas[i].Buildings))
	}
	total := int(s.buildingOffset[len(s.areas)])
	s.flatBuildings = make([]*model.Building, 0, total)
	for i := range s.areas {
		for j := range s.areas[i].Buildings {
			s.flatBuildings = append(s.flatBuildings, &s.areas[i].Buildings[j])
		}
	}

	s.occCounts = make([]int32, total)
	s.occStarts = make([]int32, total+1)
	s.occCursor = make([]int32, total)
	s.occArena = make([]int32, len(s.citizens))
	s.expBuffers = make([][]exposureEvent, threads)

	// Validate citizen references and schedules; seed the eligible set.
	for i := range s.citizens {
		c := &s.citizens[i]
		if int(c.ID.Index) != i {
			return nil, fmt.Errorf("citizen %d has dense index %d", i, c.ID.Index)
		}
		if _, err := s.resolveBuilding(c.Household); err != nil {
			return nil, fmt.Errorf("citizen %d household: %w", i, err)
		}
		if _, err := s.resolveBuilding(c.Workplace); err != nil {
			return nil, fmt.Errorf("citizen %d workplace: %w", i, err)
		}
		if err := c.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("citizen %d: %w", i, err)
		}
		if c.Current.IsZero() {
			c.Current = c.Household
		}
		if c.Status.Kind == model.Susceptible {
			s.eligible = append(s.eligible, int32(i))
		}
	}
	s.eligibleNext = make([]int32, 0, len(s.eligible))
	s.recorder.SetAreaCount(len(s.areas))

	log.Info(context.Background(), "simulator initialised",
		logging.String("region", input.Region),
		logging.Int("areas", len(s.areas)),
		logging.Int("buildings", total),
		logging.Int("citizens", len(s.citizens)),
		logging.Int("threads", threads))
	if s.collector != nil {
		s.collector.SetScenarioSize(len(s.areas), total, len(s.citizens))
	}
	return s, nil
}

// RegisterTickListener adds a callback invoked with the snapshot after
// every tick.
func (s *Simulator) RegisterTickListener(fn func(TickStats)) {
	s.tickListeners = append(s.tickListeners, fn)
}

// Recorder exposes the statistics recorder.
func (s *Simulator) Recorder() *Recorder { return s.recorder }

// Tick returns the number of completed ticks.
func (s *Simulator) Tick() int { return s.tick }

// Citizen returns a read-only view of one citizen. Test and reporting
// helper; not for use inside a phase.
func (s *Simulator) Citizen(index int32) *model.Citizen {
	return &s.citizens[index]
}

// resolveBuilding maps a building id to its global index, checking that
// the reference is live.
func (s *Simulator) resolveBuilding(id model.BuildingID) (int32, error) {
	if id.Area < 0 || int(id.Area) >= len(s.areas) {
		return 0, fmt.Errorf("%w: area index %d", model.ErrUnknownArea, id.Area)
	}
	if id.Local < 0 || int(id.Local) >= len(s.areas[id.Area].Buildings) {
		return 0, fmt.Errorf("dangling building reference %s", id)
	}
	return s.buildingOffset[id.Area] + id.Local, nil
}

// mustResolveBuilding is resolveBuilding for the hot loop, where a
// dangling id is a fatal invariant violation.
func (s *Simulator) mustResolveBuilding(id model.BuildingID, citizen int32) int32 {
	g, err := s.resolveBuilding(id)
	if err != nil {
		panic(fmt.Sprintf("tick %d: citizen %d: %v", s.tick, citizen, err))
	}
	return g
}

// Run advances the simulation until MaxTimeStep, the disease dies out,
// or ctx is cancelled. Cancellation is only observed between ticks.
func (s *Simulator) Run(ctx context.Context) error {
	start := time.Now()
	s.log.Info(ctx, "starting simulation", logging.Int("max_ticks", s.disease.MaxTimeStep))
	for s.tick < s.disease.MaxTimeStep {
		if err := ctx.Err(); err != nil {
			s.log.Warn(ctx, "simulation cancelled", logging.Tick(s.tick))
			return err
		}
		stats := s.Step(ctx)
		if s.tick%DebugIterationPrint == 0 {
			s.log.Info(ctx, "progress",
				logging.Duration("elapsed", time.Since(start)),
				logging.String("stats", stats.String()))
		}
		if !stats.DiseaseExists() && s.tick > 1 {
			s.log.Info(ctx, "disease died out", logging.Tick(s.tick))
			break
		}
	}
	s.log.Info(ctx, "simulation finished",
		logging.Int("ticks", s.tick),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

// Step advances the simulation by one tick. Phases run in a fixed order
// with a barrier between each; within a phase all operations commute, so
// results are independent of thread count.
func (s *Simulator) Step(ctx context.Context) TickStats {
	tickStart := time.Now()
	ctx, span := s.tracer.Start(ctx, "tick", trace.WithAttributes(attribute.Int("tick", s.tick)))
	defer span.End()

	// Phase 1: intervention evaluation, single threaded.
	_, ivSpan := s.tracer.Start(ctx, "interventions")
	s.eff = s.controller.Evaluate(ctx, s.tick, s.recorder.Latest().InfectedPercentage())
	ivSpan.End()

	// Phase 2: schedule & move, parallel over citizens.
	_, mvSpan := s.tracer.Start(ctx, "move")
	s.advancePositions()
	mvSpan.End()

	// Phase 3: occupant-list rebuild.
	_, rbSpan := s.tracer.Start(ctx, "rebuild")
	s.rebuildOccupants()
	rbSpan.End()

	// Phase 4: exposure kernel, parallel over buildings.
	_, exSpan := s.tracer.Start(ctx, "exposures")
	exposures := s.computeExposures(ctx)
	exSpan.End()

	// Phase 5: state-machine apply, merges the exposure buffer.
	_, apSpan := s.tracer.Start(ctx, "apply")
	s.applyTransitions(exposures)
	apSpan.End()

	// Phase 6: statistics.
	stats := s.recorder.EndTick()
	if s.collector != nil {
		s.collector.ObserveTick(statusCounts(stats), time.Since(tickStart))
		s.collector.AddEvents(
			s.recorder.ExposuresTotal()-s.prevExposures,
			s.recorder.DeathsTotal()-s.prevDeaths,
			s.recorder.VaccinationsTotal()-s.prevVaccinations)
		s.prevExposures = s.recorder.ExposuresTotal()
		s.prevDeaths = s.recorder.DeathsTotal()
		s.prevVaccinations = s.recorder.VaccinationsTotal()
	}
	s.tick++
	for _, fn := range s.tickListeners {
		fn(stats)
	}
	return stats
}

// statusCounts adapts a snapshot for the metrics collector.
func statusCounts(stats TickStats) map[string]float64 {
	out := make(map[string]float64, model.NumStatusKinds)
	for k := model.StatusKind(0); k < model.NumStatusKinds; k++ {
		out[k.String()] = float64(stats.Counts[k])
	}
	return out
}

// warnClamp logs the out-of-range probability warning once per run.
func (s *Simulator) warnClamp(p float64) {
	if s.clampWarned.CompareAndSwap(false, true) {
		s.log.Warn(context.Background(), "exposure probability clamped to [0,1]",
			logging.Tick(s.tick),
			logging.Any("probability", p))
	}
}
