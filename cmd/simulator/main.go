package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gosuri/uiprogress"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/core"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/logging"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/observability"
)

type arguments struct {
	region      string
	directory   string
	gridSize    int
	simulate    bool
	useCache    bool
	outputName  string
	threads     int
	seed        uint64
	maxTicks    int
	metricsAddr string
	trajectory  bool
	progress    bool
}

func parseArgs(args []string, stderr io.Writer) (*arguments, error) {
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)

	a := &arguments{}
	fs.StringVar(&a.directory, "directory", "data", "directory holding scenario and cache files")
	fs.IntVar(&a.gridSize, "grid-size", 250, "spacing of synthetic output areas in metres")
	fs.BoolVar(&a.simulate, "simulate", false, "run the simulation after loading")
	fs.BoolVar(&a.useCache, "use-cache", false, "reuse a cached pre-built population when present")
	fs.StringVar(&a.outputName, "output_name", "simulation", "path prefix for statistics and summary outputs")
	fs.IntVar(&a.threads, "threads", runtime.NumCPU(), "worker threads for the parallel phases")
	fs.Uint64Var(&a.seed, "seed", 42, "global RNG seed")
	fs.IntVar(&a.maxTicks, "max-ticks", 0, "override the disease model's maximum tick count")
	fs.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty disables)")
	fs.BoolVar(&a.trajectory, "trajectory", false, "write the per-citizen status trajectory (large)")
	fs.BoolVar(&a.progress, "progress", true, "show a progress bar during the run")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: simulator [flags] <region-code>")
		return nil, fmt.Errorf("expected exactly one region code, got %d arguments", fs.NArg())
	}
	a.region = fs.Arg(0)
	return a, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	a, err := parseArgs(args, stderr)
	if err != nil {
		return 1
	}

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	tp, shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "tracing init failed", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	input, err := buildOrLoadPopulation(ctx, a, log)
	if err != nil {
		log.Error(ctx, "population load failed", logging.Err(err))
		return 1
	}
	if a.maxTicks > 0 {
		input.Disease.MaxTimeStep = a.maxTicks
	}
	fmt.Fprintf(stdout, "Loaded region %s: %d output areas, %d citizens\n",
		a.region, len(input.Areas), len(input.Citizens))

	if !a.simulate {
		return 0
	}

	var collector *observability.SimulationCollector
	if a.metricsAddr != "" {
		collector, err = observability.NewSimulationCollector(nil)
		if err != nil {
			log.Error(ctx, "metrics init failed", logging.Err(err))
			return 1
		}
		go func() {
			if err := http.ListenAndServe(a.metricsAddr, collector.Handler()); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.Err(err))
			}
		}()
	}

	var trajectory io.WriteCloser
	if a.trajectory {
		trajectory, err = os.Create(a.outputName + "_trajectory.csv")
		if err != nil {
			log.Error(ctx, "creating trajectory output failed", logging.Err(err))
			return 1
		}
		defer trajectory.Close()
	}

	var trajectoryWriter io.Writer
	if trajectory != nil {
		trajectoryWriter = trajectory
	}
	sim, err := core.NewSimulator(input, core.Config{
		Threads:        a.threads,
		Logger:         log,
		Collector:      collector,
		TracerProvider: tp,
		Trajectory:     trajectoryWriter,
	})
	if err != nil {
		log.Error(ctx, "simulator construction failed", logging.Err(err))
		return 1
	}

	if a.progress {
		uiprogress.Start()
		bar := uiprogress.AddBar(input.Disease.MaxTimeStep).AppendCompleted().PrependElapsed()
		sim.RegisterTickListener(func(core.TickStats) { bar.Incr() })
		defer uiprogress.Stop()
	}

	if err := runSimulation(ctx, sim, a, log); err != nil {
		return 1
	}

	if err := writeOutputs(a, sim); err != nil {
		log.Error(ctx, "writing outputs failed", logging.Err(err))
		return 1
	}
	fmt.Fprintf(stdout, "Simulation complete after %d ticks; outputs at %s_*\n", sim.Tick(), a.outputName)
	return 0
}

// runSimulation runs the tick loop, converting an invariant panic into a
// crash dump and an error so the process exits non-zero instead of
// unwinding silently.
func runSimulation(ctx context.Context, sim *core.Simulator, a *arguments, log logging.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "invariant violation", logging.Any("panic", r))
			writeCrashDump(a.outputName+"_crash.json", sim, r, log)
			err = fmt.Errorf("invariant violation: %v", r)
		}
	}()
	return sim.Run(ctx)
}

// buildOrLoadPopulation resolves the region's population: cache first
// when allowed, then a scenario file, then the synthetic builder.
func buildOrLoadPopulation(ctx context.Context, a *arguments, log logging.Logger) (*core.SimulationInput, error) {
	cachePath := filepath.Join(a.directory, a.region+"_population.cache")
	if a.useCache {
		input, err := core.LoadPopulation(cachePath)
		switch {
		case err == nil:
			log.Info(ctx, "loaded cached population", logging.String("path", cachePath))
			return input, nil
		case errors.Is(err, core.ErrCacheVersion):
			log.Warn(ctx, "discarding stale population cache", logging.Err(err))
		case !errors.Is(err, os.ErrNotExist):
			log.Warn(ctx, "population cache unreadable, rebuilding", logging.Err(err))
		}
	}

	var input *core.SimulationInput
	scenarioPath := filepath.Join(a.directory, a.region+".json")
	if f, err := os.Open(scenarioPath); err == nil {
		defer f.Close()
		input, err = core.LoadScenario(f)
		if err != nil {
			return nil, fmt.Errorf("loading scenario %s: %w", scenarioPath, err)
		}
		log.Info(ctx, "loaded scenario", logging.String("path", scenarioPath))
	} else {
		input, err = core.BuildSyntheticPopulation(a.region, core.BuilderOptions{
			GridSize: a.gridSize,
			Seed:     a.seed,
		})
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "built synthetic population", logging.String("region", a.region))
	}

	if a.useCache {
		if err := core.SavePopulation(cachePath, input); err != nil {
			log.Warn(ctx, "saving population cache failed", logging.Err(err))
		}
	}
	return input, nil
}

func writeOutputs(a *arguments, sim *core.Simulator) error {
	statsFile, err := os.Create(a.outputName + "_statistics.csv")
	if err != nil {
		return err
	}
	defer statsFile.Close()
	if err := sim.Recorder().WriteCSV(statsFile); err != nil {
		return err
	}

	summaryFile, err := os.Create(a.outputName + "_summary.txt")
	if err != nil {
		return err
	}
	defer summaryFile.Close()
	return sim.Recorder().WriteSummary(summaryFile)
}

// writeCrashDump serialises the final statistics for post-mortem use.
func writeCrashDump(path string, sim *core.Simulator, cause any, log logging.Logger) {
	dump := map[string]any{
		"cause":   fmt.Sprint(cause),
		"tick":    sim.Tick(),
		"history": sim.Recorder().History(),
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Error(context.Background(), "writing crash dump failed", logging.Err(err))
	}
}
