package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulationCollector bundles Prometheus metrics for the simulation
// engine and provides an HTTP handler to expose them.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	CitizensByStatus *prometheus.GaugeVec
	TickDuration     prometheus.Histogram

	ScenarioAreas     prometheus.Gauge
	ScenarioBuildings prometheus.Gauge
	ScenarioCitizens  prometheus.Gauge

	ExposuresTotal    prometheus.Counter
	DeathsTotal       prometheus.Counter
	VaccinationsTotal prometheus.Counter
}

// NewSimulationCollector registers the engine's Prometheus metrics
// against the provided registerer, defaulting to the global registry
// when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	byStatus := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_citizens",
		Help: "Current number of citizens in each disease compartment.",
	}, []string{"status"})
	byStatus, err := registerGaugeVec(reg, byStatus, "sim_citizens")
	if err != nil {
		return nil, err
	}

	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	tickDuration, err = registerHistogram(reg, tickDuration, "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	areas, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_scenario_output_areas",
		Help: "Number of output areas in the loaded scenario.",
	}), "sim_scenario_output_areas")
	if err != nil {
		return nil, err
	}
	buildings, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_scenario_buildings",
		Help: "Number of buildings in the loaded scenario.",
	}), "sim_scenario_buildings")
	if err != nil {
		return nil, err
	}
	citizens, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_scenario_citizens",
		Help: "Number of citizens in the loaded scenario.",
	}), "sim_scenario_citizens")
	if err != nil {
		return nil, err
	}

	exposures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_exposures_total",
		Help: "Cumulative number of exposure events.",
	}), "sim_exposures_total")
	if err != nil {
		return nil, err
	}
	deaths, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_deaths_total",
		Help: "Cumulative number of deaths.",
	}), "sim_deaths_total")
	if err != nil {
		return nil, err
	}
	vaccinations, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_vaccinations_total",
		Help: "Cumulative number of vaccinations.",
	}), "sim_vaccinations_total")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:          gatherer,
		CitizensByStatus:  byStatus,
		TickDuration:      tickDuration,
		ScenarioAreas:     areas,
		ScenarioBuildings: buildings,
		ScenarioCitizens:  citizens,
		ExposuresTotal:    exposures,
		DeathsTotal:       deaths,
		VaccinationsTotal: vaccinations,
	}, nil
}

// SetScenarioSize records the loaded scenario's dimensions.
func (c *SimulationCollector) SetScenarioSize(areas, buildings, citizens int) {
	c.ScenarioAreas.Set(float64(areas))
	c.ScenarioBuildings.Set(float64(buildings))
	c.ScenarioCitizens.Set(float64(citizens))
}

// ObserveTick updates the per-status gauges and the tick duration
// histogram after one tick.
func (c *SimulationCollector) ObserveTick(countsByStatus map[string]float64, duration time.Duration) {
	for status, count := range countsByStatus {
		c.CitizensByStatus.WithLabelValues(status).Set(count)
	}
	c.TickDuration.Observe(duration.Seconds())
}

// AddEvents increments the cumulative event counters by this tick's
// deltas.
func (c *SimulationCollector) AddEvents(exposures, deaths, vaccinations uint64) {
	c.ExposuresTotal.Add(float64(exposures))
	c.DeathsTotal.Add(float64(deaths))
	c.VaccinationsTotal.Add(float64(vaccinations))
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *SimulationCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// The register helpers tolerate re-registration so a collector can be
// rebuilt against the global registry in tests and long-lived processes.

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	return g, nil
}

func registerGaugeVec(reg prometheus.Registerer, g *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	return g, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("registering %s: %w", name, err)
	}
	return h, nil
}
