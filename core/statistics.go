// core/statistics.go
package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
)

// TickStats is the aggregate compartment census after one tick.
type TickStats struct {
	Tick   int
	Counts [model.NumStatusKinds]uint32
}

// Population is the total number of citizens in the snapshot, dead
// included.
func (t TickStats) Population() uint32 {
	var n uint32
	for _, c := range t.Counts {
		n += c
	}
	return n
}

// InfectedPercentage is the fraction of the population currently
// infectious. The intervention thresholds are defined against it.
func (t TickStats) InfectedPercentage() float64 {
	pop := t.Population()
	if pop == 0 {
		return 0
	}
	return float64(t.Counts[model.Infected]) / float64(pop)
}

// DiseaseExists reports whether anyone is still incubating or
// infectious.
func (t TickStats) DiseaseExists() bool {
	return t.Counts[model.Exposed] != 0 || t.Counts[model.Infected] != 0
}

func (t TickStats) String() string {
	return fmt.Sprintf("hour %d: susceptible %d, exposed %d, infected %d, recovered %d, vaccinated %d, dead %d",
		t.Tick,
		t.Counts[model.Susceptible], t.Counts[model.Exposed], t.Counts[model.Infected],
		t.Counts[model.Recovered], t.Counts[model.Vaccinated], t.Counts[model.Dead])
}

// exposureLedger records when somewhere first saw an exposure and how
// many it has accumulated since.
type exposureLedger struct {
	FirstTick int
	Total     uint32
}

// Recorder aggregates per-tick counts by status, by output area and by
// building kind. The state machine feeds it deltas during the apply
// phase; snapshots are appended per tick.
type Recorder struct {
	current TickStats
	history []TickStats

	areasExposed     map[model.AreaCode]*exposureLedger
	buildingsExposed map[model.BuildingID]*exposureLedger
	kindExposures    [model.NumBuildingKinds]uint64

	// areaCounts holds the current tick's compartment census per output
	// area (of residence). Reset every tick.
	areaCounts [][model.NumStatusKinds]uint32

	exposuresTotal    uint64
	deathsTotal       uint64
	vaccinationsTotal uint64

	// trajectory, when set, receives one CSV row per citizen per tick.
	// Large; intended for validation runs only.
	trajectory *csv.Writer
}

// NewRecorder constructs an empty recorder. trajectory may be nil.
func NewRecorder(trajectory io.Writer) *Recorder {
	r := &Recorder{
		areasExposed:     make(map[model.AreaCode]*exposureLedger),
		buildingsExposed: make(map[model.BuildingID]*exposureLedger),
	}
	if trajectory != nil {
		r.trajectory = csv.NewWriter(trajectory)
	}
	return r
}

// SetAreaCount sizes the per-area census. Called once before the first
// tick.
func (r *Recorder) SetAreaCount(n int) {
	r.areaCounts = make([][model.NumStatusKinds]uint32, n)
}

// BeginTick resets the per-tick counters.
func (r *Recorder) BeginTick(tick int) {
	r.current = TickStats{Tick: tick}
	for i := range r.areaCounts {
		r.areaCounts[i] = [model.NumStatusKinds]uint32{}
	}
}

// AddCitizen counts one citizen in its current compartment, under its
// area of residence.
func (r *Recorder) AddCitizen(status model.StatusKind, area int32) {
	r.current.Counts[status]++
	if int(area) < len(r.areaCounts) {
		r.areaCounts[area][status]++
	}
}

// AreaCounts returns the latest compartment census for one area.
func (r *Recorder) AreaCounts(area int32) [model.NumStatusKinds]uint32 {
	if int(area) >= len(r.areaCounts) {
		return [model.NumStatusKinds]uint32{}
	}
	return r.areaCounts[area]
}

// RecordExposure logs a new exposure at a building, updating the area,
// building and kind ledgers.
func (r *Recorder) RecordExposure(tick int, building model.BuildingID, area model.AreaCode) {
	r.exposuresTotal++
	r.kindExposures[building.Kind]++
	if led, ok := r.buildingsExposed[building]; ok {
		led.Total++
	} else {
		r.buildingsExposed[building] = &exposureLedger{FirstTick: tick, Total: 1}
	}
	if led, ok := r.areasExposed[area]; ok {
		led.Total++
	} else {
		r.areasExposed[area] = &exposureLedger{FirstTick: tick, Total: 1}
	}
}

// RecordDeath counts one terminal infection.
func (r *Recorder) RecordDeath() { r.deathsTotal++ }

// RecordVaccination counts one vaccination.
func (r *Recorder) RecordVaccination() { r.vaccinationsTotal++ }

// RecordTrajectory emits one per-citizen status row when trajectory
// output is enabled.
func (r *Recorder) RecordTrajectory(tick int, id model.CitizenID, status model.DiseaseStatus) {
	if r.trajectory == nil {
		return
	}
	r.trajectory.Write([]string{
		strconv.Itoa(tick),
		strconv.Itoa(int(id.Index)),
		id.UID.String(),
		status.Kind.String(),
		strconv.Itoa(int(status.Remaining)),
	})
}

// EndTick seals the current snapshot into the history and returns it.
func (r *Recorder) EndTick() TickStats {
	r.history = append(r.history, r.current)
	if r.trajectory != nil {
		r.trajectory.Flush()
	}
	return r.current
}

// Latest returns the most recent snapshot, or a zero snapshot before the
// first tick completes.
func (r *Recorder) Latest() TickStats {
	if len(r.history) == 0 {
		return TickStats{}
	}
	return r.history[len(r.history)-1]
}

// History returns every per-tick snapshot in order.
func (r *Recorder) History() []TickStats { return r.history }

// ExposuresTotal returns the cumulative number of exposure events.
func (r *Recorder) ExposuresTotal() uint64 { return r.exposuresTotal }

// DeathsTotal returns the cumulative number of deaths.
func (r *Recorder) DeathsTotal() uint64 { return r.deathsTotal }

// VaccinationsTotal returns the cumulative number of vaccinations.
func (r *Recorder) VaccinationsTotal() uint64 { return r.vaccinationsTotal }

// KindExposures returns cumulative exposures per building kind.
func (r *Recorder) KindExposures() [model.NumBuildingKinds]uint64 { return r.kindExposures }

// AreaLedger returns (first tick, total) for an area, if it ever saw an
// exposure.
func (r *Recorder) AreaLedger(code model.AreaCode) (first int, total uint32, ok bool) {
	led, ok := r.areasExposed[code]
	if !ok {
		return 0, 0, false
	}
	return led.FirstTick, led.Total, true
}

// WriteCSV writes the per-tick aggregate counts.
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tick", "susceptible", "exposed", "infected", "recovered", "vaccinated", "dead"}); err != nil {
		return err
	}
	for _, s := range r.history {
		row := []string{strconv.Itoa(s.Tick)}
		for _, k := range []model.StatusKind{model.Susceptible, model.Exposed, model.Infected, model.Recovered, model.Vaccinated, model.Dead} {
			row = append(row, strconv.FormatUint(uint64(s.Counts[k]), 10))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the plain-text end-of-run report.
func (r *Recorder) WriteSummary(w io.Writer) error {
	last := r.Latest()
	if _, err := fmt.Fprintf(w, "Simulation finished after %d ticks\n%s\n", len(r.history), last); err != nil {
		return err
	}
	fmt.Fprintf(w, "Total exposures: %d, deaths: %d, vaccinations: %d\n",
		r.exposuresTotal, r.deathsTotal, r.vaccinationsTotal)

	fmt.Fprintf(w, "\nExposures by building kind:\n")
	for k := model.BuildingKind(0); k < model.NumBuildingKinds; k++ {
		fmt.Fprintf(w, "  %-10s %d\n", k, r.kindExposures[k])
	}

	fmt.Fprintf(w, "\nOutput areas exposed:\n")
	codes := make([]string, 0, len(r.areasExposed))
	for code := range r.areasExposed {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	for _, code := range codes {
		led := r.areasExposed[model.AreaCode(code)]
		fmt.Fprintf(w, "  %s first exposed at tick %d with total %d\n", code, led.FirstTick, led.Total)
	}

	fmt.Fprintf(w, "\nBuildings exposed: %d\n", len(r.buildingsExposed))
	return nil
}
