// core/scenario_loader.go
package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/timectrl"
)

// Population synthesis constants, carried over from the census study.
const (
	// HouseholdSize is the average household occupancy used by the
	// synthetic builder.
	HouseholdSize = 4
	// WorkplaceBuildingSize is the floor space in m^2 of one generated
	// workplace building.
	WorkplaceBuildingSize = 1000
	// StartingInfectedCount is how many infection draws seed the
	// population when the scenario does not say otherwise.
	StartingInfectedCount = 10
)

// Scenario JSON shapes - kept unexported so we're free to evolve them.

type scenarioJSON struct {
	Region   string  `json:"region"`
	Seed     uint64  `json:"seed"`
	Weekends bool    `json:"weekends"`
	StartDay *string `json:"start_day"`

	Disease       diseaseJSON       `json:"disease"`
	Interventions interventionsJSON `json:"interventions"`

	Areas    []areaJSON    `json:"areas"`
	Citizens []citizenJSON `json:"citizens"`

	InitialInfected *int `json:"initial_infected"`
}

type diseaseJSON struct {
	ReproductionRate float64 `json:"reproduction_rate"`
	ExposureChance   float64 `json:"exposure_chance"`
	DeathRate        float64 `json:"death_rate"`
	ExposedTime      uint16  `json:"exposed_time"`
	InfectedTime     uint16  `json:"infected_time"`
	MaxTimeStep      int     `json:"max_time_step"`
	ExposureScaling  float64 `json:"exposure_scaling"`
}

type interventionsJSON struct {
	LockdownThreshold    *float64 `json:"lockdown_threshold"`
	VaccinationThreshold *float64 `json:"vaccination_threshold"`
	VaccinationRate      int      `json:"vaccination_rate"`
	SymptomStart         uint16   `json:"symptom_start"`
}

type areaJSON struct {
	Code      string         `json:"code"`
	Centroid  [2]float64     `json:"centroid"`
	Buildings []buildingJSON `json:"buildings"`
}

type buildingJSON struct {
	Kind       string      `json:"kind"` // "household" | "workplace" | "school"
	Point      *[2]float64 `json:"point"`
	FloorSpace uint16      `json:"floor_space"`
	Occupation string      `json:"occupation"`
}

type buildingRefJSON struct {
	Area  string `json:"area"`
	Local int32  `json:"local"`
}

type citizenJSON struct {
	Age        uint8            `json:"age"`
	Occupation string           `json:"occupation"`
	Household  buildingRefJSON  `json:"household"`
	Workplace  *buildingRefJSON `json:"workplace"`
	WorkStart  *int             `json:"work_start"`
	WorkEnd    *int             `json:"work_end"`
	Infected   bool             `json:"infected"`
}

// LoadScenario reads a JSON scenario from r and produces the fully
// resolved SimulationInput the engine consumes: areas registered in a
// frozen bijection, building references resolved to dense ids, schedules
// expanded from working hours, and initial infections applied.
func LoadScenario(r io.Reader) (*SimulationInput, error) {
	var raw scenarioJSON
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return buildInput(&raw)
}

func buildInput(raw *scenarioJSON) (*SimulationInput, error) {
	areaIdx := model.NewAreaIndex()
	areas := make([]model.OutputArea, 0, len(raw.Areas))
	for _, aj := range raw.Areas {
		idx, err := areaIdx.Add(model.AreaCode(aj.Code))
		if err != nil {
			return nil, err
		}
		area := model.OutputArea{
			Code:     model.AreaCode(aj.Code),
			Index:    idx,
			Centroid: orb.Point{aj.Centroid[0], aj.Centroid[1]},
		}
		for bi, bj := range aj.Buildings {
			kind, err := parseBuildingKind(bj.Kind)
			if err != nil {
				return nil, fmt.Errorf("area %s building %d: %w", aj.Code, bi, err)
			}
			point := area.Centroid
			if bj.Point != nil {
				point = orb.Point{bj.Point[0], bj.Point[1]}
			}
			uid := stableUID(raw.Region, raw.Seed, "building", aj.Code, bi)
			id := area.AddBuilding(kind, uid, point)
			b := area.Building(id.Local)
			b.FloorSpace = bj.FloorSpace
			if bj.Occupation != "" {
				occ, err := parseOccupation(bj.Occupation)
				if err != nil {
					return nil, fmt.Errorf("area %s building %d: %w", aj.Code, bi, err)
				}
				b.Occupation = occ
			}
		}
		areas = append(areas, area)
	}
	areaIdx.Freeze()

	resolve := func(ref buildingRefJSON, kind string) (model.BuildingID, error) {
		idx, ok := areaIdx.IndexOf(model.AreaCode(ref.Area))
		if !ok {
			return model.BuildingID{}, fmt.Errorf("%s references %w %q", kind, model.ErrUnknownArea, ref.Area)
		}
		area := &areas[idx]
		if ref.Local < 0 || int(ref.Local) >= len(area.Buildings) {
			return model.BuildingID{}, fmt.Errorf("%s references missing building %d in area %q", kind, ref.Local, ref.Area)
		}
		return area.Buildings[ref.Local].ID, nil
	}

	citizens := make([]model.Citizen, 0, len(raw.Citizens))
	for i, cj := range raw.Citizens {
		home, err := resolve(cj.Household, "household")
		if err != nil {
			return nil, fmt.Errorf("citizen %d: %w", i, err)
		}
		work := home
		if cj.Workplace != nil {
			work, err = resolve(*cj.Workplace, "workplace")
			if err != nil {
				return nil, fmt.Errorf("citizen %d: %w", i, err)
			}
		}
		occ := model.OccupationNormal
		if cj.Occupation != "" {
			occ, err = parseOccupation(cj.Occupation)
			if err != nil {
				return nil, fmt.Errorf("citizen %d: %w", i, err)
			}
		}

		c := model.Citizen{
			ID:         model.CitizenID{Index: int32(i), UID: stableUID(raw.Region, raw.Seed, "citizen", "", i)},
			Age:        cj.Age,
			Occupation: occ,
			Household:  home,
			Workplace:  work,
			Current:    home,
			Status:     model.DiseaseStatus{Kind: model.Susceptible},
		}
		start, end := 9, 17
		if cj.WorkStart != nil {
			start = *cj.WorkStart
		}
		if cj.WorkEnd != nil {
			end = *cj.WorkEnd
		}
		if work == home || occ == model.OccupationUnemployed || occ == model.OccupationNone {
			c.Schedule.FillHome(home)
		} else {
			c.Schedule.FillWork(home, work, start, end)
		}
		if cj.Infected {
			c.Status = model.NewInfected(raw.Disease.InfectedTime)
		}
		citizens = append(citizens, c)
		areas[home.Area].Residents = append(areas[home.Area].Residents, int32(i))
	}

	disease := model.DiseaseModel{
		ReproductionRate: raw.Disease.ReproductionRate,
		ExposureChance:   raw.Disease.ExposureChance,
		DeathRate:        raw.Disease.DeathRate,
		ExposedTime:      raw.Disease.ExposedTime,
		InfectedTime:     raw.Disease.InfectedTime,
		MaxTimeStep:      raw.Disease.MaxTimeStep,
		ExposureScaling:  raw.Disease.ExposureScaling,
	}.ApplyDefaults()

	interventions := InterventionConfig{
		LockdownThreshold:    raw.Interventions.LockdownThreshold,
		VaccinationThreshold: raw.Interventions.VaccinationThreshold,
		VaccinationRate:      raw.Interventions.VaccinationRate,
		SymptomStart:         raw.Interventions.SymptomStart,
	}

	startDay := timectrl.Monday
	if raw.StartDay != nil {
		d, err := parseDay(*raw.StartDay)
		if err != nil {
			return nil, err
		}
		startDay = d
	}

	input := &SimulationInput{
		Region:        raw.Region,
		Areas:         areas,
		Citizens:      citizens,
		Disease:       disease,
		Interventions: interventions,
		KindParams:    model.DefaultKindParams(),
		Seed:          raw.Seed,
		Weekends:      raw.Weekends,
		StartDay:      startDay,
	}

	// Seed infections at random when the scenario did not mark citizens
	// explicitly.
	if raw.InitialInfected != nil || !anyInfected(citizens) {
		count := StartingInfectedCount
		if raw.InitialInfected != nil {
			count = *raw.InitialInfected
		}
		seedInfections(input, count)
	}
	return input, nil
}

func anyInfected(citizens []model.Citizen) bool {
	for i := range citizens {
		if citizens[i].Status.Kind == model.Infected {
			return true
		}
	}
	return false
}

// seedInfections makes count random draws and marks each drawn citizen
// infectious. Draws are with replacement, so a citizen drawn twice is
// marked once and fewer than count citizens may end up infected. The
// draws use the scenario seed so the initial state is reproducible.
func seedInfections(input *SimulationInput, count int) {
	if count <= 0 || len(input.Citizens) == 0 {
		return
	}
	rng := newStream(input.Seed, 0, 0, saltExposure)
	for n := 0; n < count; n++ {
		pick := rng.intn(len(input.Citizens))
		input.Citizens[pick].Status = model.NewInfected(input.Disease.InfectedTime)
	}
}

// stableUID derives an opaque identifier that is stable across runs for
// the same region and seed, so serialised outputs can be compared.
func stableUID(region string, seed uint64, kind, scope string, n int) uuid.UUID {
	name := fmt.Sprintf("%s/%d/%s/%s/%d", region, seed, kind, scope, n)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

func parseBuildingKind(s string) (model.BuildingKind, error) {
	switch strings.ToLower(s) {
	case "household":
		return model.KindHousehold, nil
	case "workplace":
		return model.KindWorkplace, nil
	case "school":
		return model.KindSchool, nil
	}
	return 0, fmt.Errorf("unknown building kind %q", s)
}

func parseOccupation(s string) (model.Occupation, error) {
	switch strings.ToLower(s) {
	case "normal":
		return model.OccupationNormal, nil
	case "essential":
		return model.OccupationEssential, nil
	case "unemployed":
		return model.OccupationUnemployed, nil
	case "student":
		return model.OccupationStudent, nil
	case "", "n/a", "none":
		return model.OccupationNone, nil
	}
	return 0, fmt.Errorf("unknown occupation %q", s)
}

func parseDay(s string) (timectrl.DayOfWeek, error) {
	days := map[string]timectrl.DayOfWeek{
		"monday": timectrl.Monday, "tuesday": timectrl.Tuesday,
		"wednesday": timectrl.Wednesday, "thursday": timectrl.Thursday,
		"friday": timectrl.Friday, "saturday": timectrl.Saturday,
		"sunday": timectrl.Sunday,
	}
	d, ok := days[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown day of week %q", s)
	}
	return d, nil
}
