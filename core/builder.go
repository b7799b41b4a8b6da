// core/builder.go
package core

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/timectrl"
)

// BuilderOptions shapes the synthetic population generated when no
// pre-built scenario is available for a region.
type BuilderOptions struct {
	// Areas is how many output areas to lay out.
	Areas int
	// ResidentsPerArea is the population of each area.
	ResidentsPerArea int
	// GridSize is the spacing in metres between area centroids.
	GridSize int
	// StudentShare and EssentialShare split the roster between
	// occupations; the rest of the roster up to 90% are normal
	// workers and the last 10% are unemployed.
	StudentShare   float64
	EssentialShare float64

	Disease       model.DiseaseModel
	Interventions InterventionConfig
	Seed          uint64
	Weekends      bool
	StartDay      timectrl.DayOfWeek

	InitialInfected int
}

// ApplyDefaults fills zero-valued fields with the census-study defaults.
func (o BuilderOptions) ApplyDefaults() BuilderOptions {
	if o.Areas <= 0 {
		o.Areas = 16
	}
	if o.ResidentsPerArea <= 0 {
		o.ResidentsPerArea = 200
	}
	if o.GridSize <= 0 {
		o.GridSize = 250
	}
	if o.StudentShare <= 0 {
		o.StudentShare = 0.2
	}
	if o.EssentialShare <= 0 {
		o.EssentialShare = 0.15
	}
	if o.Disease == (model.DiseaseModel{}) {
		o.Disease = model.Covid()
	}
	if o.InitialInfected <= 0 {
		o.InitialInfected = StartingInfectedCount
	}
	return o
}

// BuildSyntheticPopulation generates a deterministic population for a
// region: output areas on a square grid, households of HouseholdSize,
// one school per area, and workplaces allocated per occupation with
// floor-space capacity. Citizens commute to a workplace area chosen
// from the seeded RNG, mirroring how the census commute matrix
// distributes workers.
func BuildSyntheticPopulation(region string, opts BuilderOptions) (*SimulationInput, error) {
	opts = opts.ApplyDefaults()
	if region == "" {
		return nil, fmt.Errorf("region code must not be empty")
	}

	rng := newStream(opts.Seed, 0, 0, saltVaccination)

	areas := make([]model.OutputArea, opts.Areas)
	side := gridSide(opts.Areas)
	for i := range areas {
		code := model.AreaCode(fmt.Sprintf("%s%04d", region, i))
		areas[i] = model.OutputArea{
			Code:  code,
			Index: int32(i),
			Centroid: orb.Point{
				float64((i % side) * opts.GridSize),
				float64((i / side) * opts.GridSize),
			},
		}
	}

	// Households and schools first, so every citizen has a residence.
	var citizens []model.Citizen
	for ai := range areas {
		area := &areas[ai]
		school := area.AddBuilding(model.KindSchool,
			stableUID(region, opts.Seed, "building", string(area.Code), 0), area.Centroid)

		households := (opts.ResidentsPerArea + HouseholdSize - 1) / HouseholdSize
		for h := 0; h < households; h++ {
			home := area.AddBuilding(model.KindHousehold,
				stableUID(region, opts.Seed, "building", string(area.Code), h+1), area.Centroid)
			for m := 0; m < HouseholdSize && len(area.Residents) < opts.ResidentsPerArea; m++ {
				gi := int32(len(citizens))
				occ, age := drawOccupation(&rng, opts)
				c := model.Citizen{
					ID:         model.CitizenID{Index: gi, UID: stableUID(region, opts.Seed, "citizen", "", int(gi))},
					Age:        age,
					Occupation: occ,
					Household:  home,
					Workplace:  home,
					Current:    home,
					Status:     model.DiseaseStatus{Kind: model.Susceptible},
				}
				if occ == model.OccupationStudent {
					c.Workplace = school
					c.Schedule.FillWork(home, school, 9, 16)
				} else {
					c.Schedule.FillHome(home)
				}
				citizens = append(citizens, c)
				area.Residents = append(area.Residents, gi)
			}
		}
	}

	// Workplace allocation: pick a workplace area per worker, then fill
	// per-occupation buildings until floor space runs out, generating a
	// fresh building when one fills up.
	type allocKey struct {
		area int32
		occ  model.Occupation
	}
	open := make(map[allocKey]model.BuildingID)
	for i := range citizens {
		c := &citizens[i]
		if c.Occupation != model.OccupationNormal && c.Occupation != model.OccupationEssential {
			continue
		}
		wa := int32(rng.intn(len(areas)))
		key := allocKey{area: wa, occ: c.Occupation}
		id, ok := open[key]
		if ok {
			b := areas[wa].Building(id.Local)
			if err := b.AddOccupant(c.ID.Index); err == nil {
				c.Workplace = id
				c.Schedule.FillWork(c.Household, id, 9, 17)
				continue
			}
			delete(open, key)
		}
		area := &areas[wa]
		nb := area.AddBuilding(model.KindWorkplace,
			stableUID(region, opts.Seed, "workplace", string(area.Code), len(area.Buildings)), area.Centroid)
		b := area.Building(nb.Local)
		b.FloorSpace = WorkplaceBuildingSize
		b.Occupation = c.Occupation
		if err := b.AddOccupant(c.ID.Index); err != nil {
			return nil, fmt.Errorf("fresh workplace rejected its first occupant: %w", err)
		}
		open[key] = nb
		c.Workplace = nb
		c.Schedule.FillWork(c.Household, nb, 9, 17)
	}

	// The allocation occupant lists were only used for capacity
	// accounting; the scheduler rebuilds real occupancy every tick.
	for ai := range areas {
		for bi := range areas[ai].Buildings {
			areas[ai].Buildings[bi].Occupants = nil
		}
	}

	input := &SimulationInput{
		Region:        region,
		Areas:         areas,
		Citizens:      citizens,
		Disease:       opts.Disease.ApplyDefaults(),
		Interventions: opts.Interventions,
		KindParams:    model.DefaultKindParams(),
		Seed:          opts.Seed,
		Weekends:      opts.Weekends,
		StartDay:      opts.StartDay,
	}
	seedInfections(input, opts.InitialInfected)
	return input, nil
}

func drawOccupation(rng *stream, opts BuilderOptions) (model.Occupation, uint8) {
	u := rng.float64()
	switch {
	case u < opts.StudentShare:
		return model.OccupationStudent, uint8(5 + rng.intn(13))
	case u < opts.StudentShare+opts.EssentialShare:
		return model.OccupationEssential, uint8(18 + rng.intn(47))
	case u < 0.9:
		return model.OccupationNormal, uint8(18 + rng.intn(47))
	default:
		return model.OccupationUnemployed, uint8(18 + rng.intn(60))
	}
}

// gridSide returns the smallest square side that fits n cells.
func gridSide(n int) int {
	side := 1
	for side*side < n {
		side++
	}
	return side
}
