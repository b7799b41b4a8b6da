package core

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/timectrl"
)

// commuterInput builds one area with a household and a workplace, and n
// citizens commuting 9 to 17.
func commuterInput(n int) *SimulationInput {
	area := model.OutputArea{Code: "T0000", Index: 0}
	home := area.AddBuilding(model.KindHousehold, uuid.New(), orb.Point{0, 0})
	work := area.AddBuilding(model.KindWorkplace, uuid.New(), orb.Point{50, 0})
	area.Building(work.Local).FloorSpace = WorkplaceBuildingSize

	citizens := make([]model.Citizen, n)
	for i := range citizens {
		c := &citizens[i]
		c.ID = model.CitizenID{Index: int32(i), UID: uuid.New()}
		c.Household = home
		c.Workplace = work
		c.Current = home
		c.Schedule.FillWork(home, work, 9, 17)
		c.Status = model.DiseaseStatus{Kind: model.Susceptible}
		area.Residents = append(area.Residents, int32(i))
	}
	return &SimulationInput{
		Region: "test", Areas: []model.OutputArea{area}, Citizens: citizens,
		Disease: shortDisease(), KindParams: model.DefaultKindParams(), Seed: 5,
	}
}

// checkOccupancyInvariants asserts that every citizen
// appears exactly once, in the occupant list of its current building.
func checkOccupancyInvariants(t *testing.T, sim *Simulator) {
	t.Helper()
	seen := make(map[int32]bool)
	total := 0
	for _, b := range sim.flatBuildings {
		for _, ci := range b.Occupants {
			if seen[ci] {
				t.Fatalf("citizen %d occupies two buildings", ci)
			}
			seen[ci] = true
			total++
			if sim.citizens[ci].Current != b.ID {
				t.Fatalf("citizen %d listed at %s but current is %s", ci, b.ID, sim.citizens[ci].Current)
			}
		}
	}
	if total != len(sim.citizens) {
		t.Fatalf("occupant lists hold %d citizens, want %d", total, len(sim.citizens))
	}
}

func TestSchedulerMovesCommuters(t *testing.T) {
	sim := newTestSimulator(t, commuterInput(6), 2)

	// Ticks 0..8 are night and morning at home; tick 9 is the first
	// working hour.
	for tick := 0; tick < 9; tick++ {
		sim.Step(context.Background())
		checkOccupancyInvariants(t, sim)
		if got := sim.Citizen(0).Current.Kind; got != model.KindHousehold {
			t.Fatalf("tick %d: citizen at %v, want household", tick, got)
		}
	}
	sim.Step(context.Background())
	checkOccupancyInvariants(t, sim)
	if got := sim.Citizen(0).Current.Kind; got != model.KindWorkplace {
		t.Fatalf("tick 9: citizen at %v, want workplace", got)
	}
}

// TestSchedulerIdempotent re-runs the move and rebuild phases in one
// tick and expects identical occupant lists.
func TestSchedulerIdempotent(t *testing.T) {
	sim := newTestSimulator(t, commuterInput(8), 3)
	sim.advancePositions()
	sim.rebuildOccupants()

	first := make([][]int32, len(sim.flatBuildings))
	for g, b := range sim.flatBuildings {
		first[g] = append([]int32(nil), b.Occupants...)
	}

	sim.advancePositions()
	sim.rebuildOccupants()
	for g, b := range sim.flatBuildings {
		if len(b.Occupants) != len(first[g]) {
			t.Fatalf("building %d occupancy changed: %v -> %v", g, first[g], b.Occupants)
		}
		for i := range b.Occupants {
			if b.Occupants[i] != first[g][i] {
				t.Fatalf("building %d occupant %d changed: %v -> %v", g, i, first[g], b.Occupants)
			}
		}
	}
}

func TestSchedulerLockdownRedirects(t *testing.T) {
	input := commuterInput(4)
	input.Citizens[0].Occupation = model.OccupationEssential
	for i := 1; i < 4; i++ {
		input.Citizens[i].Occupation = model.OccupationNormal
	}
	input.Interventions = InterventionConfig{LockdownThreshold: floatPtr(-1)}
	sim := newTestSimulator(t, input, 1)

	// Advance into working hours with the lockdown in force.
	for tick := 0; tick <= 9; tick++ {
		sim.Step(context.Background())
	}
	if got := sim.Citizen(0).Current.Kind; got != model.KindWorkplace {
		t.Fatalf("essential worker at %v during lockdown, want workplace", got)
	}
	for i := int32(1); i < 4; i++ {
		if got := sim.Citizen(i).Current.Kind; got != model.KindHousehold {
			t.Fatalf("non-essential citizen %d at %v during lockdown, want household", i, got)
		}
	}
}

func TestSchedulerClosesSchoolsInLockdown(t *testing.T) {
	input := commuterInput(2)
	area := &input.Areas[0]
	school := area.AddBuilding(model.KindSchool, uuid.New(), orb.Point{0, 100})
	input.Citizens[1].Occupation = model.OccupationStudent
	input.Citizens[1].Workplace = school
	input.Citizens[1].Schedule.FillWork(input.Citizens[1].Household, school, 9, 16)
	input.Interventions = InterventionConfig{LockdownThreshold: floatPtr(-1)}
	sim := newTestSimulator(t, input, 1)

	for tick := 0; tick <= 9; tick++ {
		sim.Step(context.Background())
	}
	if got := sim.Citizen(1).Current.Kind; got != model.KindHousehold {
		t.Fatalf("student at %v during lockdown, want household", got)
	}
}

func TestSchedulerWeekendStaysHome(t *testing.T) {
	input := commuterInput(3)
	input.Weekends = true
	input.StartDay = timectrl.Saturday
	sim := newTestSimulator(t, input, 1)

	for tick := 0; tick <= 10; tick++ {
		sim.Step(context.Background())
	}
	// Tick 10 is 10:00 on Saturday; nobody commutes.
	if got := sim.Citizen(0).Current.Kind; got != model.KindHousehold {
		t.Fatalf("citizen at %v on a weekend, want household", got)
	}
}

func TestSchedulerPinsSymptomatic(t *testing.T) {
	input := commuterInput(2)
	disease := shortDisease()
	disease.InfectedTime = 10
	disease.ExposureChance = 0
	input.Disease = disease
	input.Citizens[0].Status = model.NewInfected(10)
	input.Interventions = InterventionConfig{SymptomStart: 2}
	sim := newTestSimulator(t, input, 1)

	// Run into working hours; by then citizen 0 has been infectious
	// past the symptomatic threshold and self-isolates.
	for tick := 0; tick <= 9; tick++ {
		sim.Step(context.Background())
	}
	if got := sim.Citizen(0).Current.Kind; got != model.KindHousehold {
		t.Fatalf("symptomatic citizen at %v, want household", got)
	}
	if got := sim.Citizen(1).Current.Kind; got != model.KindWorkplace {
		t.Fatalf("healthy citizen at %v, want workplace", got)
	}
}

func TestSchedulerPanicsOnScheduleGap(t *testing.T) {
	sim := newTestSimulator(t, commuterInput(2), 1)
	// Corrupt a schedule entry after construction.
	sim.citizens[1].Schedule[3] = model.BuildingID{}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on schedule gap")
		}
	}()
	for tick := 0; tick < 4; tick++ {
		sim.advancePositions()
		sim.tick++
	}
}
