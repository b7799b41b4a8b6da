package core

import (
	"context"
	"testing"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
)

func TestProgression_ExposedBecomesInfectedOnExpiry(t *testing.T) {
	disease := shortDisease()
	disease.ExposureChance = 0
	input := singleHouseholdInput(1, disease, false)
	input.Citizens[0].Status = model.NewExposed(1)
	sim := newTestSimulator(t, input, 1)

	sim.Step(context.Background())
	st := sim.Citizen(0).Status
	if st.Kind != model.Infected || st.Remaining != disease.InfectedTime {
		t.Fatalf("Exposed(1) advanced to %v, want Infected(%d)", st, disease.InfectedTime)
	}
}

func TestProgression_CountdownDecrementsOncePerTick(t *testing.T) {
	disease := shortDisease()
	disease.ExposureChance = 0
	disease.ExposedTime = 5
	input := singleHouseholdInput(1, disease, false)
	input.Citizens[0].Status = model.NewExposed(5)
	sim := newTestSimulator(t, input, 1)

	for want := uint16(4); want >= 1; want-- {
		sim.Step(context.Background())
		st := sim.Citizen(0).Status
		if st.Kind != model.Exposed || st.Remaining != want {
			t.Fatalf("status = %v, want Exposed(%d)", st, want)
		}
	}
	sim.Step(context.Background())
	if got := sim.Citizen(0).Status.Kind; got != model.Infected {
		t.Fatalf("status = %v after incubation, want infected", got)
	}
}

func TestProgression_InfectedRecoversWhenDeathRateZero(t *testing.T) {
	disease := shortDisease()
	disease.ExposureChance = 0
	input := singleHouseholdInput(1, disease, false)
	input.Citizens[0].Status = model.NewInfected(1)
	sim := newTestSimulator(t, input, 1)

	sim.Step(context.Background())
	if got := sim.Citizen(0).Status.Kind; got != model.Recovered {
		t.Fatalf("status = %v, want recovered", got)
	}
	if sim.Recorder().DeathsTotal() != 0 {
		t.Fatalf("deaths recorded with zero death rate")
	}
}

func TestProgression_InfectedDiesWhenDeathRateOne(t *testing.T) {
	disease := shortDisease()
	disease.ExposureChance = 0
	disease.DeathRate = 1
	input := singleHouseholdInput(2, disease, false)
	input.Citizens[0].Status = model.NewInfected(1)
	sim := newTestSimulator(t, input, 1)

	stats := sim.Step(context.Background())
	if got := sim.Citizen(0).Status.Kind; got != model.Dead {
		t.Fatalf("status = %v, want dead", got)
	}
	if sim.Recorder().DeathsTotal() != 1 {
		t.Fatalf("deaths total = %d, want 1", sim.Recorder().DeathsTotal())
	}
	// The dead stay in the census.
	if got := stats.Population(); got != 2 {
		t.Fatalf("population = %d, want 2", got)
	}
}

func TestProgression_TerminalStatusesNeverChange(t *testing.T) {
	disease := shortDisease()
	input := singleHouseholdInput(4, disease, true)
	input.Citizens[1].Status = model.DiseaseStatus{Kind: model.Recovered}
	input.Citizens[2].Status = model.DiseaseStatus{Kind: model.Vaccinated}
	input.Citizens[3].Status = model.DiseaseStatus{Kind: model.Dead}
	sim := newTestSimulator(t, input, 1)

	for tick := 0; tick < 8; tick++ {
		sim.Step(context.Background())
	}
	for i, want := range []model.StatusKind{model.Recovered, model.Recovered, model.Vaccinated, model.Dead} {
		if i == 0 {
			// The index case recovers once its window expires.
			continue
		}
		if got := sim.Citizen(int32(i)).Status.Kind; got != want {
			t.Fatalf("citizen %d = %v, want %v", i, got, want)
		}
	}
}

func TestProgression_VaccinationBeatsSameTickExposure(t *testing.T) {
	// One infectious citizen, one susceptible, certain transmission and
	// a vaccination rate that covers the whole eligible set: the
	// susceptible citizen must end the tick vaccinated, not exposed.
	disease := shortDisease()
	input := singleHouseholdInput(2, disease, true)
	input.Interventions = InterventionConfig{
		VaccinationThreshold: floatPtr(-1),
		VaccinationRate:      5,
	}
	sim := newTestSimulator(t, input, 1)

	sim.Step(context.Background())
	if got := sim.Citizen(1).Status.Kind; got != model.Vaccinated {
		t.Fatalf("citizen 1 = %v, want vaccinated", got)
	}
	if sim.Recorder().ExposuresTotal() != 0 {
		t.Fatalf("exposure recorded despite vaccination precedence")
	}
}

func TestDrawVaccinations_DeterministicAndBounded(t *testing.T) {
	input := singleHouseholdInput(10, shortDisease(), false)
	sim := newTestSimulator(t, input, 1)
	sim.eff = Effects{Vaccinations: 3}

	first := sim.drawVaccinations()
	second := sim.drawVaccinations()
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("draw sizes %d and %d, want 3", len(first), len(second))
	}
	for target := range first {
		if _, ok := second[target]; !ok {
			t.Fatalf("draws differ for identical state")
		}
	}

	sim.eff = Effects{Vaccinations: 50}
	all := sim.drawVaccinations()
	if len(all) != 10 {
		t.Fatalf("draw of 50 from 10 eligible yielded %d", len(all))
	}
}
