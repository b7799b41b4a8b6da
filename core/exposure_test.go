package core

import (
	"context"
	"testing"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
)

func TestExposure_SingleOccupantBuildingIsSilent(t *testing.T) {
	sim := newTestSimulator(t, singleHouseholdInput(1, shortDisease(), true), 1)
	sim.advancePositions()
	sim.rebuildOccupants()
	if got := sim.computeExposures(context.Background()); len(got) != 0 {
		t.Fatalf("single occupant produced %d exposures", len(got))
	}
}

func TestExposure_CertainTransmissionExposesAllSusceptible(t *testing.T) {
	sim := newTestSimulator(t, singleHouseholdInput(5, shortDisease(), true), 1)
	sim.eff = Effects{WorkplaceCrowding: 1, MaskMultiplier: 1}
	sim.advancePositions()
	sim.rebuildOccupants()

	events := sim.computeExposures(context.Background())
	if len(events) != 4 {
		t.Fatalf("got %d exposures, want 4", len(events))
	}
	for i, e := range events {
		if e.citizen != int32(i+1) {
			t.Fatalf("exposure %d hit citizen %d, want sorted dense order", i, e.citizen)
		}
	}
}

func TestExposure_InertStatusesNeitherExposeNorCatch(t *testing.T) {
	input := singleHouseholdInput(4, shortDisease(), true)
	input.Citizens[1].Status = model.DiseaseStatus{Kind: model.Recovered}
	input.Citizens[2].Status = model.DiseaseStatus{Kind: model.Vaccinated}
	sim := newTestSimulator(t, input, 1)
	sim.advancePositions()
	sim.rebuildOccupants()

	events := sim.computeExposures(context.Background())
	if len(events) != 1 || events[0].citizen != 3 {
		t.Fatalf("exposures = %+v, want only citizen 3", events)
	}
}

// TestExposure_AggregateCapsAtOne feeds a probability that composes past
// 1 and expects it clamped, with the run-once warning latched.
func TestExposure_AggregateCapsAtOne(t *testing.T) {
	disease := shortDisease()
	disease.ExposureScaling = 50
	sim := newTestSimulator(t, singleHouseholdInput(4, disease, true), 1)
	sim.advancePositions()
	sim.rebuildOccupants()

	events := sim.computeExposures(context.Background())
	if len(events) != 3 {
		t.Fatalf("got %d exposures with saturated probability, want 3", len(events))
	}
	if !sim.clampWarned.Load() {
		t.Fatalf("clamp warning was not latched")
	}
}

// TestExposure_DeterministicAcrossCalls re-runs the kernel on unchanged
// state and expects an identical event list.
func TestExposure_DeterministicAcrossCalls(t *testing.T) {
	disease := shortDisease()
	disease.ExposureChance = 0.4
	sim := newTestSimulator(t, singleHouseholdInput(10, disease, true), 1)
	sim.advancePositions()
	sim.rebuildOccupants()

	first := sim.computeExposures(context.Background())
	second := sim.computeExposures(context.Background())
	if len(first) != len(second) {
		t.Fatalf("kernel not idempotent: %d then %d events", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestExposure_MaskMultiplierSuppressesWorkplaceSpread(t *testing.T) {
	input := commuterInput(20)
	disease := shortDisease()
	input.Disease = disease
	input.Citizens[0].Status = model.NewInfected(disease.InfectedTime)
	sim := newTestSimulator(t, input, 1)

	// Place everyone at the workplace.
	sim.tick = 10
	sim.advancePositions()
	sim.rebuildOccupants()

	sim.eff = Effects{WorkplaceCrowding: 1, MaskMultiplier: 1}
	unmasked := len(sim.computeExposures(context.Background()))

	sim.eff = Effects{WorkplaceCrowding: 1, MaskMultiplier: 0, Mask: MaskEverywhere}
	masked := len(sim.computeExposures(context.Background()))

	if masked != 0 {
		t.Fatalf("full masking still produced %d exposures", masked)
	}
	if unmasked == 0 {
		t.Fatalf("expected some unmasked workplace exposures")
	}
}

func TestPairProbability_CompositionOrder(t *testing.T) {
	input := commuterInput(2)
	disease := shortDisease()
	disease.ExposureChance = 0.5
	input.Disease = disease
	sim := newTestSimulator(t, input, 1)

	work := sim.flatBuildings[1]
	if work.ID.Kind != model.KindWorkplace {
		t.Fatalf("flat building 1 is %v, want workplace", work.ID.Kind)
	}

	sim.eff = Effects{Lockdown: true, WorkplaceCrowding: 0.5, MaskMultiplier: 0.8, Mask: MaskEverywhere}
	params := sim.kindParams[model.KindWorkplace]

	occupancy := 20
	crowd := 1 + params.Crowding*(float64(occupancy)/float64(params.ReferenceOccupancy)-1)
	want := 0.5 * params.TransmissionFactor * 0.8 * crowd * 0.5

	if got := sim.pairProbability(work, occupancy); got != want {
		t.Fatalf("pairProbability = %v, want %v", got, want)
	}
}
