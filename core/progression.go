// core/progression.go
package core

import (
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
)

// applyTransitions is phase 5: the single-writer pass that merges the
// exposure buffer, advances every citizen's disease state, applies this
// tick's vaccinations and feeds the recorder. Citizens are visited in
// dense order, so the pass is deterministic by construction.
func (s *Simulator) applyTransitions(exposures []exposureEvent) {
	vaccTargets := s.drawVaccinations()

	s.recorder.BeginTick(s.tick)

	ei := 0
	s.eligibleNext = s.eligibleNext[:0]
	for i := range s.citizens {
		c := &s.citizens[i]

		exposedHere := model.BuildingID{}
		for ei < len(exposures) && exposures[ei].citizen < int32(i) {
			ei++
		}
		if ei < len(exposures) && exposures[ei].citizen == int32(i) {
			exposedHere = exposures[ei].building
			ei++
		}

		switch c.Status.Kind {
		case model.Susceptible:
			// Vaccination wins over a same-tick exposure: the dose was
			// drawn from the eligible set before the kernel ran.
			if _, ok := vaccTargets[int32(i)]; ok {
				c.Status = model.DiseaseStatus{Kind: model.Vaccinated}
				s.recorder.RecordVaccination()
			} else if !exposedHere.IsZero() {
				c.Status = model.NewExposed(s.disease.ExposedTime)
				s.recorder.RecordExposure(s.tick, exposedHere, s.areas[exposedHere.Area].Code)
			}
		case model.Exposed:
			if c.Status.Remaining > 1 {
				c.Status.Remaining--
			} else {
				c.Status = model.NewInfected(s.disease.InfectedTime)
			}
		case model.Infected:
			if c.Status.Remaining > 1 {
				c.Status.Remaining--
			} else {
				rng := newStream(s.seed, s.tick, int32(i), saltDeath)
				if rng.float64() < s.disease.DeathRate {
					c.Status = model.DiseaseStatus{Kind: model.Dead}
					s.recorder.RecordDeath()
				} else {
					c.Status = model.DiseaseStatus{Kind: model.Recovered}
				}
			}
		case model.Recovered, model.Vaccinated, model.Dead:
			// Terminal.
		}

		s.recorder.AddCitizen(c.Status.Kind, c.Household.Area)
		s.recorder.RecordTrajectory(s.tick, c.ID, c.Status)
		if c.Status.Kind == model.Susceptible {
			s.eligibleNext = append(s.eligibleNext, int32(i))
		}
	}

	s.eligible, s.eligibleNext = s.eligibleNext, s.eligible
}

// drawVaccinations picks this tick's vaccination recipients from the
// eligible set with a dedicated RNG sub-stream. A partial Fisher-Yates
// over a scratch copy keeps the draw unbiased and deterministic.
func (s *Simulator) drawVaccinations() map[int32]struct{} {
	k := s.eff.Vaccinations
	if k <= 0 || len(s.eligible) == 0 {
		return nil
	}
	if k > len(s.eligible) {
		k = len(s.eligible)
	}

	pool := make([]int32, len(s.eligible))
	copy(pool, s.eligible)
	rng := newStream(s.seed, s.tick, 0, saltVaccination)

	targets := make(map[int32]struct{}, k)
	for j := 0; j < k; j++ {
		pick := j + rng.intn(len(pool)-j)
		pool[j], pool[pick] = pool[pick], pool[j]
		targets[pool[j]] = struct{}{}
	}
	return targets
}
