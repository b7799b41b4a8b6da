// core/scheduler.go
package core

import (
	"fmt"
	"sync"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/timectrl"
)

// advancePositions is phase 2: it writes each citizen's current building
// for this tick's hour, applying the intervention-aware policy. Work is
// partitioned into contiguous citizen ranges; each worker writes only
// its own slots.
func (s *Simulator) advancePositions() {
	hour := s.clock.HourOfDay(s.tick)
	day := s.clock.Day(s.tick)

	n := len(s.citizens)
	if s.threads == 1 {
		for i := 0; i < n; i++ {
			c := &s.citizens[i]
			c.Current = s.policyBuilding(c, hour, day)
		}
		return
	}

	chunk := (n + s.threads - 1) / s.threads
	var wg sync.WaitGroup
	for w := 0; w < s.threads; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				c := &s.citizens[i]
				c.Current = s.policyBuilding(c, hour, day)
			}
		}(lo, hi)
	}
	wg.Wait()
}

// policyBuilding resolves where a citizen is this hour once the active
// interventions are taken into account.
func (s *Simulator) policyBuilding(c *model.Citizen, hour int, day timectrl.DayOfWeek) model.BuildingID {
	// The dead do not move; parking them at home keeps every occupancy
	// invariant intact without a special building.
	if c.Status.Kind == model.Dead {
		return c.Household
	}

	// Symptomatic infected citizens isolate at home for the rest of
	// their infectious window.
	if c.Status.Kind == model.Infected && s.eff.SymptomStart > 0 {
		elapsed := s.disease.InfectedTime - c.Status.Remaining
		if elapsed >= s.eff.SymptomStart {
			return c.Household
		}
	}

	if s.weekends && day.IsWeekend() {
		return c.Household
	}

	b := c.Schedule[hour]
	if b.IsZero() {
		// Schedules are validated at construction; a gap here means the
		// roster was mutated mid-run.
		panic(fmt.Sprintf("tick %d: %s has no schedule entry for hour %d", s.tick, c.ID, hour))
	}
	if b == c.Household {
		return b
	}
	if s.eff.Lockdown {
		if s.kindParams[b.Kind].ClosedInLockdown {
			return c.Household
		}
		if b.Kind == model.KindWorkplace && c.Occupation != model.OccupationEssential {
			return c.Household
		}
	}
	return b
}

// rebuildOccupants is phase 3: a two-phase counting sort that rebuilds
// every building's occupant list from the citizens' current buildings.
// The arena layout groups a building's occupants contiguously, in
// ascending dense-index order, which both fixes iteration order for
// determinism and keeps the kernel's reads sequential.
func (s *Simulator) rebuildOccupants() {
	for i := range s.occCounts {
		s.occCounts[i] = 0
	}
	for i := range s.citizens {
		g := s.mustResolveBuilding(s.citizens[i].Current, int32(i))
		s.occCounts[g]++
	}

	s.occStarts[0] = 0
	for g := range s.occCounts {
		s.occStarts[g+1] = s.occStarts[g] + s.occCounts[g]
		s.occCursor[g] = s.occStarts[g]
	}

	for i := range s.citizens {
		g := s.buildingOffset[s.citizens[i].Current.Area] + s.citizens[i].Current.Local
		s.occArena[s.occCursor[g]] = int32(i)
		s.occCursor[g]++
	}

	for g, b := range s.flatBuildings {
		b.Occupants = s.occArena[s.occStarts[g]:s.occStarts[g+1]:s.occStarts[g+1]]
	}
}
