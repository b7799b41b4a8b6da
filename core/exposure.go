// core/exposure.go
package core

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/logging"
	"github.com/NoSuchThingAsRandom/EpidemicSimulator/model"
)

// exposureEvent marks one susceptible citizen newly exposed this tick,
// and where.
type exposureEvent struct {
	citizen  int32
	building model.BuildingID
}

// computeExposures is phase 4, the dominant hot loop: for every building
// with at least one infectious occupant, it evaluates which susceptible
// occupants are exposed this tick. Buildings are independent; the list
// is partitioned into contiguous ranges across workers. Each work item
// draws from its own (seed, tick, building) RNG sub-stream, so the
// result is identical for any thread count.
func (s *Simulator) computeExposures(ctx context.Context) []exposureEvent {
	nb := len(s.flatBuildings)
	if s.threads == 1 {
		buf := s.expBuffers[0][:0]
		for g := 0; g < nb; g++ {
			buf = s.exposeBuilding(int32(g), buf)
		}
		s.expBuffers[0] = buf
		return s.finishExposures(ctx, 1)
	}

	chunk := (nb + s.threads - 1) / s.threads
	var wg sync.WaitGroup
	for w := 0; w < s.threads; w++ {
		lo := w * chunk
		if lo >= nb {
			s.expBuffers[w] = s.expBuffers[w][:0]
			continue
		}
		hi := lo + chunk
		if hi > nb {
			hi = nb
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			buf := s.expBuffers[w][:0]
			for g := lo; g < hi; g++ {
				buf = s.exposeBuilding(int32(g), buf)
			}
			s.expBuffers[w] = buf
		}(w, lo, hi)
	}
	wg.Wait()
	return s.finishExposures(ctx, s.threads)
}

// finishExposures merges the per-worker buffers in worker order
// (= building order), sorts by dense citizen index so applying the
// buffer is order-independent, and deduplicates.
func (s *Simulator) finishExposures(ctx context.Context, workers int) []exposureEvent {
	var out []exposureEvent
	for w := 0; w < workers; w++ {
		out = append(out, s.expBuffers[w]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].citizen < out[j].citizen })

	// A citizen occupies exactly one building per tick, so duplicates
	// mean the scheduler broke its contract. Deduplicate rather than
	// corrupt state, but say so loudly.
	dedup := out[:0]
	for _, e := range out {
		if len(dedup) > 0 && e.citizen == dedup[len(dedup)-1].citizen {
			s.log.Error(ctx, "citizen exposed in two buildings in one tick",
				logging.Tick(s.tick),
				logging.Citizen(e.citizen),
				logging.Area(string(s.areas[e.building.Area].Code)))
			continue
		}
		dedup = append(dedup, e)
	}
	return dedup
}

// exposeBuilding evaluates one building and appends any exposure events
// to buf.
func (s *Simulator) exposeBuilding(g int32, buf []exposureEvent) []exposureEvent {
	b := s.flatBuildings[g]
	occ := b.Occupants
	if len(occ) < 2 {
		return buf
	}

	infectious := 0
	for _, ci := range occ {
		if s.citizens[ci].Status.Kind == model.Infected {
			infectious++
		}
	}
	if infectious == 0 {
		return buf
	}

	p := s.pairProbability(b, len(occ))
	if p <= 0 {
		return buf
	}
	// Aggregate pressure from all infectious occupants, capped so the
	// per-tick exposure probability never exceeds 1-(1-p)^I.
	agg := 1 - math.Pow(1-p, float64(infectious))

	rng := newStream(s.seed, s.tick, g, saltExposure)
	for _, ci := range occ {
		if s.citizens[ci].Status.Kind != model.Susceptible {
			continue
		}
		if rng.float64() < agg {
			buf = append(buf, exposureEvent{citizen: ci, building: b.ID})
		}
	}
	return buf
}

// pairProbability composes the per-pair exposure probability for one
// building this tick. The composition order is fixed: base chance, then
// building kind, then mask, then crowding, then lockdown crowding, then
// global scaling. Reordering changes results; do not.
func (s *Simulator) pairProbability(b *model.Building, occupancy int) float64 {
	params := s.kindParams[b.ID.Kind]
	p := s.disease.ExposureChance * params.TransmissionFactor

	masked := s.eff.Mask == MaskEverywhere ||
		(s.eff.Mask == MaskPublicTransport && params.MaskCovered)
	if masked {
		p *= s.eff.MaskMultiplier
	}

	if params.Crowding > 0 && params.ReferenceOccupancy > 0 {
		crowd := 1 + params.Crowding*(float64(occupancy)/float64(params.ReferenceOccupancy)-1)
		if crowd < 0 {
			crowd = 0
		}
		p *= crowd
	}

	if s.eff.Lockdown && b.ID.Kind == model.KindWorkplace {
		p *= s.eff.WorkplaceCrowding
	}

	p *= s.disease.ExposureScaling

	if p < 0 || p > 1 {
		s.warnClamp(p)
		p = math.Min(1, math.Max(0, p))
	}
	return p
}
