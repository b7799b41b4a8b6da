// model/building.go
package model

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrBuildingCapacity indicates a workplace could not take another
// occupant at allocation time.
var ErrBuildingCapacity = errors.New("building is at capacity")

// KindParams are the per-building-kind factors consumed by the exposure
// kernel and the movement policy. One record per BuildingKind; the
// buildings themselves stay uniform.
type KindParams struct {
	// TransmissionFactor scales the base exposure chance in buildings of
	// this kind. Households are the baseline at 1.
	TransmissionFactor float64
	// Crowding controls how occupancy above the reference amplifies
	// per-pair pressure. 0 disables crowding.
	Crowding float64
	// ReferenceOccupancy is the occupancy at which crowding is neutral.
	ReferenceOccupancy int
	// MaskCovered marks kinds the mask mandate reaches before it extends
	// everywhere. The global mask multiplier comes from the intervention
	// controller.
	MaskCovered bool
	// ClosedInLockdown redirects would-be occupants to their households
	// while a lockdown is active.
	ClosedInLockdown bool
}

// DefaultKindParams returns the per-kind parameter table used when a
// scenario does not override it.
func DefaultKindParams() [NumBuildingKinds]KindParams {
	return [NumBuildingKinds]KindParams{
		KindHousehold: {TransmissionFactor: 1, Crowding: 0, ReferenceOccupancy: 4, MaskCovered: false, ClosedInLockdown: false},
		KindWorkplace: {TransmissionFactor: 0.6, Crowding: 0.3, ReferenceOccupancy: 20, MaskCovered: true, ClosedInLockdown: false},
		KindSchool:    {TransmissionFactor: 0.8, Crowding: 0.5, ReferenceOccupancy: 30, MaskCovered: true, ClosedInLockdown: true},
	}
}

// Building is one physical location citizens can occupy. All three kinds
// share this representation; kind-specific behaviour lives entirely in
// KindParams.
type Building struct {
	ID BuildingID

	// Point is the building's location on the integer grid derived from
	// the OSM raster.
	Point orb.Point

	// FloorSpace bounds workplace allocation (m^2). Zero for households
	// and schools.
	FloorSpace uint16
	// Occupation is the trade a workplace employs. OccupationNone
	// elsewhere.
	Occupation Occupation

	// Occupants holds the dense indices of citizens currently here. The
	// slice aliases the simulator's occupancy arena and is rebuilt every
	// tick; it must not be retained across ticks.
	Occupants []int32
}

// occupantFloorSpace is the floor area one worker consumes. The census
// employment-density table collapses to a single figure at this scale.
const occupantFloorSpace = 10

// Capacity returns how many occupants the building accepts at allocation
// time. Households and schools are unbounded.
func (b *Building) Capacity() int {
	if b.ID.Kind != KindWorkplace || b.FloorSpace == 0 {
		return int(^uint(0) >> 1)
	}
	return int(b.FloorSpace) / occupantFloorSpace
}

// AddOccupant appends a citizen at allocation time, enforcing workplace
// floor-space capacity.
func (b *Building) AddOccupant(citizen int32) error {
	if len(b.Occupants) >= b.Capacity() {
		return fmt.Errorf("%w: %s", ErrBuildingCapacity, b.ID)
	}
	b.Occupants = append(b.Occupants, citizen)
	return nil
}

func (b *Building) String() string {
	return fmt.Sprintf("%s at (%.0f, %.0f) with %d occupants",
		b.ID, b.Point[0], b.Point[1], len(b.Occupants))
}
