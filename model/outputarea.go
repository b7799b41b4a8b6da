// model/outputarea.go
package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// OutputArea is the finest census geographic unit, roughly 100 to 300
// residents. It owns the buildings located within it and records which
// citizens reside there. Buildings are stored densely so that
// (area index, local index) resolves in O(1).
type OutputArea struct {
	Code  AreaCode
	Index int32

	// Centroid of the area polygon on the integer grid.
	Centroid orb.Point

	// Residents are the dense indices of citizens whose household is in
	// this area.
	Residents []int32

	Buildings []Building
}

// AddBuilding appends a building of the given kind and returns its id.
// Only valid before the simulation starts; the building set is frozen
// once ticks begin.
func (oa *OutputArea) AddBuilding(kind BuildingKind, uid uuid.UUID, point orb.Point) BuildingID {
	id := BuildingID{
		Area:  oa.Index,
		Local: int32(len(oa.Buildings)),
		UID:   uid,
		Kind:  kind,
	}
	oa.Buildings = append(oa.Buildings, Building{ID: id, Point: point})
	return id
}

// Building resolves a local index. An out-of-range index is a dangling
// reference and therefore a fatal invariant violation.
func (oa *OutputArea) Building(local int32) *Building {
	if local < 0 || int(local) >= len(oa.Buildings) {
		panic(fmt.Sprintf("dangling building reference %d in area %s", local, oa.Code))
	}
	return &oa.Buildings[local]
}
