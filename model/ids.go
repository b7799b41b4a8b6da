// model/ids.go
package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// AreaCode is the stable census output-area code, e.g. "E00078231".
type AreaCode string

var (
	// ErrAreaExists indicates an output area code was registered twice.
	ErrAreaExists = errors.New("output area already registered")
	// ErrUnknownArea indicates a lookup for a code that was never registered.
	ErrUnknownArea = errors.New("unknown output area")
	// ErrIndexFrozen indicates an Add after the bijection was frozen.
	ErrIndexFrozen = errors.New("area index is frozen")
)

// AreaIndex is the bijection between stable area codes and the dense
// integer indices used as array subscripts in the hot loop. It is built
// once at load time and frozen before the first tick; after Freeze the
// mapping never changes.
type AreaIndex struct {
	codes  []AreaCode
	byCode map[AreaCode]int32
	frozen bool
}

// NewAreaIndex constructs an empty, unfrozen index.
func NewAreaIndex() *AreaIndex {
	return &AreaIndex{byCode: make(map[AreaCode]int32)}
}

// Add registers a code and returns its dense index. It returns an error
// if the code is already present or the index has been frozen.
func (ai *AreaIndex) Add(code AreaCode) (int32, error) {
	if ai.frozen {
		return 0, ErrIndexFrozen
	}
	if _, exists := ai.byCode[code]; exists {
		return 0, fmt.Errorf("%w: %q", ErrAreaExists, code)
	}
	idx := int32(len(ai.codes))
	ai.codes = append(ai.codes, code)
	ai.byCode[code] = idx
	return idx, nil
}

// Freeze seals the bijection. Further Adds fail.
func (ai *AreaIndex) Freeze() { ai.frozen = true }

// IndexOf resolves a code to its dense index.
func (ai *AreaIndex) IndexOf(code AreaCode) (int32, bool) {
	idx, ok := ai.byCode[code]
	return idx, ok
}

// Code resolves a dense index back to its stable code. Callers pass
// indices previously handed out by Add, so out-of-range is a programming
// error and panics.
func (ai *AreaIndex) Code(idx int32) AreaCode {
	return ai.codes[idx]
}

// Len returns the number of registered areas.
func (ai *AreaIndex) Len() int { return len(ai.codes) }

// CitizenID pairs the global dense index used in the hot loop with the
// opaque identifier that is stable across runs and appears in serialised
// outputs.
type CitizenID struct {
	Index int32
	UID   uuid.UUID
}

func (id CitizenID) String() string {
	return fmt.Sprintf("citizen %d (%s)", id.Index, id.UID)
}

// BuildingKind distinguishes the building variants. They share one
// capability set and differ only in the per-kind exposure parameters.
type BuildingKind uint8

const (
	KindHousehold BuildingKind = iota
	KindWorkplace
	KindSchool

	// NumBuildingKinds is the number of BuildingKind values.
	NumBuildingKinds = 3
)

func (k BuildingKind) String() string {
	switch k {
	case KindHousehold:
		return "household"
	case KindWorkplace:
		return "workplace"
	case KindSchool:
		return "school"
	}
	return fmt.Sprintf("building-kind-%d", uint8(k))
}

// BuildingID identifies a building by its owning output area's dense
// index and a local index into that area's building array. The pair is
// frozen after load; UID is the stable opaque identifier.
type BuildingID struct {
	Area  int32
	Local int32
	UID   uuid.UUID
	Kind  BuildingKind
}

// IsZero reports whether the id is the zero value, i.e. refers to no
// building. Schedules must never contain a zero id after initialisation.
func (id BuildingID) IsZero() bool {
	return id.UID == uuid.Nil
}

func (id BuildingID) String() string {
	return fmt.Sprintf("%s %d/%d (%s)", id.Kind, id.Area, id.Local, id.UID)
}
