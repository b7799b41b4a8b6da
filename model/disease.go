// model/disease.go
package model

import (
	"errors"
	"fmt"
)

// StatusKind enumerates the disease compartments.
type StatusKind uint8

const (
	Susceptible StatusKind = iota
	Exposed
	Infected
	Recovered
	Vaccinated
	Dead

	// NumStatusKinds is the number of StatusKind values.
	NumStatusKinds = 6
)

func (k StatusKind) String() string {
	switch k {
	case Susceptible:
		return "susceptible"
	case Exposed:
		return "exposed"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	case Vaccinated:
		return "vaccinated"
	case Dead:
		return "dead"
	}
	return fmt.Sprintf("status-%d", uint8(k))
}

// DiseaseStatus is the tagged health state of one citizen. Remaining is
// the countdown in ticks for the Exposed and Infected states and zero for
// every other state. Countdowns decrement exactly once per tick.
type DiseaseStatus struct {
	Kind      StatusKind
	Remaining uint16
}

// NewExposed returns an Exposed status with the full incubation countdown.
func NewExposed(incubation uint16) DiseaseStatus {
	return DiseaseStatus{Kind: Exposed, Remaining: incubation}
}

// NewInfected returns an Infected status with the full infectious countdown.
func NewInfected(duration uint16) DiseaseStatus {
	return DiseaseStatus{Kind: Infected, Remaining: duration}
}

// Terminal reports whether the status can never change again.
func (s DiseaseStatus) Terminal() bool {
	return s.Kind == Recovered || s.Kind == Vaccinated || s.Kind == Dead
}

func (s DiseaseStatus) String() string {
	switch s.Kind {
	case Exposed, Infected:
		return fmt.Sprintf("%s (%d hours remaining)", s.Kind, s.Remaining)
	default:
		return s.Kind.String()
	}
}

// DiseaseModel holds the epidemic parameters supplied by the loader.
type DiseaseModel struct {
	// ReproductionRate is the expected secondary cases per infection in a
	// fully susceptible population. Informational; the per-pair chance
	// below drives the kernel.
	ReproductionRate float64
	// ExposureChance is the base per-pair probability of transmission for
	// one hour of co-location.
	ExposureChance float64
	// DeathRate is the probability an infection terminates in death.
	DeathRate float64
	// ExposedTime is the incubation period in ticks.
	ExposedTime uint16
	// InfectedTime is the infectious period in ticks.
	InfectedTime uint16
	// MaxTimeStep bounds the run length in ticks.
	MaxTimeStep int
	// ExposureScaling multiplies the per-pair probability in every
	// building, after the kind, mask and crowding factors. 1 leaves it
	// unchanged.
	ExposureScaling float64
}

// ErrInvalidDiseaseModel indicates the model failed validation.
var ErrInvalidDiseaseModel = errors.New("invalid disease model")

// Validate reports configuration errors. These abort before any ticks.
func (m DiseaseModel) Validate() error {
	if m.ExposureChance < 0 || m.ExposureChance > 1 {
		return fmt.Errorf("%w: exposure chance %v outside [0,1]", ErrInvalidDiseaseModel, m.ExposureChance)
	}
	if m.DeathRate < 0 || m.DeathRate > 1 {
		return fmt.Errorf("%w: death rate %v outside [0,1]", ErrInvalidDiseaseModel, m.DeathRate)
	}
	if m.ExposedTime == 0 {
		return fmt.Errorf("%w: exposed time must be at least one tick", ErrInvalidDiseaseModel)
	}
	if m.InfectedTime == 0 {
		return fmt.Errorf("%w: infected time must be at least one tick", ErrInvalidDiseaseModel)
	}
	if m.MaxTimeStep <= 0 {
		return fmt.Errorf("%w: max time step must be positive", ErrInvalidDiseaseModel)
	}
	return nil
}

// ApplyDefaults fills zero-valued optional fields.
func (m DiseaseModel) ApplyDefaults() DiseaseModel {
	if m.ExposureScaling <= 0 {
		m.ExposureScaling = 1
	}
	return m
}

// Covid returns a model loosely representative of COVID-19: four days of
// incubation, fourteen infectious, matching the parameters the original
// census study was run with.
func Covid() DiseaseModel {
	return DiseaseModel{
		ReproductionRate: 2.5,
		ExposureChance:   0.8,
		DeathRate:        0.2,
		ExposedTime:      4 * 24,
		InfectedTime:     14 * 24,
		MaxTimeStep:      1000,
		ExposureScaling:  1,
	}
}
