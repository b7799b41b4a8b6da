// core/interventions.go
package core

import (
	"context"

	"github.com/NoSuchThingAsRandom/EpidemicSimulator/internal/logging"
)

// MaskStatus is the current step of the mask-wearing ladder. Each step
// covers more building kinds and is entered or left when the infected
// percentage crosses its threshold.
type MaskStatus int

const (
	MaskNone MaskStatus = iota
	MaskPublicTransport
	MaskEverywhere
)

func (m MaskStatus) String() string {
	switch m {
	case MaskNone:
		return "none"
	case MaskPublicTransport:
		return "public transport"
	case MaskEverywhere:
		return "everywhere"
	}
	return "unknown"
}

// InterventionConfig holds the trigger thresholds and effect strengths
// for the three interventions. A nil threshold disables that
// intervention entirely.
type InterventionConfig struct {
	// LockdownThreshold is the infected fraction above which a lockdown
	// starts. The lockdown lifts once the fraction falls back below.
	LockdownThreshold *float64
	// LockdownCrowding scales per-pair pressure in workplaces that stay
	// open through a lockdown.
	LockdownCrowding float64

	// VaccinationThreshold is the infected fraction at which the
	// vaccination programme starts. Once started it never stops.
	VaccinationThreshold *float64
	// VaccinationRate is how many citizens are vaccinated per tick.
	VaccinationRate int

	// MaskTransportThreshold and MaskEverywhereThreshold drive the mask
	// ladder. The transport multiplier applies to workplace and school
	// exposure while that step is active; the everywhere multiplier
	// applies to every building kind, households included.
	MaskTransportThreshold   float64
	MaskEverywhereThreshold  float64
	MaskTransportMultiplier  float64
	MaskEverywhereMultiplier float64

	// SymptomStart is how many ticks into the infectious window a
	// citizen turns symptomatic and is pinned to their household.
	SymptomStart uint16
}

func floatPtr(v float64) *float64 { return &v }

// DefaultInterventionConfig returns the thresholds the original census
// study was run with.
func DefaultInterventionConfig() InterventionConfig {
	return InterventionConfig{
		LockdownThreshold:        floatPtr(0.6),
		LockdownCrowding:         0.5,
		VaccinationThreshold:     floatPtr(0.3),
		VaccinationRate:          100,
		MaskTransportThreshold:   0.2,
		MaskEverywhereThreshold:  0.4,
		MaskTransportMultiplier:  0.8,
		MaskEverywhereMultiplier: 0.6,
		SymptomStart:             48,
	}
}

// ApplyDefaults fills zero-valued effect strengths so a config that only
// sets thresholds behaves sensibly.
func (c InterventionConfig) ApplyDefaults() InterventionConfig {
	d := DefaultInterventionConfig()
	if c.LockdownCrowding <= 0 {
		c.LockdownCrowding = d.LockdownCrowding
	}
	if c.VaccinationRate <= 0 {
		c.VaccinationRate = d.VaccinationRate
	}
	if c.MaskTransportThreshold <= 0 {
		c.MaskTransportThreshold = d.MaskTransportThreshold
	}
	if c.MaskEverywhereThreshold <= 0 {
		c.MaskEverywhereThreshold = d.MaskEverywhereThreshold
	}
	if c.MaskTransportMultiplier <= 0 {
		c.MaskTransportMultiplier = d.MaskTransportMultiplier
	}
	if c.MaskEverywhereMultiplier <= 0 {
		c.MaskEverywhereMultiplier = d.MaskEverywhereMultiplier
	}
	if c.SymptomStart == 0 {
		c.SymptomStart = d.SymptomStart
	}
	return c
}

// Effects is the immutable per-tick policy snapshot produced by the
// controller. The scheduler and the kernel read it; nothing mutates it
// until the next tick.
type Effects struct {
	Lockdown bool
	// WorkplaceCrowding multiplies workplace pressure; 1 outside a
	// lockdown.
	WorkplaceCrowding float64
	// MaskMultiplier applies to buildings whose kind is covered by the
	// current mask step; 1 when masks are off.
	MaskMultiplier float64
	Mask           MaskStatus
	// Vaccinations is how many citizens to vaccinate this tick. 0 while
	// the programme has not started.
	Vaccinations int
	// SymptomStart pins symptomatic infected citizens to their homes.
	SymptomStart uint16
}

// Controller evaluates intervention triggers once per tick, before the
// scheduler runs. Its effects are frozen for the duration of the tick.
type Controller struct {
	cfg InterventionConfig
	log logging.Logger

	lockdownSince    int
	lockdownActive   bool
	vaccinationSince int
	vaccinationOn    bool
	mask             MaskStatus
}

// NewController constructs a controller with the given config. A nil
// logger drops the transition log lines.
func NewController(cfg InterventionConfig, log logging.Logger) *Controller {
	if log == nil {
		log = logging.Noop()
	}
	return &Controller{cfg: cfg.ApplyDefaults(), log: log}
}

// Evaluate updates intervention state from the infected percentage and
// returns the policy snapshot for this tick.
func (ic *Controller) Evaluate(ctx context.Context, tick int, infectedPct float64) Effects {
	cfg := ic.cfg

	if cfg.LockdownThreshold != nil {
		switch {
		case !ic.lockdownActive && infectedPct > *cfg.LockdownThreshold:
			ic.lockdownActive = true
			ic.lockdownSince = tick
			ic.log.Info(ctx, "lockdown enacted", logging.Tick(tick))
		case ic.lockdownActive && infectedPct <= *cfg.LockdownThreshold:
			ic.lockdownActive = false
			ic.log.Info(ctx, "lockdown lifted", logging.Tick(tick))
		}
	}

	if cfg.VaccinationThreshold != nil && !ic.vaccinationOn && infectedPct > *cfg.VaccinationThreshold {
		ic.vaccinationOn = true
		ic.vaccinationSince = tick
		ic.log.Info(ctx, "vaccination programme started", logging.Tick(tick))
	}

	prev := ic.mask
	switch ic.mask {
	case MaskNone:
		if infectedPct > cfg.MaskTransportThreshold {
			ic.mask = MaskPublicTransport
		}
	case MaskPublicTransport:
		if infectedPct > cfg.MaskEverywhereThreshold {
			ic.mask = MaskEverywhere
		} else if infectedPct <= cfg.MaskTransportThreshold {
			ic.mask = MaskNone
		}
	case MaskEverywhere:
		if infectedPct <= cfg.MaskEverywhereThreshold {
			ic.mask = MaskPublicTransport
		}
	}
	if ic.mask != prev {
		ic.log.Info(ctx, "mask policy changed",
			logging.Tick(tick),
			logging.String("from", prev.String()),
			logging.String("to", ic.mask.String()))
	}

	eff := Effects{
		Lockdown:          ic.lockdownActive,
		WorkplaceCrowding: 1,
		MaskMultiplier:    1,
		Mask:              ic.mask,
		SymptomStart:      cfg.SymptomStart,
	}
	if ic.lockdownActive {
		eff.WorkplaceCrowding = cfg.LockdownCrowding
	}
	switch ic.mask {
	case MaskPublicTransport:
		eff.MaskMultiplier = cfg.MaskTransportMultiplier
	case MaskEverywhere:
		eff.MaskMultiplier = cfg.MaskEverywhereMultiplier
	}
	if ic.vaccinationOn {
		eff.Vaccinations = cfg.VaccinationRate
	}
	return eff
}

// LockdownActive reports whether a lockdown is currently in force.
func (ic *Controller) LockdownActive() bool { return ic.lockdownActive }

// VaccinationStarted reports whether the vaccination programme has begun.
func (ic *Controller) VaccinationStarted() bool { return ic.vaccinationOn }
