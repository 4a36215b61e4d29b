// Package pose draws the random target, light and camera placements used
// while sweeping.
package pose

import (
	"math/rand/v2"

	"github.com/keypointsim/recorder/pkg/core"
	"gonum.org/v1/gonum/stat/distuv"
)

// Angle ranges in degrees.
const (
	TargetPitchMin = -50.0
	TargetPitchMax = 50.0
	TargetYawMin   = -50.0
	TargetYawMax   = 50.0
	TargetRollMin  = 0.0
	TargetRollMax  = 360.0

	LightPitchMin = 20.0
	LightPitchMax = 90.0
	LightYawMin   = -30.0
	LightYawMax   = 70.0
)

// Source draws uniform samples from a seeded PCG generator.
type Source struct {
	src rand.Source
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	return &Source{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Uniform returns a sample in [lo, hi]. Equal bounds return lo.
func (s *Source) Uniform(lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: s.src}.Rand()
}

// Uniform is the sampling surface the randomizer needs.
type Uniform interface {
	Uniform(lo, hi float64) float64
}

// Randomizer samples poses from a Uniform source.
type Randomizer struct {
	rng Uniform
}

// NewRandomizer wraps rng.
func NewRandomizer(rng Uniform) *Randomizer {
	return &Randomizer{rng: rng}
}

// TargetRotation draws the target orientation.
func (r *Randomizer) TargetRotation() core.EulerAngles {
	return core.EulerAngles{
		X: r.rng.Uniform(TargetPitchMin, TargetPitchMax),
		Y: r.rng.Uniform(TargetYawMin, TargetYawMax),
		Z: r.rng.Uniform(TargetRollMin, TargetRollMax),
	}
}

// LightRotation draws the directional light orientation. Roll is always zero.
func (r *Randomizer) LightRotation() core.EulerAngles {
	return core.EulerAngles{
		X: r.rng.Uniform(LightPitchMin, LightPitchMax),
		Y: r.rng.Uniform(LightYawMin, LightYawMax),
	}
}

// Distance draws a camera depth in [near, far].
func (r *Randomizer) Distance(near, far float64) float64 {
	return r.rng.Uniform(near, far)
}
