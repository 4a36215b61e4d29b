package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSource struct {
	calls int
	inner *Source
}

func (c *countingSource) Uniform(lo, hi float64) float64 {
	c.calls++
	return c.inner.Uniform(lo, hi)
}

func TestSource_Range(t *testing.T) {
	s := NewSource(7)
	for i := 0; i < 1000; i++ {
		v := s.Uniform(-3, 5)
		assert.GreaterOrEqual(t, v, -3.0)
		assert.LessOrEqual(t, v, 5.0)
	}
}

func TestSource_DegenerateAndSwapped(t *testing.T) {
	s := NewSource(1)
	assert.Equal(t, 2.5, s.Uniform(2.5, 2.5))

	v := s.Uniform(10, 4)
	assert.GreaterOrEqual(t, v, 4.0)
	assert.LessOrEqual(t, v, 10.0)
}

func TestSource_Deterministic(t *testing.T) {
	a, b := NewSource(42), NewSource(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Uniform(0, 1), b.Uniform(0, 1))
	}
}

func TestRandomizer_Ranges(t *testing.T) {
	r := NewRandomizer(NewSource(3))

	for i := 0; i < 500; i++ {
		target := r.TargetRotation()
		assert.True(t, target.X >= TargetPitchMin && target.X <= TargetPitchMax, "pitch %v", target.X)
		assert.True(t, target.Y >= TargetYawMin && target.Y <= TargetYawMax, "yaw %v", target.Y)
		assert.True(t, target.Z >= TargetRollMin && target.Z <= TargetRollMax, "roll %v", target.Z)

		light := r.LightRotation()
		assert.True(t, light.X >= LightPitchMin && light.X <= LightPitchMax, "light pitch %v", light.X)
		assert.True(t, light.Y >= LightYawMin && light.Y <= LightYawMax, "light yaw %v", light.Y)
		assert.Zero(t, light.Z)

		d := r.Distance(-8, -4)
		assert.True(t, d >= -8 && d <= -4, "distance %v", d)
	}
}

func TestRandomizer_SamplesPerCall(t *testing.T) {
	src := &countingSource{inner: NewSource(9)}
	r := NewRandomizer(src)

	r.TargetRotation()
	assert.Equal(t, 3, src.calls)
	r.LightRotation()
	assert.Equal(t, 5, src.calls)
	r.Distance(1, 2)
	assert.Equal(t, 6, src.calls)
}
