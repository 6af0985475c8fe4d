package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDivAndMod(t *testing.T) {
	cases := []struct {
		a, b, div, mod int
	}{
		{0, 16, 0, 0},
		{15, 16, 0, 15},
		{16, 16, 1, 0},
		{-1, 16, -1, 15},
		{-16, 16, -1, 0},
		{-17, 16, -2, 15},
		{33, 16, 2, 1},
	}

	for _, c := range cases {
		assert.Equal(t, c.div, FloorDiv(c.a, c.b), "FloorDiv(%d,%d)", c.a, c.b)
		assert.Equal(t, c.mod, Mod(c.a, c.b), "Mod(%d,%d)", c.a, c.b)
	}
}

func TestFloorDivReconstruction(t *testing.T) {
	for a := -1000; a <= 1000; a++ {
		for _, b := range []int{1, 7, 16, 32} {
			assert.Equal(t, a, FloorDiv(a, b)*b+Mod(a, b), "a=%d b=%d", a, b)
		}
	}
}

func TestVec3FloatFloor(t *testing.T) {
	v := Vec3Float{X: -0.5, Y: 1.9, Z: -16.0}
	assert.Equal(t, Vec3{X: -1, Y: 1, Z: -16}, v.Floor())
}

func TestVec2Chebyshev(t *testing.T) {
	a := Vec2{X: 10, Y: 0}
	assert.Equal(t, 10, a.Chebyshev(Vec2{}))
	assert.Equal(t, 3, Vec2{X: -2, Y: 3}.Chebyshev(Vec2{}))
	assert.Equal(t, 13, Vec2{X: -2, Y: 3}.DistanceSq(Vec2{}))
}
