package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuaranteeManagerMinOverEmptySet(t *testing.T) {
	g := newGuaranteeManager()
	_, any := g.min()
	assert.False(t, any)
}

func TestGuaranteeManagerTracksSlowestReader(t *testing.T) {
	g := newGuaranteeManager()
	a := &Reader{}
	b := &Reader{}

	g.add(a, 100)
	g.add(b, 40)

	min, any := g.min()
	assert.True(t, any)
	assert.Equal(t, uint64(40), min)

	g.update(b, 200)
	min, _ = g.min()
	assert.Equal(t, uint64(100), min)

	g.remove(a)
	min, _ = g.min()
	assert.Equal(t, uint64(200), min)
}

func TestGuaranteeManagerUpdateIgnoresUnknownReader(t *testing.T) {
	g := newGuaranteeManager()
	stray := &Reader{}
	g.update(stray, 10)
	_, any := g.min()
	assert.False(t, any)
}
