package squeeze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector_EmptyIsNotHighConviction(t *testing.T) {
	assert.False(t, NewDetector(3).IsHighConviction())
}

func TestDetector_RemembersResolvedSqueeze(t *testing.T) {
	d := NewDetector(3)
	d.Record(true)
	d.Record(false)
	d.Record(false)

	assert.True(t, d.IsHighConviction(), "squeeze two bars ago is still remembered")

	d.Record(false)
	assert.False(t, d.IsHighConviction(), "squeeze expired from the ring")
}

func TestDetector_CurrentBar(t *testing.T) {
	d := NewDetector(DefaultMemory)
	for i := 0; i < 10; i++ {
		d.Record(false)
	}
	d.Record(true)

	assert.True(t, d.IsHighConviction())
	assert.Equal(t, DefaultMemory, d.Size())
}

func TestDetector_MinimumSize(t *testing.T) {
	d := NewDetector(0)
	d.Record(true)
	assert.True(t, d.IsHighConviction())
	d.Record(false)
	assert.False(t, d.IsHighConviction())
}
