package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, 1, c.Probes)
	assert.Equal(t, 40, c.EFSearch)
}

func TestWithBuildersReturnCopies(t *testing.T) {
	base := Default()
	tuned := base.WithProbes(5).WithEFSearch(200)

	assert.Equal(t, 1, base.Probes, "base must be unmodified")
	assert.Equal(t, 5, tuned.Probes)
	assert.Equal(t, 200, tuned.EFSearch)
}

func TestClampEFSearchBounds(t *testing.T) {
	assert.Equal(t, 1, Default().WithEFSearch(0).ClampEFSearch().EFSearch)
	assert.Equal(t, 1, Default().WithEFSearch(-5).ClampEFSearch().EFSearch)
	assert.Equal(t, 1000, Default().WithEFSearch(5000).ClampEFSearch().EFSearch)
	assert.Equal(t, 40, Default().ClampEFSearch().EFSearch)
}

func TestClampProbesBounds(t *testing.T) {
	assert.Equal(t, 1, Default().WithProbes(0).ClampProbes(10).Probes)
	assert.Equal(t, 10, Default().WithProbes(99).ClampProbes(10).Probes)
	assert.Equal(t, 3, Default().WithProbes(3).ClampProbes(10).Probes)
}
