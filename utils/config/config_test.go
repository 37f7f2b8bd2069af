package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

func validConfig() config.Config {
	return config.Config{
		Junctions: []config.Junction{
			{
				ID: 1,
				Lanes: []config.Lane{
					{ID: 101, Conflicts: []int32{102}},
					{ID: 102},
				},
				Phases: []config.Phase{
					{Name: "NS", Lanes: []int32{101}},
					{Name: "EW", Lanes: []int32{102}},
				},
			},
			{
				ID: 2,
				Lanes: []config.Lane{
					{ID: 201, Conflicts: []int32{202}},
					{ID: 202},
				},
				Phases: []config.Phase{
					{Name: "NS", Lanes: []int32{201}},
					{Name: "EW", Lanes: []int32{202}},
				},
			},
		},
		Corridors: []config.Corridor{{
			Name: "main",
			Members: []config.CorridorMember{
				{Junction: 1, Phase: "NS"},
				{Junction: 2, Phase: "NS"},
			},
			Travel: []float64{15},
		}},
	}
}

func TestDefaultsApplied(t *testing.T) {
	rc, err := config.NewRuntimeConfig(validConfig())
	require.NoError(t, err)

	assert.Equal(t, config.DefaultInterval, rc.C.Step.Interval)
	assert.Equal(t, config.DefaultCycleLength, rc.C.DefaultCycle)
	assert.Equal(t, config.DefaultHalfLife, rc.All.Aggregator.HalfLife)
	assert.Equal(t, config.DefaultStarveBound, rc.All.Planner.StarveBound)
	assert.Equal(t, config.DefaultGracePeriod, rc.All.Supervisor.GracePeriod)
	for _, j := range rc.All.Junctions {
		assert.Equal(t, config.DefaultMinGreen, j.Timing.MinGreen)
		assert.Equal(t, config.DefaultYellow, j.Timing.Yellow)
	}
}

func TestExplicitValuesKept(t *testing.T) {
	c := validConfig()
	c.Control.Step.Interval = 0.5
	c.Junctions[0].Timing.MinGreen = 5
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)
	assert.Equal(t, 0.5, rc.C.Step.Interval)
	assert.Equal(t, 5.0, rc.All.Junctions[0].Timing.MinGreen)
}

func TestRejectBadConfigs(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"no junctions": func(c *config.Config) {
			c.Junctions = nil
		},
		"duplicate junction id": func(c *config.Config) {
			c.Junctions[1].ID = 1
		},
		"duplicate lane id": func(c *config.Config) {
			c.Junctions[1].Lanes[0].ID = 101
		},
		"no phases": func(c *config.Config) {
			c.Junctions[0].Phases = nil
		},
		"empty phase": func(c *config.Config) {
			c.Junctions[0].Phases[0].Lanes = nil
		},
		"unnamed phase": func(c *config.Config) {
			c.Junctions[0].Phases[0].Name = ""
		},
		"duplicate phase name": func(c *config.Config) {
			c.Junctions[0].Phases[1].Name = "NS"
		},
		"phase references foreign lane": func(c *config.Config) {
			c.Junctions[0].Phases[0].Lanes = []int32{201}
		},
		"conflicting lanes in one phase": func(c *config.Config) {
			c.Junctions[0].Phases[0].Lanes = []int32{101, 102}
		},
		"lane served by no phase": func(c *config.Config) {
			c.Junctions[0].Phases[1].Lanes = []int32{101}
		},
		"conflict with unknown lane": func(c *config.Config) {
			c.Junctions[0].Lanes[0].Conflicts = []int32{999}
		},
		"self conflict": func(c *config.Config) {
			c.Junctions[0].Lanes[0].Conflicts = []int32{101}
		},
		"min green above max green": func(c *config.Config) {
			c.Junctions[0].Timing.MinGreen = 90
			c.Junctions[0].Timing.MaxGreen = 30
		},
		"fixed green length mismatch": func(c *config.Config) {
			c.Junctions[0].Timing.FixedGreen = []float64{20}
		},
		"corridor too short": func(c *config.Config) {
			c.Corridors[0].Members = c.Corridors[0].Members[:1]
		},
		"corridor travel count mismatch": func(c *config.Config) {
			c.Corridors[0].Travel = []float64{15, 20}
		},
		"corridor negative travel": func(c *config.Config) {
			c.Corridors[0].Travel = []float64{-5}
		},
		"corridor unknown junction": func(c *config.Config) {
			c.Corridors[0].Members[0].Junction = 99
		},
		"corridor unknown phase": func(c *config.Config) {
			c.Corridors[0].Members[0].Phase = "nope"
		},
	} {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			_, err := config.NewRuntimeConfig(c)
			assert.Error(t, err)
		})
	}
}

func TestConflictClosure(t *testing.T) {
	closure := config.ConflictClosure([]config.Lane{
		{ID: 1, Conflicts: []int32{2, 3}},
		{ID: 2},
		{ID: 3},
	})
	_, ok := closure[2][1]
	assert.True(t, ok)
	_, ok = closure[3][1]
	assert.True(t, ok)
	_, ok = closure[2][3]
	assert.False(t, ok)
}

func TestFixedGreenAccepted(t *testing.T) {
	c := validConfig()
	c.Junctions[0].Timing.FixedGreen = []float64{20, 25}
	_, err := config.NewRuntimeConfig(c)
	assert.NoError(t, err)
}
