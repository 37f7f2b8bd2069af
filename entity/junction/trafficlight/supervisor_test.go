package trafficlight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

var testSupervisorConfig = config.Supervisor{
	CoverageThreshold: 0.5,
	GracePeriod:       5,
	SettlePeriod:      10,
}

func states(stale ...bool) []entity.LaneState {
	out := make([]entity.LaneState, len(stale))
	for i, s := range stale {
		out[i] = entity.LaneState{Demand: 0.5, Stale: s}
	}
	return out
}

func TestDegradeAfterGracePeriod(t *testing.T) {
	s := trafficlight.NewSupervisor(1, testSupervisorConfig)

	// 覆盖率1/4低于阈值，宽限期内仍保持自适应
	bad := states(true, true, true, false)
	for range 4 {
		fixedTime, justDegraded := s.Update(1, bad)
		assert.False(t, fixedTime)
		assert.False(t, justDegraded)
	}
	// 宽限期满，切入固定配时，且仅在切入节拍上报justDegraded
	fixedTime, justDegraded := s.Update(1, bad)
	assert.True(t, fixedTime)
	assert.True(t, justDegraded)

	fixedTime, justDegraded = s.Update(1, bad)
	assert.True(t, fixedTime)
	assert.False(t, justDegraded)
}

func TestRecoverAfterSettlePeriod(t *testing.T) {
	s := trafficlight.NewSupervisor(1, testSupervisorConfig)
	bad := states(true, true)
	good := states(false, false)

	for range 5 {
		s.Update(1, bad)
	}
	assert.True(t, s.Degraded())

	// 覆盖恢复后需要稳定期满才切回自适应
	for range 9 {
		fixedTime, _ := s.Update(1, good)
		assert.True(t, fixedTime)
	}
	fixedTime, _ := s.Update(1, good)
	assert.False(t, fixedTime)
	assert.False(t, s.Degraded())
}

func TestRecoveryTimerResetsOnDropout(t *testing.T) {
	s := trafficlight.NewSupervisor(1, testSupervisorConfig)
	bad := states(true, true)
	good := states(false, false)

	for range 5 {
		s.Update(1, bad)
	}
	for range 8 {
		s.Update(1, good)
	}
	// 稳定期内再次覆盖不足，恢复计时清零
	s.Update(1, bad)
	for range 9 {
		fixedTime, _ := s.Update(1, good)
		assert.True(t, fixedTime)
	}
	fixedTime, _ := s.Update(1, good)
	assert.False(t, fixedTime)
}
