package trafficlight_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

var testPlannerConfig = config.Planner{
	MinDemand:    0.05,
	StarveDemand: 0.2,
	StarveBound:  45,
}

// 两相位布局：相位0放行车道0/1，相位1放行车道2/3
func newTestPlanner() *trafficlight.Planner {
	return trafficlight.NewPlanner(
		1,
		[][]int{{0, 1}, {2, 3}},
		4,
		testTiming,
		testPlannerConfig,
		60, // defaultCycle
		8,  // slack
	)
}

// greenMachine 创建已进入相位0绿灯的状态机
func greenMachine(now *float64) *trafficlight.PhaseMachine {
	m := newTestMachine(nil)
	m.Start(*now)
	tick(m, now, 2)
	return m
}

func demands(d ...float64) []entity.LaneState {
	out := make([]entity.LaneState, len(d))
	for i, v := range d {
		out[i] = entity.LaneState{Demand: v}
	}
	return out
}

func TestExtendWhenCurrentPhaseBusiest(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	d := p.Decide(demands(0.9, 0.8, 0.1, 0.1), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionExtend, d.Kind)
}

func TestSwitchToBusierPhase(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	d := p.Decide(demands(0.1, 0.1, 0.8, 0.9), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
	assert.Equal(t, 1, d.Target)
	assert.False(t, d.Forced)
}

func TestEqualDemandExtendsCurrent(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	// 需求完全相同，轮转顺序平局偏置使当前相位胜出
	d := p.Decide(demands(0.5, 0.5, 0.5, 0.5), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionExtend, d.Kind)
}

func TestNoDemandFallsBackToFixedRotation(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	// 需求全零：按等分周期固定轮转，固定绿灯=60/2-3-2=25秒
	d := p.Decide(demands(0, 0, 0, 0), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionHold, d.Kind)

	tick(m, &now, 25)
	d = p.Decide(demands(0, 0, 0, 0), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
	assert.Equal(t, 1, d.Target)
	assert.False(t, d.Forced)
}

func TestAllStaleFallsBackToFixedRotation(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	stale := demands(0.9, 0.9, 0.9, 0.9)
	for i := range stale {
		stale[i].Stale = true
	}
	// 失效车道的需求不可信，退化为固定轮转
	d := p.Decide(stale, m, nil, false, false, now)
	assert.Equal(t, entity.DecisionHold, d.Kind)
}

func TestStarvationOverridesDemand(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	// 相位1自启动起从未放行，等待超界后无视需求对比立即切换
	tick(m, &now, 48)
	assert.Equal(t, entity.PhaseModeGreen, m.Mode())
	d := p.Decide(demands(0.9, 0.9, 0.3, 0), m, nil, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
	assert.Equal(t, 1, d.Target)
}

func TestBiasDefersEarlySwitch(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)
	d8 := demands(0.1, 0.1, 0.8, 0.9)

	// 目标时间在slack窗口内，提前切换转为延长
	bias := &entity.PhaseBias{Phase: 1, NotBefore: now + 5}
	d := p.Decide(d8, m, bias, false, false, now)
	assert.Equal(t, entity.DecisionExtend, d.Kind)

	// 目标时间超出slack窗口，偏置不生效
	bias = &entity.PhaseBias{Phase: 1, NotBefore: now + 20}
	d = p.Decide(d8, m, bias, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)

	// 目标时间已过，照常切换
	bias = &entity.PhaseBias{Phase: 1, NotBefore: now - 1}
	d = p.Decide(d8, m, bias, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
}

func TestBiasNeverDefersStarvation(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	tick(m, &now, 48)
	bias := &entity.PhaseBias{Phase: 1, NotBefore: now + 5}
	d := p.Decide(demands(0.9, 0.9, 0.3, 0), m, bias, false, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
	assert.Equal(t, 1, d.Target)
}

func TestFixedTimeIgnoresDemand(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)
	d9 := demands(0.9, 0.9, 0, 0)

	// 兜底固定配时下需求不参与决策
	tick(m, &now, 25)
	d := p.Decide(d9, m, nil, true, false, now)
	assert.Equal(t, entity.DecisionSwitch, d.Kind)
	assert.Equal(t, 1, d.Target)
}

func TestSurgeTriggersSwitchAfterSustainedGreen(t *testing.T) {
	p := newTestPlanner()
	now := 0.0
	m := greenMachine(&now)

	// 相位0持续高需求，决策始终为延长
	for range 38 {
		d := p.Decide(demands(0.9, 0.85, 0, 0), m, nil, false, false, now)
		m.Apply(d, now)
		tick(m, &now, 1)
		assert.Equal(t, entity.PhaseModeGreen, m.Mode())
		assert.Equal(t, 0, m.Current())
	}

	// 相位1需求突增反超，已过最小绿灯，立即进入清空
	d := p.Decide(demands(0.9, 0.85, 0.9, 0.9), m, nil, false, false, now)
	m.Apply(d, now)
	assert.Equal(t, entity.PhaseModeYellowClearance, m.Mode())
	assert.Equal(t, 1, m.Current())
}
