// 提供兜底固定配时
// 传感器失效或需求缺失时按预配置（或等分默认周期）的固定时长轮转，
// 清空约束仍由相位状态机强制执行
package trafficlight

import "github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"

// fixedDecision 兜底固定配时决策
// 功能：当前相位绿灯达到固定时长后按轮转顺序切换，否则维持
// 参数：m-相位状态机，forceAlign-是否强制覆盖最小绿灯约束
// （仅在刚切入兜底模式、需要立即对齐固定周期时使用）
// 说明：每相位固定时长优先取fixed_green配置，
// 缺省时等分默认周期并扣除清空时长，下限为最小绿灯
func (p *Planner) fixedDecision(m *PhaseMachine, forceAlign bool) entity.Decision {
	current := m.Current()
	if m.Elapsed() >= p.fixedGreen(current) {
		next := (current + 1) % len(p.phaseLanes)
		return entity.Decision{Kind: entity.DecisionSwitch, Target: next, Forced: forceAlign}
	}
	return entity.Decision{Kind: entity.DecisionHold}
}

// fixedGreen 相位在固定配时下的绿灯时长
func (p *Planner) fixedGreen(phase int) float64 {
	if len(p.timing.FixedGreen) == len(p.phaseLanes) {
		return p.timing.FixedGreen[phase]
	}
	share := p.defaultCycle/float64(len(p.phaseLanes)) - p.timing.Yellow - p.timing.AllRed
	if share < p.timing.MinGreen {
		share = p.timing.MinGreen
	}
	return share
}
