// 提供自适应配时决策
// 每个控制节拍比较当前相位与未放行相位的聚合需求，在延长与切换之间选择，
// 饥饿车道的保障优先于纯需求比较，保证有需求的车道等待有界
package trafficlight

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/container"
	"gonum.org/v1/gonum/floats"
)

// 轮转顺序平局偏置，需求完全相同时距当前相位近者优先，保证决策确定可复现
const rrTieEpsilon = 1e-9

// Planner 自适应配时决策器
// 功能：根据车道需求快照产生extend/switch/hold决策，
// 不直接修改相位状态，决策由PhaseMachine统一消费
type Planner struct {
	junctionID int32
	// 各相位成员车道在路口车道序列中的下标
	phaseLanes [][]int
	// 各车道所属的相位下标列表
	lanePhases [][]int

	timing       config.Timing
	cfg          config.Planner
	defaultCycle float64
	slack        float64
}

// NewPlanner 创建自适应配时决策器
// 参数：junctionID-路口ID，phaseLanes-各相位成员车道下标，
// laneCount-路口车道数，timing-配时约束，cfg-决策配置，
// defaultCycle-兜底固定周期，slack-干线协调允许的最大推迟
func NewPlanner(
	junctionID int32,
	phaseLanes [][]int,
	laneCount int,
	timing config.Timing,
	cfg config.Planner,
	defaultCycle float64,
	slack float64,
) *Planner {
	lanePhases := make([][]int, laneCount)
	for pi, members := range phaseLanes {
		for _, li := range members {
			lanePhases[li] = append(lanePhases[li], pi)
		}
	}
	return &Planner{
		junctionID:   junctionID,
		phaseLanes:   phaseLanes,
		lanePhases:   lanePhases,
		timing:       timing,
		cfg:          cfg,
		defaultCycle: defaultCycle,
		slack:        slack,
	}
}

// Decide 产生本节拍的配时决策
// 功能：绿灯期间的核心决策逻辑
// 参数：states-路口车道状态快照（与车道序列同序），m-相位状态机，
// bias-干线协调建议（可为nil），fixedTime-是否处于兜底固定配时，
// forceAlign-刚切入兜底模式时强制对齐固定周期，now-当前引擎时间
// 算法说明：
// 1. 兜底固定配时：按各相位固定绿灯时长轮转，忽略需求
// 2. 全部车道失效或需求全零：退化为等分默认周期的固定轮转
//    （与监督器独立检查的兜底条件一致）
// 3. 饥饿保障：需求超过下限且等待超界的车道立即触发切换，
//    覆盖纯需求比较，保证偏斜流量下的有界等待
// 4. 需求比较：聚合各相位成员车道需求，堆排序取最大，
//    平局按轮转顺序就近，当前相位最优则延长
// 5. 干线偏置：建议性推迟仅作用于向协调相位的提前切换，
//    永不作用于饥饿触发的切换，推迟量受slack限制
func (p *Planner) Decide(
	states []entity.LaneState,
	m *PhaseMachine,
	bias *entity.PhaseBias,
	fixedTime bool,
	forceAlign bool,
	now float64,
) entity.Decision {
	if m.Mode() != entity.PhaseModeGreen {
		return entity.Decision{Kind: entity.DecisionHold}
	}
	if fixedTime {
		return p.fixedDecision(m, forceAlign)
	}

	demands := lo.Map(states, func(s entity.LaneState, _ int) float64 { return s.Demand })
	allStale := lo.EveryBy(states, func(s entity.LaneState) bool { return s.Stale })
	if allStale || floats.Sum(demands) < p.cfg.MinDemand {
		// 无可信需求，退化为固定轮转
		return p.fixedDecision(m, false)
	}

	current := m.Current()
	n := len(p.phaseLanes)

	// 饥饿保障
	if starved := p.starvedTarget(states, m, now); starved >= 0 && starved != current {
		return entity.Decision{Kind: entity.DecisionSwitch, Target: starved}
	}

	// 相位需求排序，压力最大者优先
	pq := container.NewPriorityQueue[int]()
	for pi, members := range p.phaseLanes {
		sum := floats.Sum(lo.Map(members, func(li int, _ int) float64 { return demands[li] }))
		rrDist := float64((pi - current + n) % n)
		pq.Push(pi, -sum+rrTieEpsilon*rrDist)
	}
	pq.Heapify()
	best, _ := pq.HeapPop()
	if best == current {
		return entity.Decision{Kind: entity.DecisionExtend}
	}

	d := entity.Decision{Kind: entity.DecisionSwitch, Target: best}
	// 干线绿波偏置：在slack窗口内将过早的切换转为延长
	if bias != nil && bias.Phase == best && now < bias.NotBefore && bias.NotBefore-now <= p.slack {
		return entity.Decision{Kind: entity.DecisionExtend}
	}
	return d
}

// starvedTarget 查找饥饿车道对应的切换目标相位
// 功能：返回等待最久的饥饿车道所属相位，无饥饿车道返回-1
// 说明：车道的等待时长取其所属相位中最近被放行者，
// 多相位覆盖的车道只要任一相位近期放行即不算饥饿
func (p *Planner) starvedTarget(states []entity.LaneState, m *PhaseMachine, now float64) int {
	worstLane := -1
	worstWait := 0.0
	for li, s := range states {
		if s.Stale || s.Demand < p.cfg.StarveDemand {
			continue
		}
		wait := 0.0
		for i, pi := range p.lanePhases[li] {
			w := m.TimeSinceServed(pi, now)
			if i == 0 || w < wait {
				wait = w
			}
		}
		if wait > p.cfg.StarveBound && wait > worstWait {
			worstWait = wait
			worstLane = li
		}
	}
	if worstLane < 0 {
		return -1
	}
	// 目标取该车道所属相位中等待最久者
	target := p.lanePhases[worstLane][0]
	for _, pi := range p.lanePhases[worstLane][1:] {
		if m.TimeSinceServed(pi, now) > m.TimeSinceServed(target, now) {
			target = pi
		}
	}
	return target
}
