package junction

import (
	"fmt"
	"sync/atomic"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/junction/trafficlight"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// Junction 路口实体
// 功能：拥有路口内的车道、相位表与相位状态，
// 每个控制节拍内依次执行监督、决策与状态机推进
// 说明：相位状态只通过状态机接口变化，决策器与协调器均不直接改写；
// 路口间相互独立，节拍内跨路口只读快照，不存在阻塞等待
type Junction struct {
	ctx entity.ITaskContext

	id         int32
	lanes      []entity.ILane // 与配置同序
	phaseNames []string
	// 各相位放行车道ID与车道下标
	greenLanes [][]int32
	phaseLanes [][]int

	machine    *trafficlight.PhaseMachine
	planner    *trafficlight.Planner
	supervisor *trafficlight.Supervisor

	// 干线协调器在协调阶段串行写入的建议偏置
	bias *entity.PhaseBias

	fixedTime bool

	// 原子交换的快照指针，供协调器与对外查询无撕裂读取
	snapshot atomic.Pointer[entity.PhaseSnapshot]
}

// newJunction 创建并初始化一个新的Junction实例
// 功能：根据静态配置创建Junction对象，组装车道、状态机、决策器与监督器
// 参数：ctx-任务上下文，base-路口静态配置，laneManager-车道管理器
// 返回：初始化完成的Junction实例
func newJunction(ctx entity.ITaskContext, base config.Junction, laneManager entity.ILaneManager) *Junction {
	j := &Junction{
		ctx:        ctx,
		id:         base.ID,
		lanes:      make([]entity.ILane, 0, len(base.Lanes)),
		phaseNames: make([]string, 0, len(base.Phases)),
		greenLanes: make([][]int32, 0, len(base.Phases)),
		phaseLanes: make([][]int, 0, len(base.Phases)),
	}

	laneIndex := make(map[int32]int, len(base.Lanes))
	for i, lc := range base.Lanes {
		lane := laneManager.Get(lc.ID)
		lane.SetParentJunctionWhenInit(j)
		j.lanes = append(j.lanes, lane)
		laneIndex[lc.ID] = i
	}

	for _, p := range base.Phases {
		j.phaseNames = append(j.phaseNames, p.Name)
		j.greenLanes = append(j.greenLanes, p.Lanes)
		j.phaseLanes = append(j.phaseLanes, lo.Map(p.Lanes, func(id int32, _ int) int {
			return laneIndex[id]
		}))
	}

	all := ctx.RuntimeConfig().All
	j.machine = trafficlight.NewPhaseMachine(
		j.id, j.phaseNames, j.greenLanes, base.Timing,
		func(cmd entity.ActuationCommand) { ctx.Output().Dispatch(cmd) },
	)
	j.planner = trafficlight.NewPlanner(
		j.id, j.phaseLanes, len(j.lanes), base.Timing,
		all.Planner, all.Control.DefaultCycle, all.Coordinator.Slack,
	)
	j.supervisor = trafficlight.NewSupervisor(j.id, all.Supervisor)

	j.storeSnapshot()
	return j
}

func (j *Junction) ID() int32 {
	return j.id
}

func (j *Junction) Lanes() []entity.ILane {
	return j.lanes
}

// PhaseIndexByName 按名字查找相位下标
func (j *Junction) PhaseIndexByName(name string) (int, error) {
	for i, n := range j.phaseNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("junction %d: no phase named %q", j.id, name)
}

// start 启动相位状态机，发出启动时的全红命令
func (j *Junction) start() {
	j.machine.Start(j.ctx.Clock().T)
}

// prepare 准备阶段
// 功能：发布本节拍的相位快照，供协调器与对外查询读取
func (j *Junction) prepare() {
	j.storeSnapshot()
}

// update 更新阶段
// 功能：路口控制循环的核心，顺序为监督->决策->状态机推进
// 参数：dt-时间步长
// 说明：
// 1. 监督器先行，决定本节拍采用自适应还是固定配时
// 2. 仅绿灯期间产生并消费决策，清空期间状态机只按时间推进
// 3. 相位切换在单路口内严格串行，不存在并发的状态变化
func (j *Junction) update(dt float64) {
	now := j.ctx.Clock().T
	states := lo.Map(j.lanes, func(l entity.ILane, _ int) entity.LaneState {
		return l.Snapshot()
	})

	fixedTime, justDegraded := j.supervisor.Update(dt, states)
	j.fixedTime = fixedTime

	if j.machine.Mode() == entity.PhaseModeGreen {
		d := j.planner.Decide(states, j.machine, j.bias, fixedTime, justDegraded, now)
		j.machine.Apply(d, now)
	}
	j.machine.Tick(dt, now)
}

// Snapshot 读取最近发布的相位快照
func (j *Junction) Snapshot() entity.PhaseSnapshot {
	return *j.snapshot.Load()
}

// SetBias 写入干线协调建议
// 说明：仅在协调阶段由协调器串行调用，nil表示清除
func (j *Junction) SetBias(b *entity.PhaseBias) {
	j.bias = b
}

// InClearance 是否处于清空过程中
func (j *Junction) InClearance() bool {
	return j.machine.InClearance()
}

func (j *Junction) storeSnapshot() {
	cur := j.machine.Current()
	s := entity.PhaseSnapshot{
		JunctionID:   j.id,
		Mode:         j.machine.Mode(),
		Phase:        cur,
		PhaseName:    j.phaseNames[cur],
		ElapsedGreen: j.machine.Elapsed(),
		Remaining:    j.machine.Remaining(),
		EnteredAt:    j.machine.EnteredAt(),
		FixedTime:    j.fixedTime,
	}
	if s.Mode == entity.PhaseModeGreen {
		s.GreenLanes = j.greenLanes[cur]
	}
	j.snapshot.Store(&s)
}
