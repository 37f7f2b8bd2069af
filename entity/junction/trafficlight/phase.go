// 提供路口相位状态机
// 状态序列固定为 GREEN -> YELLOW_CLEARANCE -> ALL_RED_CLEARANCE -> GREEN(下一相位)，
// 清空时长固定不可缩短或延长，是不受任何决策覆盖的硬安全约束
package trafficlight

import (
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// PhaseMachine 路口相位状态机
// 功能：维护当前相位与模式，执行安全的相位切换：
// 1. 绿灯期间只接受Planner的extend/switch请求
// 2. 未达最小绿灯的切换请求静默拒绝（正常控制条件，非错误）
// 3. 超过最大绿灯时自主按轮转顺序切换，防止单相位无限占用
// 4. 黄灯与全红清空按固定时长倒计时推进
// 说明：状态只能通过本状态机的接口变化，每次模式变化对外发出执行命令
type PhaseMachine struct {
	junctionID int32
	phaseNames []string
	greenLanes [][]int32 // 各相位放行的车道ID
	timing     config.Timing

	mode      entity.PhaseMode
	current   int     // 当前相位（清空期间为被清空的相位）
	next      int     // 清空结束后进入的相位
	elapsed   float64 // 绿灯已持续时长
	remaining float64 // 清空剩余时长
	enteredAt float64 // 当前绿灯进入时间

	// 各相位最近一次绿灯结束时间，用于饥饿判定
	lastServedEnd []float64

	sink func(entity.ActuationCommand)
}

// NewPhaseMachine 创建相位状态机
// 功能：初始化状态机，起始状态为全红清空，清空结束后进入首个相位
// 参数：junctionID-路口ID，phaseNames-相位名列表，
// greenLanes-各相位放行车道，timing-配时约束，sink-执行命令回调
func NewPhaseMachine(
	junctionID int32,
	phaseNames []string,
	greenLanes [][]int32,
	timing config.Timing,
	sink func(entity.ActuationCommand),
) *PhaseMachine {
	return &PhaseMachine{
		junctionID:    junctionID,
		phaseNames:    phaseNames,
		greenLanes:    greenLanes,
		timing:        timing,
		mode:          entity.PhaseModeAllRedClearance,
		current:       0,
		next:          0,
		remaining:     timing.AllRed,
		lastServedEnd: make([]float64, len(phaseNames)),
		sink:          sink,
	}
}

// Start 启动状态机
// 功能：发出启动时的全红命令，并初始化饥饿计时基准
// 参数：now-当前引擎时间
func (m *PhaseMachine) Start(now float64) {
	for i := range m.lastServedEnd {
		m.lastServedEnd[i] = now
	}
	m.emit(now)
}

func (m *PhaseMachine) Mode() entity.PhaseMode {
	return m.mode
}

// Current 当前相位下标（清空期间为切换目标相位）
func (m *PhaseMachine) Current() int {
	if m.mode == entity.PhaseModeGreen {
		return m.current
	}
	return m.next
}

func (m *PhaseMachine) Elapsed() float64 {
	return m.elapsed
}

func (m *PhaseMachine) Remaining() float64 {
	return m.remaining
}

func (m *PhaseMachine) EnteredAt() float64 {
	return m.enteredAt
}

func (m *PhaseMachine) PhaseCount() int {
	return len(m.phaseNames)
}

func (m *PhaseMachine) PhaseName(i int) string {
	return m.phaseNames[i]
}

// InClearance 是否处于黄灯/全红清空过程中
func (m *PhaseMachine) InClearance() bool {
	return m.mode != entity.PhaseModeGreen
}

// TimeSinceServed 相位距离上次被放行的时长
// 功能：饥饿判定依据，正在放行的相位返回0
// 参数：phase-相位下标，now-当前引擎时间
func (m *PhaseMachine) TimeSinceServed(phase int, now float64) float64 {
	if m.mode == entity.PhaseModeGreen && m.current == phase {
		return 0
	}
	return now - m.lastServedEnd[phase]
}

// Apply 消费一条配时决策
// 功能：绿灯期间按决策类型穷举处理，清空期间忽略一切决策
// 参数：d-配时决策，now-当前引擎时间
// 说明：
// 1. Extend/Hold：维持当前绿灯，无动作
// 2. Switch：未达最小绿灯且未被强制时静默拒绝；否则进入清空序列
func (m *PhaseMachine) Apply(d entity.Decision, now float64) {
	if m.mode != entity.PhaseModeGreen {
		return
	}
	switch d.Kind {
	case entity.DecisionExtend, entity.DecisionHold:
		// 维持当前绿灯
	case entity.DecisionSwitch:
		if d.Target < 0 || d.Target >= len(m.phaseNames) {
			log.Warnf("junction %d: switch to invalid phase %d ignored", m.junctionID, d.Target)
			return
		}
		if d.Target == m.current {
			return
		}
		if m.elapsed < m.timing.MinGreen && !d.Forced {
			// 未达最小绿灯，拒绝切换，当前绿灯继续
			return
		}
		m.beginClearance(d.Target, now)
	default:
		log.Panicf("junction %d: unknown decision kind %v", m.junctionID, d.Kind)
	}
}

// Tick 推进状态机一个时间步
// 功能：绿灯累计时长并执行最大绿灯自主切换，清空阶段倒计时推进
// 参数：dt-时间步长，now-当前引擎时间
// 说明：倒计时残差跨阶段结转，保证长期节拍不漂移
func (m *PhaseMachine) Tick(dt float64, now float64) {
	switch m.mode {
	case entity.PhaseModeGreen:
		m.elapsed += dt
		if m.elapsed >= m.timing.MaxGreen {
			// 达到最大绿灯，自主按轮转顺序切换
			m.beginClearance((m.current+1)%len(m.phaseNames), now)
		}
	case entity.PhaseModeYellowClearance:
		m.remaining -= dt
		if m.remaining <= 0 {
			m.mode = entity.PhaseModeAllRedClearance
			m.remaining += m.timing.AllRed
			m.emit(now)
		}
	case entity.PhaseModeAllRedClearance:
		m.remaining -= dt
		if m.remaining <= 0 {
			carry := -m.remaining
			m.mode = entity.PhaseModeGreen
			m.current = m.next
			m.elapsed = carry
			m.remaining = 0
			m.enteredAt = now - carry
			m.emit(now)
		}
	}
}

// beginClearance 进入清空序列
// 功能：记录当前相位的放行结束时间，进入黄灯清空
func (m *PhaseMachine) beginClearance(target int, now float64) {
	m.lastServedEnd[m.current] = now
	m.next = target
	m.mode = entity.PhaseModeYellowClearance
	m.remaining = m.timing.Yellow
	m.elapsed = 0
	m.emit(now)
}

// emit 发出执行命令
// 功能：每次模式变化对外发出一条命令，绿灯命令携带放行车道集合
func (m *PhaseMachine) emit(now float64) {
	cmd := entity.ActuationCommand{
		ID:         uuid.NewString(),
		JunctionID: m.junctionID,
		Time:       now,
		Mode:       m.mode,
	}
	switch m.mode {
	case entity.PhaseModeGreen, entity.PhaseModeYellowClearance:
		cmd.Phase = m.current
	case entity.PhaseModeAllRedClearance:
		cmd.Phase = m.next
	}
	if m.mode == entity.PhaseModeGreen {
		cmd.GreenLanes = m.greenLanes[m.current]
	}
	if m.sink != nil {
		m.sink(cmd)
	}
}
