package corridor

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// CorridorManager 干线管理器
// 功能：管理所有干线，在每个节拍的协调阶段串行执行绿波协调
type CorridorManager struct {
	ctx entity.ITaskContext

	corridors []*Corridor
}

// NewManager 创建干线管理器实例
// 参数：ctx-任务上下文
// 返回：新创建的干线管理器实例
func NewManager(ctx entity.ITaskContext) *CorridorManager {
	return &CorridorManager{
		ctx:       ctx,
		corridors: make([]*Corridor, 0),
	}
}

// Init 初始化所有干线
// 功能：根据静态配置解析干线成员路口与干线相位
// 参数：corridors-干线静态配置列表，junctionManager-路口管理器
// 说明：引用不存在的路口或相位属于配置错误，启动时直接panic
func (m *CorridorManager) Init(corridors []config.Corridor, junctionManager entity.IJunctionManager) {
	all := m.ctx.RuntimeConfig().All
	m.corridors = lo.Map(corridors, func(cc config.Corridor, _ int) *Corridor {
		c := &Corridor{
			name:      cc.Name,
			junctions: make([]entity.IJunction, 0, len(cc.Members)),
			phaseIdx:  make([]int, 0, len(cc.Members)),
			travel:    cc.Travel,
			cycle:     all.Control.DefaultCycle,
			slack:     all.Coordinator.Slack,
		}
		for _, member := range cc.Members {
			j, err := junctionManager.GetOrError(member.Junction)
			if err != nil {
				log.Panicf("corridor %s: %v", cc.Name, err)
			}
			pi, err := j.PhaseIndexByName(member.Phase)
			if err != nil {
				log.Panicf("corridor %s: %v", cc.Name, err)
			}
			c.junctions = append(c.junctions, j)
			c.phaseIdx = append(c.phaseIdx, pi)
		}
		return c
	})
}

// Coordinate 协调阶段
// 功能：对所有干线执行一轮绿波协调
// 说明：在prepare之后、update之前串行执行，只读路口快照，
// 不会阻塞任何路口的控制节拍
func (m *CorridorManager) Coordinate(now float64) {
	for _, c := range m.corridors {
		c.coordinate(now)
	}
}
