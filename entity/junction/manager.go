package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// JunctionManager Junction管理器
// 功能：管理所有Junction实体，驱动各路口的准备与更新阶段
type JunctionManager struct {
	ctx entity.ITaskContext

	data      map[int32]*Junction
	junctions []*Junction
}

// NewManager 创建Junction管理器实例
// 功能：初始化Junction管理器，创建内部数据结构
// 参数：ctx-任务上下文
// 返回：新创建的Junction管理器实例
func NewManager(ctx entity.ITaskContext) *JunctionManager {
	return &JunctionManager{
		ctx:       ctx,
		data:      make(map[int32]*Junction),
		junctions: make([]*Junction, 0),
	}
}

// Init 初始化所有Junction及其信控
// 功能：根据静态配置初始化所有Junction对象，启动相位状态机
// 参数：junctions-路口静态配置列表，laneManager-车道管理器
// 说明：使用并行处理提高初始化效率
func (m *JunctionManager) Init(junctions []config.Junction, laneManager entity.ILaneManager) {
	m.junctions = parallel.GoMap(junctions, func(base config.Junction) *Junction {
		return newJunction(m.ctx, base, laneManager)
	})
	m.data = lo.SliceToMap(m.junctions, func(j *Junction) (int32, *Junction) {
		return j.id, j
	})
	for _, j := range m.junctions {
		j.start()
	}
}

// Get 根据ID获取Junction实例
// 功能：通过Junction ID查找对应的Junction对象，如果不存在则panic
// 参数：id-Junction的唯一标识符
// 返回：对应的Junction实例，如果不存在则panic
func (m *JunctionManager) Get(id int32) entity.IJunction {
	if junction, ok := m.data[id]; !ok {
		log.Panicf("no id %d in junction data", id)
		return nil
	} else {
		return junction
	}
}

// GetOrError 根据ID获取Junction实例（带错误处理）
// 功能：通过Junction ID查找对应的Junction对象，如果不存在则返回错误
// 参数：id-Junction的唯一标识符
// 返回：Junction实例和错误信息，如果不存在则返回nil和错误
func (m *JunctionManager) GetOrError(id int32) (entity.IJunction, error) {
	if junction, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in junction data", id)
	} else {
		return junction, nil
	}
}

// Prepare 准备阶段，处理所有Junction的准备工作
// 功能：并行发布所有路口的相位快照
func (m *JunctionManager) Prepare() {
	parallel.GoFor(m.junctions, func(j *Junction) { j.prepare() })
}

// Update 更新阶段，执行所有Junction的控制逻辑
// 功能：并行执行所有路口的监督、决策与状态机推进
// 参数：dt-时间步长
func (m *JunctionManager) Update(dt float64) {
	parallel.GoFor(m.junctions, func(j *Junction) { j.update(dt) })
}

// AnyInClearance 是否有路口处于清空过程中
// 功能：优雅退出判据，清空未完成前不允许停机
func (m *JunctionManager) AnyInClearance() bool {
	return lo.SomeBy(m.junctions, func(j *Junction) bool { return j.InClearance() })
}

// Snapshots 输出全部路口的相位快照
func (m *JunctionManager) Snapshots() []entity.PhaseSnapshot {
	return lo.Map(m.junctions, func(j *Junction, _ int) entity.PhaseSnapshot {
		return j.Snapshot()
	})
}
