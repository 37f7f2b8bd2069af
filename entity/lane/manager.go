package lane

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// LaneManager Lane管理器
// 功能：管理所有Lane实体，提供创建、查找、量测分发与快照输出等功能
type LaneManager struct {
	ctx entity.ITaskContext

	data  map[int32]*Lane
	lanes []*Lane
	// 车道所属路口ID，用于对外快照输出
	junctionOf map[int32]int32
}

// NewManager 创建Lane管理器实例
// 功能：初始化Lane管理器，创建内部数据结构
// 参数：ctx-任务上下文
// 返回：新创建的Lane管理器实例
func NewManager(ctx entity.ITaskContext) *LaneManager {
	return &LaneManager{
		ctx:        ctx,
		data:       make(map[int32]*Lane),
		lanes:      make([]*Lane, 0),
		junctionOf: make(map[int32]int32),
	}
}

// Init 初始化所有Lane
// 功能：根据路口静态配置初始化所有Lane对象，建立ID映射关系
// 参数：junctions-路口静态配置列表
// 说明：冲突集合按路口做对称闭包后写入车道
func (m *LaneManager) Init(junctions []config.Junction) {
	m.lanes = m.lanes[:0]
	for _, j := range junctions {
		closure := config.ConflictClosure(j.Lanes)
		for _, base := range j.Lanes {
			m.lanes = append(m.lanes, newLane(m.ctx, base, closure[base.ID]))
			m.junctionOf[base.ID] = j.ID
		}
	}
	m.data = lo.SliceToMap(m.lanes, func(l *Lane) (int32, *Lane) {
		return l.id, l
	})
}

// Get 根据ID获取Lane实例
// 功能：通过Lane ID查找对应的Lane对象，如果不存在则panic
// 参数：id-Lane的唯一标识符
// 返回：对应的Lane实例，如果不存在则panic
func (m *LaneManager) Get(id int32) entity.ILane {
	if lane, ok := m.data[id]; !ok {
		log.Panicf("no id %d in lane data", id)
		return nil
	} else {
		return lane
	}
}

// GetOrError 根据ID获取Lane实例（带错误处理）
// 功能：通过Lane ID查找对应的Lane对象，如果不存在则返回错误
// 参数：id-Lane的唯一标识符
// 返回：Lane实例和错误信息，如果不存在则返回nil和错误
func (m *LaneManager) GetOrError(id int32) (entity.ILane, error) {
	if lane, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in lane data", id)
	} else {
		return lane, nil
	}
}

// Ingest 接收一条量测并分发到对应车道
// 功能：外部感知推送的入口，可与控制节拍并发调用
// 返回：车道不存在或量测非法时返回error
func (m *LaneManager) Ingest(mm entity.Measurement) error {
	lane, ok := m.data[mm.LaneID]
	if !ok {
		return fmt.Errorf("ingest: no id %d in lane data", mm.LaneID)
	}
	return lane.Ingest(mm)
}

// Prepare 准备阶段，处理所有Lane的准备工作
// 功能：并行合入量测缓冲并发布车道快照
func (m *LaneManager) Prepare() {
	parallel.GoFor(m.lanes, func(l *Lane) { l.Prepare() })
}

// Update 更新阶段，执行所有Lane的失效判定
// 参数：dt-时间步长
func (m *LaneManager) Update(dt float64) {
	parallel.GoFor(m.lanes, func(l *Lane) { l.Update(dt) })
}

// Snapshots 输出车道状态快照
// 功能：对外查询接口，ids为空时返回全部车道
// 返回：快照列表与未找到的车道ID列表
func (m *LaneManager) Snapshots(ids []int32) ([]entity.LaneSnapshot, []int32) {
	lanes, failed := utils.Find(m.data, m.lanes, ids)
	snapshots := lo.Map(lanes, func(l *Lane, _ int) entity.LaneSnapshot {
		return entity.LaneSnapshot{
			LaneID:     l.id,
			JunctionID: m.junctionOf[l.id],
			Direction:  l.direction,
			LaneState:  l.Snapshot(),
		}
	})
	return snapshots, failed
}
