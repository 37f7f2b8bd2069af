package entity

import (
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// Manager依赖倒置

// entity/lane/manager.go的依赖倒置
type ILaneManager interface {
	Init(junctions []config.Junction) // 初始化

	// 输入Lane ID，查找Lane，如果不存在则panic
	Get(id int32) ILane
	// 输入Lane ID，查找Lane，如果不存在则返回error
	GetOrError(id int32) (ILane, error)

	// 接收一条量测并分发到对应车道，可与控制节拍并发调用
	Ingest(m Measurement) error

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段

	// 对外查询：按ID过滤的车道快照，ids为空时返回全部
	Snapshots(ids []int32) ([]LaneSnapshot, []int32)
}

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	Init(junctions []config.Junction, laneManager ILaneManager) // 初始化

	// 输入Junction ID，查找Junction，如果不存在则panic
	Get(id int32) IJunction
	// 输入Junction ID，查找Junction，如果不存在则返回error
	GetOrError(id int32) (IJunction, error)

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段

	// 是否有路口处于清空过程中（用于优雅退出）
	AnyInClearance() bool
	// 对外查询：全部路口的相位快照
	Snapshots() []PhaseSnapshot
}

// entity/corridor/manager.go的依赖倒置
type ICorridorManager interface {
	Init(corridors []config.Corridor, junctionManager IJunctionManager) // 初始化

	// 协调阶段：读取快照并向下游路口写入建议偏置
	// 在prepare之后、update之前串行执行
	Coordinate(now float64)
}
