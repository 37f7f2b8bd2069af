package lane

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// laneRuntime 车道运行时状态
// 功能：存储平滑需求与失效判定的内部状态，只在控制节拍内读写
type laneRuntime struct {
	demand   float64 // 平滑后的需求估计
	lastSeen float64 // 最近一次量测合入时的引擎时间（秒）
	lastTS   float64 // 最近一次接受的量测时间戳（感知侧unix秒）
	seeded   bool    // 是否已有量测合入
	stale    bool    // 是否失效
}

// Lane 车道实体
// 功能：归属于唯一路口的受控车道，承担量测聚合职责：
// 对到达的车道量测做指数平滑，维护失效标记，
// 并发布供决策与对外查询读取的无撕裂快照
// 说明：配置加载后ID、方向与冲突集合不可变
type Lane struct {
	ctx entity.ITaskContext

	id        int32
	direction string
	conflicts map[int32]struct{} // 不可同时放行的车道ID集合（对称闭包后）

	parentJunction entity.IJunction

	// 量测缓冲，感知推送与控制节拍并发，靠互斥锁保护
	ingestMutex  sync.Mutex
	ingestBuffer []entity.Measurement
	// 已接受量测的最新时间戳（单调不减），用于重复/乱序判定，
	// 与缓冲同锁保护
	acceptedTS float64

	runtime laneRuntime

	// 原子交换的快照指针，任意时刻读取都不会撕裂
	snapshot atomic.Pointer[entity.LaneState]
}

// newLane 创建并初始化一个新的Lane实例
// 功能：根据静态配置创建Lane对象，建立冲突集合
// 参数：ctx-任务上下文，base-车道静态配置，conflicts-对称闭包后的冲突集合
// 返回：初始化完成的Lane实例
func newLane(ctx entity.ITaskContext, base config.Lane, conflicts map[int32]struct{}) *Lane {
	l := &Lane{
		ctx:          ctx,
		id:           base.ID,
		direction:    base.Direction,
		conflicts:    conflicts,
		ingestBuffer: make([]entity.Measurement, 0, 8),
		acceptedTS:   -mathutil.INF,
	}
	l.snapshot.Store(&entity.LaneState{})
	return l
}

func (l *Lane) ID() int32 {
	return l.id
}

func (l *Lane) Direction() string {
	return l.direction
}

func (l *Lane) ParentJunction() entity.IJunction {
	return l.parentJunction
}

func (l *Lane) SetParentJunctionWhenInit(j entity.IJunction) {
	l.parentJunction = j
}

// ConflictsWith 判断两条车道是否不可同时放行
func (l *Lane) ConflictsWith(other int32) bool {
	_, ok := l.conflicts[other]
	return ok
}

// Ingest 接收一条量测
// 功能：校验量测合法性后写入缓冲，等待下一个准备阶段合入
// 参数：m-车道量测
// 返回：量测非法时返回error（同时丢弃），重复量测静默丢弃
// 说明：
// 1. 需求为负、超过上限或置信度越界的量测丢弃并记录日志
// 2. 时间戳超前超出抖动窗口的量测丢弃（时钟异常）
// 3. 时间戳不大于已接受最新时间戳的量测视为重复，静默丢弃，
//    保证同一量测重复投递不产生额外影响
func (l *Lane) Ingest(m entity.Measurement) error {
	cfg := l.ctx.RuntimeConfig().All.Aggregator
	if m.Demand < 0 || m.Demand > cfg.DemandCap {
		log.Warnf("lane %d: discard out-of-range demand %v", l.id, m.Demand)
		return fmt.Errorf("lane %d: demand %v out of range [0, %v]", l.id, m.Demand, cfg.DemandCap)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		log.Warnf("lane %d: discard bad confidence %v", l.id, m.Confidence)
		return fmt.Errorf("lane %d: confidence %v out of range [0, 1]", l.id, m.Confidence)
	}
	if wall := float64(time.Now().UnixNano()) / 1e9; m.Timestamp > wall+cfg.FutureWindow {
		log.Warnf("lane %d: discard measurement %gs in the future", l.id, m.Timestamp-wall)
		return fmt.Errorf("lane %d: timestamp %v beyond future window", l.id, m.Timestamp)
	}

	l.ingestMutex.Lock()
	defer l.ingestMutex.Unlock()
	// 重复或乱序（时间戳不晚于已接受的最新量测）直接丢弃
	if m.Timestamp <= l.acceptedTS {
		return nil
	}
	l.acceptedTS = m.Timestamp
	l.ingestBuffer = append(l.ingestBuffer, m)
	return nil
}

// Prepare 准备阶段
// 功能：将量测缓冲按时间顺序合入平滑需求，并发布新快照
// 算法说明：
// 相邻量测间隔dt对应的旧值权重 k = exp(-ln2*dt/half_life)，
// 新值权重 (1-k) 再按置信度缩放，半衰期内旧值权重降至一半，
// 单帧缺失只会轻微放大下一条量测的间隔，不造成估计跳变
func (l *Lane) Prepare() {
	l.ingestMutex.Lock()
	pending := l.ingestBuffer
	l.ingestBuffer = make([]entity.Measurement, 0, 8)
	l.ingestMutex.Unlock()

	cfg := l.ctx.RuntimeConfig().All.Aggregator
	for _, m := range pending {
		value := m.Demand
		if cfg.CountThreshold > 0 {
			// 车辆计数按拥堵阈值归一化到[0,1]
			value = math.Min(value/cfg.CountThreshold, 1)
		}
		// 置信度0约定为未提供，按满置信合入（见entity.Measurement）
		conf := m.Confidence
		if conf == 0 {
			conf = 1
		}
		if !l.runtime.seeded {
			l.runtime.demand = value
			l.runtime.seeded = true
		} else {
			dt := m.Timestamp - l.runtime.lastTS
			k := math.Exp(-math.Ln2 * dt / cfg.HalfLife)
			w := (1 - k) * conf
			l.runtime.demand = (1-w)*l.runtime.demand + w*value
		}
		l.runtime.lastTS = m.Timestamp
		l.runtime.lastSeen = l.ctx.Clock().T
		l.runtime.stale = false
	}

	state := entity.LaneState{
		Demand:   l.runtime.demand,
		LastSeen: l.runtime.lastSeen,
		Stale:    l.runtime.stale,
	}
	l.snapshot.Store(&state)
}

// Update 更新阶段
// 功能：失效判定与需求衰减
// 说明：超时无量测的车道标记为失效，需求按半衰期向零衰减
// 而不是冻结在最后值，避免传感器中断被误认为持续高需求
func (l *Lane) Update(dt float64) {
	cfg := l.ctx.RuntimeConfig().All.Aggregator
	if l.ctx.Clock().T-l.runtime.lastSeen > cfg.StaleTimeout {
		l.runtime.stale = true
		l.runtime.demand *= math.Exp(-math.Ln2 * dt / cfg.HalfLife)
	}
}

// Snapshot 读取最近发布的车道状态快照
func (l *Lane) Snapshot() entity.LaneState {
	return *l.snapshot.Load()
}
