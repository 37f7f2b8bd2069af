package entity

import (
	"encoding/json"
	"fmt"
)

// PhaseMode 路口相位状态机的模式
type PhaseMode int32

const (
	PhaseModeGreen           PhaseMode = iota // 绿灯放行
	PhaseModeYellowClearance                  // 黄灯清空
	PhaseModeAllRedClearance                  // 全红清空
)

func (m PhaseMode) String() string {
	switch m {
	case PhaseModeGreen:
		return "GREEN"
	case PhaseModeYellowClearance:
		return "YELLOW_CLEARANCE"
	case PhaseModeAllRedClearance:
		return "ALL_RED_CLEARANCE"
	default:
		return fmt.Sprintf("PhaseMode(%d)", int32(m))
	}
}

// MarshalJSON 对外输出时使用可读的模式名
func (m PhaseMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 解析可读的模式名
func (m *PhaseMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "GREEN":
		*m = PhaseModeGreen
	case "YELLOW_CLEARANCE":
		*m = PhaseModeYellowClearance
	case "ALL_RED_CLEARANCE":
		*m = PhaseModeAllRedClearance
	default:
		return fmt.Errorf("unknown phase mode %q", s)
	}
	return nil
}

// DecisionKind 配时决策类型
type DecisionKind int32

const (
	DecisionExtend DecisionKind = iota // 延长当前绿灯相位
	DecisionSwitch                     // 切换到指定相位
	DecisionHold                       // 维持兜底固定配时，无额外动作
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionExtend:
		return "EXTEND"
	case DecisionSwitch:
		return "SWITCH"
	case DecisionHold:
		return "HOLD"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int32(k))
	}
}

// Decision 每个控制节拍产生的配时决策
// 功能：显式穷举的决策值对象，由相位状态机统一消费
// 说明：值对象，产生后立即消费，不做存储
type Decision struct {
	Kind   DecisionKind // 决策类型
	Target int          // Switch时的目标相位下标
	Forced bool         // 安全兜底强制覆盖最小绿灯约束
}

// Measurement 外部感知模块推送的单条车道量测
// 功能：承载某车道某时刻的占有率/车辆数与置信度
// 说明：时间戳为感知侧时钟（unix秒），聚合后即丢弃
type Measurement struct {
	LaneID     int32   `json:"lane_id"`
	Timestamp  float64 `json:"timestamp"` // 感知侧时间戳（unix秒）
	Demand     float64 `json:"demand"` // 占有率[0,1]或车辆数
	// 置信度(0,1]，0表示未提供、按满置信合入；
	// 感知侧认为不可信的量测应直接不推送，而不是推送置信度0
	Confidence float64 `json:"confidence,omitempty"`
}

// LaneState 车道的平滑需求状态
// 功能：聚合器对外发布的只读快照
type LaneState struct {
	Demand   float64 `json:"demand"`    // 平滑后的需求估计
	LastSeen float64 `json:"last_seen"` // 最近一次量测的引擎时间（秒）
	Stale    bool    `json:"stale"`     // 是否失效（超时无量测）
}

// LaneSnapshot 带车道标识的状态快照，供对外查询使用
type LaneSnapshot struct {
	LaneID     int32  `json:"lane_id"`
	JunctionID int32  `json:"junction_id"`
	Direction  string `json:"direction,omitempty"`
	LaneState
}

// PhaseSnapshot 路口相位状态快照
// 功能：每个节拍开始时发布，供决策、协调与对外查询读取
// 说明：绿灯期间Phase为当前相位，清空期间Phase为切换目标相位
type PhaseSnapshot struct {
	JunctionID   int32     `json:"junction_id"`
	Mode         PhaseMode `json:"mode"`
	Phase        int       `json:"phase"`
	PhaseName    string    `json:"phase_name"`
	ElapsedGreen float64   `json:"elapsed_green"`          // 绿灯已持续时长（秒）
	Remaining    float64   `json:"remaining,omitempty"`    // 清空剩余时长（秒），绿灯时为0
	EnteredAt    float64   `json:"entered_at"`             // 当前绿灯进入时间（引擎秒）
	GreenLanes   []int32   `json:"green_lanes,omitempty"`  // 当前放行的车道ID
	FixedTime    bool      `json:"fixed_time"`             // 是否处于兜底固定配时
}

// PhaseBias 干线协调器对下游路口的建议性偏置
// 功能：建议在NotBefore之前不要切入Phase，以对齐绿波
// 说明：仅为建议，本地min/max green与饥饿规则始终优先
type PhaseBias struct {
	Phase     int     // 服务干线方向的相位下标
	NotBefore float64 // 建议的最早切入时间（引擎秒）
}

// ActuationCommand 相位状态变化时对外发出的执行命令
// 功能：交给外部硬件驱动执行，不等待确认（fire-and-forget）
type ActuationCommand struct {
	ID         string    `json:"id"` // 命令唯一标识
	JunctionID int32     `json:"junction_id"`
	Time       float64   `json:"time"` // 引擎时间（秒）
	Mode       PhaseMode `json:"mode"`
	Phase      int       `json:"phase"`                 // 绿灯/黄灯为当前相位，全红为目标相位
	GreenLanes []int32   `json:"green_lanes,omitempty"` // 放行车道集合，清空期间为空
}

// ICommandSink 执行命令的接收方
// 功能：解耦相位状态机与命令分发，控制循环内不允许阻塞
type ICommandSink interface {
	Dispatch(cmd ActuationCommand)
}

// entity/lane/lane.go的依赖倒置
type ILane interface {
	ID() int32
	Direction() string
	ParentJunction() IJunction
	SetParentJunctionWhenInit(j IJunction)
	// 是否与另一条车道冲突（不可同时放行）
	ConflictsWith(other int32) bool

	// 接收一条量测，可与控制节拍并发调用
	Ingest(m Measurement) error

	Prepare()          // 准备阶段：将量测缓冲合入平滑需求并发布快照
	Update(dt float64) // 更新阶段：失效判定与需求衰减

	Snapshot() LaneState // 读取最近发布的快照（无撕裂）
}

// entity/junction/junction.go的依赖倒置
type IJunction interface {
	ID() int32
	Lanes() []ILane
	// 按名字查找相位下标，不存在返回error
	PhaseIndexByName(name string) (int, error)

	Snapshot() PhaseSnapshot
	// 干线协调器写入的建议偏置，nil表示清除
	SetBias(b *PhaseBias)
	// 是否处于黄灯/全红清空过程中
	InClearance() bool
}
