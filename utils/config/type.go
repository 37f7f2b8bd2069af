package config

// ControlStep 指定控制循环节拍的配置项
// 功能：定义控制循环的节拍间隔与总步数
// 说明：total为0时表示持续运行，直到外部发出关闭指令
type ControlStep struct {
	Interval float64 `yaml:"interval"`        // 每个控制节拍的时间间隔（秒）
	Total    int32   `yaml:"total,omitempty"` // 总步数（0表示无限运行）
}

// Control 控制引擎的全局配置
// 功能：定义控制循环节拍与兜底固定周期长度
type Control struct {
	Step ControlStep `yaml:"step"`
	// 兜底固定配时的默认周期长度（秒），各相位均分
	DefaultCycle float64 `yaml:"default_cycle,omitempty"`
}

// Lane 车道静态配置
// 功能：定义单条车道的标识、方向以及冲突车道集合
// 说明：冲突集合在加载后做对称闭包处理，配置中只需单向声明
type Lane struct {
	ID        int32   `yaml:"id"`                  // 车道ID（全局唯一）
	Direction string  `yaml:"direction,omitempty"` // 来向描述（如north、south_left）
	Conflicts []int32 `yaml:"conflicts,omitempty"` // 不可同时放行的车道ID列表
}

// Phase 相位静态配置
// 功能：定义一个相位（可同时放行的车道组合）
type Phase struct {
	Name  string  `yaml:"name"`  // 相位名
	Lanes []int32 `yaml:"lanes"` // 相位包含的车道ID
}

// Timing 路口配时约束
// 功能：定义路口的最小/最大绿灯、黄灯与全红清空时长
// 说明：fixed_green为兜底固定配时下各相位的绿灯时长，缺省时按默认周期均分
type Timing struct {
	MinGreen   float64   `yaml:"min_green,omitempty"`   // 最小绿灯时长（秒）
	MaxGreen   float64   `yaml:"max_green,omitempty"`   // 最大绿灯时长（秒）
	Yellow     float64   `yaml:"yellow,omitempty"`      // 黄灯清空时长（秒）
	AllRed     float64   `yaml:"all_red,omitempty"`     // 全红清空时长（秒）
	FixedGreen []float64 `yaml:"fixed_green,omitempty"` // 固定配时下各相位绿灯时长（秒）
}

// Junction 路口静态配置
// 功能：定义一个路口的车道、相位与配时约束
type Junction struct {
	ID     int32   `yaml:"id"`     // 路口ID（全局唯一）
	Lanes  []Lane  `yaml:"lanes"`  // 路口内的车道
	Phases []Phase `yaml:"phases"` // 路口的相位表（顺序即轮转顺序）
	Timing Timing  `yaml:"timing,omitempty"`
}

// CorridorMember 干线成员配置
// 功能：标识干线上的一个路口以及服务干线方向的相位
type CorridorMember struct {
	Junction int32  `yaml:"junction"` // 路口ID
	Phase    string `yaml:"phase"`    // 服务干线放行方向的相位名
}

// Corridor 干线（绿波协调）静态配置
// 功能：定义一条干线的路口序列与相邻路口间的行程时间
// 说明：travel的长度必须等于成员数减一，travel[i]为成员i到成员i+1的行程时间
type Corridor struct {
	Name    string           `yaml:"name"`
	Members []CorridorMember `yaml:"members"`
	Travel  []float64        `yaml:"travel"` // 相邻路口间行程时间（秒）
}

// Aggregator 车道量测聚合配置
// 功能：定义需求平滑与失效判定的参数
type Aggregator struct {
	// 指数平滑半衰期（秒），量测间隔越久旧值权重越低
	HalfLife float64 `yaml:"half_life,omitempty"`
	// 超过该时间无量测则判定车道失效（秒）
	StaleTimeout float64 `yaml:"stale_timeout,omitempty"`
	// 时间戳允许超前的抖动窗口（秒），超过则丢弃
	FutureWindow float64 `yaml:"future_window,omitempty"`
	// 量测值上限，超过判定为异常并丢弃
	DemandCap float64 `yaml:"demand_cap,omitempty"`
	// 车辆计数归一化阈值，大于0时demand=min(count/threshold, 1)
	CountThreshold float64 `yaml:"count_threshold,omitempty"`
}

// Planner 自适应配时决策配置
type Planner struct {
	// 当前相位需求低于该值视为可忽略
	MinDemand float64 `yaml:"min_demand,omitempty"`
	// 饥饿判定的需求下限
	StarveDemand float64 `yaml:"starve_demand,omitempty"`
	// 饥饿判定的等待时长上限（秒）
	StarveBound float64 `yaml:"starve_bound,omitempty"`
}

// Supervisor 故障兜底监督配置
type Supervisor struct {
	// 在线车道占比低于该值视为覆盖不足
	CoverageThreshold float64 `yaml:"coverage_threshold,omitempty"`
	// 覆盖不足持续超过该时长后切入固定配时（秒）
	GracePeriod float64 `yaml:"grace_period,omitempty"`
	// 覆盖恢复并稳定该时长后切回自适应控制（秒）
	SettlePeriod float64 `yaml:"settle_period,omitempty"`
}

// Coordinator 干线协调配置
type Coordinator struct {
	// 为对齐绿波允许推迟切换的最大时长（秒）
	Slack float64 `yaml:"slack,omitempty"`
}

// Config YAML配置文件的根结构
// 功能：定义信控引擎的全部静态配置
// 说明：配置一次性加载，运行中不支持热更新，修改配置需要重启
type Config struct {
	Control     Control     `yaml:"control"`
	Junctions   []Junction  `yaml:"junctions"`
	Corridors   []Corridor  `yaml:"corridors,omitempty"`
	Aggregator  Aggregator  `yaml:"aggregator,omitempty"`
	Planner     Planner     `yaml:"planner,omitempty"`
	Supervisor  Supervisor  `yaml:"supervisor,omitempty"`
	Coordinator Coordinator `yaml:"coordinator,omitempty"`
}
