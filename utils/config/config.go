package config

import (
	"fmt"

	"github.com/samber/lo"
)

// 配置缺省值，数值来源于工程常用配时
const (
	DefaultInterval       = 1.0  // 控制节拍（秒）
	DefaultCycleLength    = 60.0 // 兜底固定配时周期（秒）
	DefaultMinGreen       = 10.0
	DefaultMaxGreen       = 90.0
	DefaultYellow         = 3.0
	DefaultAllRed         = 2.0
	DefaultHalfLife       = 4.0
	DefaultStaleTimeout   = 3.0
	DefaultFutureWindow   = 1.0
	DefaultDemandCap      = 1000.0
	DefaultMinDemand      = 0.05
	DefaultStarveDemand   = 0.2
	DefaultStarveBound    = 45.0
	DefaultCoverage       = 0.5
	DefaultGracePeriod    = 5.0
	DefaultSettlePeriod   = 10.0
	DefaultCoordSlack     = 8.0
)

// RuntimeConfig 运行时配置
// 功能：存储补全缺省值并通过校验后的配置
// 说明：将YAML配置转换为运行时可用的配置对象，校验失败的配置拒绝运行
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全缺省值并校验配置合法性
// 参数：config-原始配置对象
// 返回：运行时配置指针，配置非法时返回error
// 算法说明：
// 1. 对全局与各路口配置补全缺省值
// 2. 校验路口拓扑：车道、相位、冲突关系
// 3. 校验干线引用的路口与相位存在
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	rc := &RuntimeConfig{}

	applyDefaults(&config)
	if err := validate(&config); err != nil {
		return nil, err
	}

	rc.All = config
	rc.C = config.Control

	return rc, nil
}

func applyDefaults(c *Config) {
	if c.Control.Step.Interval <= 0 {
		c.Control.Step.Interval = DefaultInterval
	}
	if c.Control.DefaultCycle <= 0 {
		c.Control.DefaultCycle = DefaultCycleLength
	}
	if c.Aggregator.HalfLife <= 0 {
		c.Aggregator.HalfLife = DefaultHalfLife
	}
	if c.Aggregator.StaleTimeout <= 0 {
		c.Aggregator.StaleTimeout = DefaultStaleTimeout
	}
	if c.Aggregator.FutureWindow <= 0 {
		c.Aggregator.FutureWindow = DefaultFutureWindow
	}
	if c.Aggregator.DemandCap <= 0 {
		c.Aggregator.DemandCap = DefaultDemandCap
	}
	if c.Planner.MinDemand <= 0 {
		c.Planner.MinDemand = DefaultMinDemand
	}
	if c.Planner.StarveDemand <= 0 {
		c.Planner.StarveDemand = DefaultStarveDemand
	}
	if c.Planner.StarveBound <= 0 {
		c.Planner.StarveBound = DefaultStarveBound
	}
	if c.Supervisor.CoverageThreshold <= 0 {
		c.Supervisor.CoverageThreshold = DefaultCoverage
	}
	if c.Supervisor.GracePeriod <= 0 {
		c.Supervisor.GracePeriod = DefaultGracePeriod
	}
	if c.Supervisor.SettlePeriod <= 0 {
		c.Supervisor.SettlePeriod = DefaultSettlePeriod
	}
	if c.Coordinator.Slack <= 0 {
		c.Coordinator.Slack = DefaultCoordSlack
	}
	for i := range c.Junctions {
		t := &c.Junctions[i].Timing
		if t.MinGreen <= 0 {
			t.MinGreen = DefaultMinGreen
		}
		if t.MaxGreen <= 0 {
			t.MaxGreen = DefaultMaxGreen
		}
		if t.Yellow <= 0 {
			t.Yellow = DefaultYellow
		}
		if t.AllRed <= 0 {
			t.AllRed = DefaultAllRed
		}
	}
}

// validate 校验配置合法性
// 功能：检查路口拓扑与干线配置，非法配置在启动时直接拒绝
// 校验项：
// 1. 路口/车道ID全局唯一
// 2. 每个路口至少一个相位，相位引用的车道都属于该路口
// 3. 同一相位内不存在互相冲突的车道（冲突关系按对称闭包处理）
// 4. 每条车道至少属于一个相位（不可达车道视为致命错误）
// 5. 配时约束为正且min_green < max_green，fixed_green长度与相位数一致
// 6. 干线引用的路口与相位存在，行程时间数量与成员数匹配且为正
func validate(c *Config) error {
	if len(c.Junctions) == 0 {
		return fmt.Errorf("config: no junctions defined")
	}
	junctionIDs := make(map[int32]struct{})
	laneIDs := make(map[int32]struct{})
	for _, j := range c.Junctions {
		if _, ok := junctionIDs[j.ID]; ok {
			return fmt.Errorf("config: duplicate junction id %d", j.ID)
		}
		junctionIDs[j.ID] = struct{}{}
		if len(j.Lanes) == 0 {
			return fmt.Errorf("config: junction %d has no lanes", j.ID)
		}
		if len(j.Phases) == 0 {
			return fmt.Errorf("config: junction %d has no phases", j.ID)
		}

		ownLanes := make(map[int32]struct{})
		for _, l := range j.Lanes {
			if _, ok := laneIDs[l.ID]; ok {
				return fmt.Errorf("config: duplicate lane id %d", l.ID)
			}
			laneIDs[l.ID] = struct{}{}
			ownLanes[l.ID] = struct{}{}
		}
		// 冲突集合只能引用本路口车道
		for _, l := range j.Lanes {
			for _, other := range l.Conflicts {
				if _, ok := ownLanes[other]; !ok {
					return fmt.Errorf("config: lane %d conflicts with unknown lane %d", l.ID, other)
				}
				if other == l.ID {
					return fmt.Errorf("config: lane %d conflicts with itself", l.ID)
				}
			}
		}
		// 冲突关系对称闭包
		conflicts := ConflictClosure(j.Lanes)

		served := make(map[int32]struct{})
		phaseNames := make(map[string]struct{})
		for _, p := range j.Phases {
			if p.Name == "" {
				return fmt.Errorf("config: junction %d has an unnamed phase", j.ID)
			}
			if _, ok := phaseNames[p.Name]; ok {
				return fmt.Errorf("config: junction %d duplicate phase %q", j.ID, p.Name)
			}
			phaseNames[p.Name] = struct{}{}
			if len(p.Lanes) == 0 {
				return fmt.Errorf("config: junction %d phase %q is empty", j.ID, p.Name)
			}
			for _, id := range p.Lanes {
				if _, ok := ownLanes[id]; !ok {
					return fmt.Errorf("config: junction %d phase %q references unknown lane %d", j.ID, p.Name, id)
				}
				served[id] = struct{}{}
			}
			// 相位内两两不冲突
			for a := 0; a < len(p.Lanes); a++ {
				for b := a + 1; b < len(p.Lanes); b++ {
					if _, ok := conflicts[p.Lanes[a]][p.Lanes[b]]; ok {
						return fmt.Errorf(
							"config: junction %d phase %q contains conflicting lanes %d and %d",
							j.ID, p.Name, p.Lanes[a], p.Lanes[b])
					}
				}
			}
		}
		for _, l := range j.Lanes {
			if _, ok := served[l.ID]; !ok {
				return fmt.Errorf("config: junction %d lane %d is not served by any phase", j.ID, l.ID)
			}
		}

		t := j.Timing
		if t.MinGreen >= t.MaxGreen {
			return fmt.Errorf("config: junction %d min_green %g >= max_green %g", j.ID, t.MinGreen, t.MaxGreen)
		}
		if len(t.FixedGreen) > 0 {
			if len(t.FixedGreen) != len(j.Phases) {
				return fmt.Errorf("config: junction %d fixed_green length %d != phase count %d",
					j.ID, len(t.FixedGreen), len(j.Phases))
			}
			for i, g := range t.FixedGreen {
				if g <= 0 {
					return fmt.Errorf("config: junction %d fixed_green[%d] must be positive", j.ID, i)
				}
			}
		}
	}

	junctionByID := lo.SliceToMap(c.Junctions, func(j Junction) (int32, Junction) { return j.ID, j })
	for _, corr := range c.Corridors {
		if len(corr.Members) < 2 {
			return fmt.Errorf("config: corridor %q needs at least 2 members", corr.Name)
		}
		if len(corr.Travel) != len(corr.Members)-1 {
			return fmt.Errorf("config: corridor %q travel count %d != member count %d - 1",
				corr.Name, len(corr.Travel), len(corr.Members))
		}
		for _, tt := range corr.Travel {
			if tt <= 0 {
				return fmt.Errorf("config: corridor %q has non-positive travel time", corr.Name)
			}
		}
		for _, m := range corr.Members {
			j, ok := junctionByID[m.Junction]
			if !ok {
				return fmt.Errorf("config: corridor %q references unknown junction %d", corr.Name, m.Junction)
			}
			if !lo.ContainsBy(j.Phases, func(p Phase) bool { return p.Name == m.Phase }) {
				return fmt.Errorf("config: corridor %q references unknown phase %q of junction %d",
					corr.Name, m.Phase, m.Junction)
			}
		}
	}
	return nil
}

// ConflictClosure 构建车道冲突关系的对称闭包
// 功能：配置中单向声明的冲突关系双向生效
// 返回：车道ID->与其冲突的车道ID集合
func ConflictClosure(lanes []Lane) map[int32]map[int32]struct{} {
	closure := make(map[int32]map[int32]struct{}, len(lanes))
	for _, l := range lanes {
		if closure[l.ID] == nil {
			closure[l.ID] = make(map[int32]struct{})
		}
		for _, other := range l.Conflicts {
			closure[l.ID][other] = struct{}{}
			if closure[other] == nil {
				closure[other] = make(map[int32]struct{})
			}
			closure[other][l.ID] = struct{}{}
		}
	}
	return closure
}
