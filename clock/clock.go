package clock

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// Clock 控制循环时钟
// 功能：管理控制引擎的时间推进，维护当前引擎时间与节拍步数
// 说明：引擎内部的时间基准与感知侧时间戳相互独立，
// 量测的新旧关系由聚合器按感知侧时间戳判断
type Clock struct {
	DT         float64 // 每个控制节拍的时间间隔（秒）
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步，控制区间[START, END)，0表示无限运行

	T            float64 // 当前引擎时间（秒）
	InternalStep int32   // 当前步数

	// T的位表示，控制循环每步发布一次，供循环外并发读取
	published atomic.Uint64
}

// New 根据配置创建新的时钟实例
// 功能：根据控制步配置初始化时钟信息
// 参数：stepConfig-控制步配置，包含节拍间隔与总步数
// 返回：初始化完成的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:         stepConfig.Interval,
		START_STEP: 0,
		END_STEP:   stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 初始化时钟状态
// 功能：重置步数为起始步，重新计算当前时间
func (c *Clock) Init() {
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
	c.published.Store(math.Float64bits(c.T))
}

// Advance 推进一个控制节拍
// 功能：增加步数、重算当前时间并发布
// 说明：只允许控制循环调用，T与InternalStep只在循环内读写
func (c *Clock) Advance() {
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
	c.published.Store(math.Float64bits(c.T))
}

// Now 并发安全地读取最近发布的引擎时间
// 功能：供控制循环之外的goroutine（对外服务等）读取时间
func (c *Clock) Now() float64 {
	return math.Float64frombits(c.published.Load())
}

// String 获取时钟的字符串表示
// 功能：将当前时间格式化为可读的字符串（HH:MM:SS）
func (c *Clock) String() string {
	t := c.T
	h := int(t / 3600)
	t -= float64(h * 3600)
	m := int(t / 60)
	t -= float64(m * 60)
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 功能：将当前时间分解为小时、分钟、秒三个部分
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
