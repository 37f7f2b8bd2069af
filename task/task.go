package task

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/clock"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/corridor"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/junction"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity/lane"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/output"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// log 任务模块的日志记录器
var log = logrus.WithField("module", "task")

// 执行命令缓冲通道容量
const dispatchBuffer = 256

// Context 信控任务上下文
// 功能：包含一次控制任务的所有变量和状态，替代全局变量
// 说明：持有时钟、各管理器、运行时配置与命令分发器
type Context struct {

	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// Lane管理器
	laneManager entity.ILaneManager
	// Junction管理器
	junctionManager entity.IJunctionManager
	// Corridor管理器
	corridorManager entity.ICorridorManager

	// 运行时配置文件
	runtimeConfig *config.RuntimeConfig

	// 执行命令分发器
	dispatcher *output.Dispatcher
}

// NewContext 创建新的信控任务上下文
// 功能：校验配置并初始化引擎的所有组件
// 参数：job-任务名称，c-配置对象
// 返回：初始化完成的Context实例与配置校验错误
// 算法说明：
// 1. 校验配置并填充默认值
// 2. 创建时钟与命令分发器
// 3. 创建车道、路口、干线三类管理器
func NewContext(job string, c config.Config) (*Context, error) {
	runtimeConfig, err := config.NewRuntimeConfig(c)
	if err != nil {
		return nil, err
	}
	ctx := &Context{
		job:           job,
		runtimeConfig: runtimeConfig,
	}
	// 必须使用补全缺省值后的配置，否则省略interval时DT为0
	ctx.clock = clock.New(runtimeConfig.All.Control.Step)
	ctx.dispatcher = output.NewDispatcher(dispatchBuffer)

	// 新建各类控制对象
	ctx.laneManager = lane.NewManager(ctx)
	ctx.junctionManager = junction.NewManager(ctx)
	ctx.corridorManager = corridor.NewManager(ctx)

	return ctx, nil
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) LaneManager() entity.ILaneManager {
	return ctx.laneManager
}

func (ctx *Context) JunctionManager() entity.IJunctionManager {
	return ctx.junctionManager
}

func (ctx *Context) CorridorManager() entity.ICorridorManager {
	return ctx.corridorManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Output() entity.ICommandSink {
	return ctx.dispatcher
}

// Dispatcher 返回具体的命令分发器，供对外服务订阅与查询
func (ctx *Context) Dispatcher() *output.Dispatcher {
	return ctx.dispatcher
}

// Init 初始化
// 功能：按依赖顺序初始化各管理器并启动所有路口的相位状态机
// 算法说明：
// 1. 重置时钟
// 2. 车道初始化（聚合器就位后才能接收量测）
// 3. 路口初始化（解析车道引用并启动状态机，从全红清空进入首个相位）
// 4. 干线初始化（解析路口与相位引用）
func (ctx *Context) Init() {
	ctx.clock.Init()

	c := ctx.runtimeConfig.All

	log.Infof("Junction: %v", len(c.Junctions))
	log.Infof("Corridor: %v", len(c.Corridors))

	ctx.laneManager.Init(c.Junctions) // 先完成lane的所有初始化
	// 在建立好lane的基础上初始化路口
	ctx.junctionManager.Init(c.Junctions, ctx.laneManager)
	// 干线协调初始化
	ctx.corridorManager.Init(c.Corridors, ctx.junctionManager)
}

// Close 发出关闭指令
// 功能：通知控制循环在完成当前清空过程后退出
func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.closed.Store(true)
}
