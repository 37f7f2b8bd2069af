package task

import (
	"flag"
	"sync"
	"time"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 60, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：在每个控制节拍开始时进行准备工作
// 算法说明：
// 1. 更新时钟：增加内部步数并计算当前时间
// 2. 心跳日志：定期输出系统状态信息
// 3. 并行准备：先合入全部车道的量测缓冲并发布车道快照，
//    再并行发布全部路口的相位快照
// 说明：快照全部发布后，更新阶段之间才允许互相读取，
// 保证同一节拍内所有决策读取的是一致的状态
func (ctx *Context) prepare() {
	ctx.clock.Advance()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		log.Infof(
			"STEP: %d(%d:%d:%.2f)",
			ctx.clock.InternalStep,
			hour, minute, second,
		)
	}

	// Prepare
	var wg sync.WaitGroup

	{
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.laneManager.Prepare() // lane
		}()
		wg.Wait()
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.junctionManager.Prepare() // junction
		}()
		wg.Wait()
	}
}

// coordinate 协调阶段，每步执行一次
// 功能：干线协调器读取本节拍快照并向下游路口写入建议偏置
// 说明：必须在prepare之后、update之前串行执行，
// 偏置写入与路口决策不会并发
func (ctx *Context) coordinate() {
	ctx.corridorManager.Coordinate(ctx.clock.T)
}

// update 更新阶段，每步执行一次
// 功能：在每个控制节拍中执行主要的控制逻辑
// 算法说明：
// 1. 并行更新：并发执行各管理器的更新操作
//   - 路口管理器：监督判定、配时决策与相位状态机推进
//   - 车道管理器：失效判定与需求衰减
//
// 2. 路口之间互不写入，只读取prepare阶段发布的快照，
//    因此路口与车道的更新可以安全并行
func (ctx *Context) update() {
	var wg sync.WaitGroup

	// Update
	{
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.junctionManager.Update(ctx.clock.DT) // junction
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx.laneManager.Update(ctx.clock.DT) // lane
		}()
	}
	wg.Wait()
}

// Step 推进一个控制节拍
// 功能：按prepare、coordinate、update的顺序执行一步
func (ctx *Context) Step() {
	ctx.prepare()
	ctx.coordinate()
	ctx.update()
}

// Run 运行
// 功能：按墙钟节拍推进控制循环，直至收到关闭指令
// 说明：调用前必须先完成Init
// 算法说明：
// 1. 按节拍间隔推进，每步依次执行prepare、coordinate、update
// 2. 收到关闭指令或达到总步数后，等待所有路口清空过程结束再退出，
//    绝不在黄灯或全红清空中途停止
func (ctx *Context) Run() {
	ticker := time.NewTicker(time.Duration(ctx.clock.DT * float64(time.Second)))
	defer ticker.Stop()
	for range ticker.C {
		ctx.Step()
		stop := ctx.closed.Load()
		if ctx.clock.END_STEP > 0 && ctx.clock.InternalStep >= ctx.clock.END_STEP {
			stop = true
		}
		// 清空过程中不允许退出
		if stop && !ctx.junctionManager.AnyInClearance() {
			break
		}
	}
	ctx.dispatcher.Close()
	log.Infof("engine complete")
}
