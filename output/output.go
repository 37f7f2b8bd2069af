// 提供执行命令的异步分发
// 相位状态机产生的命令经缓冲通道交给独立协程处理：记录日志、
// 保留每路口最近一次命令供外部核对、向订阅者扇出
// 分发严格fire-and-forget，任何下游阻塞都不会拖慢控制节拍
package output

import (
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
)

// log 输出模块的日志记录器
var log = logrus.WithField("module", "output")

// Dispatcher 执行命令分发器
// 功能：实现entity.ICommandSink，消费相位状态机发出的命令
type Dispatcher struct {
	ch   chan entity.ActuationCommand
	done chan struct{}

	mtx  sync.RWMutex
	last map[int32]entity.ActuationCommand
	subs map[chan entity.ActuationCommand]struct{}
}

// NewDispatcher 创建执行命令分发器并启动消费协程
// 参数：buffer-命令缓冲通道容量
func NewDispatcher(buffer int) *Dispatcher {
	d := &Dispatcher{
		ch:   make(chan entity.ActuationCommand, buffer),
		done: make(chan struct{}),
		last: make(map[int32]entity.ActuationCommand),
		subs: make(map[chan entity.ActuationCommand]struct{}),
	}
	go d.run()
	return d
}

// Dispatch 投递一条执行命令
// 功能：非阻塞投递，缓冲已满时丢弃并告警，绝不阻塞控制节拍
func (d *Dispatcher) Dispatch(cmd entity.ActuationCommand) {
	select {
	case d.ch <- cmd:
	default:
		log.Warnf("junction %d: actuation buffer full, dropping command %s", cmd.JunctionID, cmd.ID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for cmd := range d.ch {
		log.Infof("junction %d: %s phase %d (t=%.1fs, lanes=%v)",
			cmd.JunctionID, cmd.Mode, cmd.Phase, cmd.Time, cmd.GreenLanes)
		d.mtx.Lock()
		d.last[cmd.JunctionID] = cmd
		for sub := range d.subs {
			// 订阅者跟不上时丢弃，不回压
			select {
			case sub <- cmd:
			default:
			}
		}
		d.mtx.Unlock()
	}
}

// Subscribe 订阅执行命令流
// 返回：命令通道与取消函数
// 说明：分发器关闭时命令通道随之关闭，订阅者的range循环自然退出；
// 已关闭的分发器上订阅直接得到已关闭的通道
func (d *Dispatcher) Subscribe() (<-chan entity.ActuationCommand, func()) {
	ch := make(chan entity.ActuationCommand, 16)
	d.mtx.Lock()
	if d.subs == nil {
		d.mtx.Unlock()
		close(ch)
		return ch, func() {}
	}
	d.subs[ch] = struct{}{}
	d.mtx.Unlock()
	cancel := func() {
		d.mtx.Lock()
		delete(d.subs, ch)
		d.mtx.Unlock()
	}
	return ch, cancel
}

// Last 查询某路口最近一次下发的命令
// 功能：外部系统核对实际执行状态的依据
func (d *Dispatcher) Last(junctionID int32) (entity.ActuationCommand, bool) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	cmd, ok := d.last[junctionID]
	return cmd, ok
}

// LastAll 查询全部路口最近一次下发的命令
func (d *Dispatcher) LastAll() []entity.ActuationCommand {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return lo.Values(d.last)
}

// Close 关闭分发器，等待缓冲内命令处理完毕
// 功能：缓冲排空后关闭全部订阅通道，长连接推送随之结束
// 说明：只允许调用一次
func (d *Dispatcher) Close() {
	close(d.ch)
	<-d.done
	d.mtx.Lock()
	for sub := range d.subs {
		close(sub)
	}
	d.subs = nil
	d.mtx.Unlock()
}
