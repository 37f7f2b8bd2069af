// 提供干线绿波协调
// 按配置的相邻路口行程时间计算下游路口的目标相位偏移，
// 使上游绿灯放出的车队到达下游时恰逢绿灯
// 协调只产生建议性偏置，本地的min/max green与饥饿规则始终优先
package corridor

import (
	"math"

	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
)

// Corridor 干线实体
// 功能：有序的路口序列与相邻路口间行程时间，配置加载后只读
type Corridor struct {
	name      string
	junctions []entity.IJunction
	// 各成员路口上服务干线方向的相位下标
	phaseIdx []int
	travel   []float64 // travel[i]为成员i到成员i+1的行程时间

	cycle float64 // 偏移归一化使用的周期长度
	slack float64 // 允许推迟切换的最大时长
}

// coordinate 执行一轮干线协调
// 功能：自上游向下游单向传播偏置，当前节拍内只读各路口快照
// 参数：now-当前引擎时间
// 算法说明：
// 1. 上游路口处于干线相位绿灯时，记录其进入时间t_up
// 2. 下游目标进入时间 = t_up + 行程时间（按周期归一化）
// 3. 目标时间在未来且在slack窗口内时，向下游写入建议偏置，
//    提示决策器推迟切入干线相位；其余情况清除偏置
// 4. 下游已处于干线相位绿灯时无需协调
// 说明：偏置仅为建议，写入后由下游决策器在本地约束内取舍；
// 单向传播避免了干线重叠时节拍内的环形读写
func (c *Corridor) coordinate(now float64) {
	for i := 1; i < len(c.junctions); i++ {
		up := c.junctions[i-1].Snapshot()
		down := c.junctions[i]
		ds := down.Snapshot()

		if up.Mode != entity.PhaseModeGreen || up.Phase != c.phaseIdx[i-1] {
			down.SetBias(nil)
			continue
		}
		if ds.Mode == entity.PhaseModeGreen && ds.Phase == c.phaseIdx[i] {
			down.SetBias(nil)
			continue
		}
		offset := math.Mod(c.travel[i-1], c.cycle)
		target := up.EnteredAt + offset
		if target > now && target-now <= c.slack {
			down.SetBias(&entity.PhaseBias{
				Phase:     c.phaseIdx[i],
				NotBefore: target,
			})
		} else {
			down.SetBias(nil)
		}
	}
}
