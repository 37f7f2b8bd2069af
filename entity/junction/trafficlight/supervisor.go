// 提供故障兜底监督
// 监控路口的量测覆盖率，覆盖不足超过宽限期后强制切入固定配时，
// 覆盖恢复并稳定后交还自适应控制
package trafficlight

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
	"gonum.org/v1/gonum/stat"
)

// Supervisor 故障兜底监督器
// 功能：按节拍统计在线车道占比，驱动自适应/固定配时模式切换
// 说明：模式切换只改变决策来源，不打断进行中的清空或最小绿灯约束
type Supervisor struct {
	junctionID int32
	cfg        config.Supervisor

	degraded bool    // 是否处于兜底固定配时
	belowFor float64 // 覆盖不足的持续时长
	okFor    float64 // 覆盖恢复后的稳定时长
}

// NewSupervisor 创建故障兜底监督器
func NewSupervisor(junctionID int32, cfg config.Supervisor) *Supervisor {
	return &Supervisor{
		junctionID: junctionID,
		cfg:        cfg,
	}
}

// Degraded 是否处于兜底固定配时
func (s *Supervisor) Degraded() bool {
	return s.degraded
}

// Update 按节拍更新监督状态
// 功能：统计覆盖率并推进宽限/稳定计时
// 参数：dt-时间步长，states-路口车道状态快照
// 返回：fixedTime-本节拍是否采用固定配时，justDegraded-是否本节拍刚切入
// 算法说明：
// 1. 覆盖率 = 在线（非失效）车道占比
// 2. 覆盖率低于阈值：宽限计时累加，超过宽限期后切入固定配时
// 3. 覆盖率恢复：稳定计时累加，超过稳定期后切回自适应控制
func (s *Supervisor) Update(dt float64, states []entity.LaneState) (fixedTime bool, justDegraded bool) {
	reporting := lo.Map(states, func(st entity.LaneState, _ int) float64 {
		if st.Stale {
			return 0
		}
		return 1
	})
	coverage := stat.Mean(reporting, nil)

	if coverage < s.cfg.CoverageThreshold {
		s.belowFor += dt
		s.okFor = 0
		if !s.degraded && s.belowFor >= s.cfg.GracePeriod {
			s.degraded = true
			justDegraded = true
			log.Warnf("junction %d: sensor coverage %.2f below %.2f for %.1fs, falling back to fixed-time control",
				s.junctionID, coverage, s.cfg.CoverageThreshold, s.belowFor)
		}
	} else {
		s.belowFor = 0
		if s.degraded {
			s.okFor += dt
			if s.okFor >= s.cfg.SettlePeriod {
				s.degraded = false
				log.Infof("junction %d: sensor coverage recovered, resuming adaptive control", s.junctionID)
			}
		}
	}
	return s.degraded, justDegraded
}
