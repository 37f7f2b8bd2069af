package entity

import (
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/clock"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	LaneManager() ILaneManager
	JunctionManager() IJunctionManager
	CorridorManager() ICorridorManager
	RuntimeConfig() *config.RuntimeConfig
	Output() ICommandSink
}
