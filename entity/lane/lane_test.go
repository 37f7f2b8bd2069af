package lane_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/task"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/utils/config"
)

// 单路口两相位的测试配置
func testConfig() config.Config {
	return config.Config{
		Junctions: []config.Junction{{
			ID: 1,
			Lanes: []config.Lane{
				{ID: 101, Direction: "north", Conflicts: []int32{103, 104}},
				{ID: 102, Direction: "south", Conflicts: []int32{103, 104}},
				{ID: 103, Direction: "east"},
				{ID: 104, Direction: "west"},
			},
			Phases: []config.Phase{
				{Name: "NS", Lanes: []int32{101, 102}},
				{Name: "EW", Lanes: []int32{103, 104}},
			},
		}},
	}
}

func newTestContext(t *testing.T, mutate func(*config.Config)) *task.Context {
	c := testConfig()
	if mutate != nil {
		mutate(&c)
	}
	ctx, err := task.NewContext("test", c)
	require.NoError(t, err)
	ctx.Init()
	return ctx
}

func TestIngestValidation(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()
	ts := float64(time.Now().UnixNano())/1e9 - 100

	assert.Error(t, m.Ingest(entity.Measurement{LaneID: 999, Timestamp: ts, Demand: 0.5}))
	assert.Error(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: -0.1}))
	assert.Error(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.5, Confidence: 1.5}))
	// 时间戳超前超出抖动窗口
	assert.Error(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts + 200, Demand: 0.5}))

	assert.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.5}))
}

func TestExponentialSmoothing(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()
	lane := m.Get(101)
	ts := float64(time.Now().UnixNano())/1e9 - 100

	// 首条量测直接作为初始估计
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.2}))
	m.Prepare()
	assert.InDelta(t, 0.2, lane.Snapshot().Demand, 1e-9)

	// 间隔一个半衰期（4秒）的新量测，新旧权重各半
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts + 4, Demand: 1.0}))
	m.Prepare()
	assert.InDelta(t, 0.6, lane.Snapshot().Demand, 1e-9)
}

func TestLowConfidenceDampsUpdate(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()
	lane := m.Get(101)
	ts := float64(time.Now().UnixNano())/1e9 - 100

	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.2, Confidence: 1}))
	m.Prepare()
	// 半置信度量测的更新幅度减半：w=(1-0.5)*0.5=0.25
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts + 4, Demand: 1.0, Confidence: 0.5}))
	m.Prepare()
	assert.InDelta(t, 0.4, lane.Snapshot().Demand, 1e-9)
}

func TestDuplicateMeasurementIdempotent(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()
	lane := m.Get(101)
	ts := float64(time.Now().UnixNano())/1e9 - 100

	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.3}))
	m.Prepare()
	before := lane.Snapshot().Demand

	// 同一时间戳的重复投递与乱序旧量测均被静默丢弃
	assert.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.9}))
	assert.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts - 1, Demand: 0.9}))
	m.Prepare()
	assert.Equal(t, before, lane.Snapshot().Demand)
}

func TestCountNormalization(t *testing.T) {
	ctx := newTestContext(t, func(c *config.Config) {
		c.Aggregator.CountThreshold = 10
	})
	m := ctx.LaneManager()
	lane := m.Get(101)
	ts := float64(time.Now().UnixNano())/1e9 - 100

	// 车辆计数按拥堵阈值归一化，超过阈值饱和为1
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 25}))
	m.Prepare()
	assert.InDelta(t, 1.0, lane.Snapshot().Demand, 1e-9)

	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 102, Timestamp: ts, Demand: 4}))
	m.Prepare()
	assert.InDelta(t, 0.4, m.Get(102).Snapshot().Demand, 1e-9)
}

func TestStaleDecay(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()
	lane := m.Get(101)
	ts := float64(time.Now().UnixNano())/1e9 - 100

	ctx.Clock().T = 10
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts, Demand: 0.8}))
	m.Prepare()
	assert.False(t, lane.Snapshot().Stale)

	// 超时前不失效
	ctx.Clock().T = 12
	m.Update(1)
	m.Prepare()
	assert.False(t, lane.Snapshot().Stale)

	// 超时后失效，需求按半衰期向零衰减而不是冻结
	ctx.Clock().T = 14
	m.Update(1)
	m.Prepare()
	s := lane.Snapshot()
	assert.True(t, s.Stale)
	assert.InDelta(t, 0.8*math.Exp(-math.Ln2/4), s.Demand, 1e-9)

	// 新量测到达后恢复在线
	require.NoError(t, m.Ingest(entity.Measurement{LaneID: 101, Timestamp: ts + 5, Demand: 0.5}))
	m.Prepare()
	assert.False(t, lane.Snapshot().Stale)
}

func TestSnapshotsFilter(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()

	all, failed := m.Snapshots(nil)
	assert.Len(t, all, 4)
	assert.Empty(t, failed)

	some, failed := m.Snapshots([]int32{101, 999})
	assert.Len(t, some, 1)
	assert.Equal(t, int32(101), some[0].LaneID)
	assert.Equal(t, int32(1), some[0].JunctionID)
	assert.Equal(t, []int32{999}, failed)
}

func TestConflictClosureSymmetric(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := ctx.LaneManager()

	// 配置里只在101侧声明了与103/104的冲突
	assert.True(t, m.Get(101).ConflictsWith(103))
	assert.True(t, m.Get(103).ConflictsWith(101))
	assert.False(t, m.Get(101).ConflictsWith(102))
}
