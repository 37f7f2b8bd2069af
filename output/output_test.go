package output_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/entity"
	"github.com/tsinghua-fib-lab/adaptive-signal-oss/output"
)

func TestDispatchAndLast(t *testing.T) {
	d := output.NewDispatcher(16)

	sub, cancel := d.Subscribe()
	defer cancel()

	cmd := entity.ActuationCommand{
		ID:         "c1",
		JunctionID: 1,
		Time:       10,
		Mode:       entity.PhaseModeGreen,
		Phase:      0,
		GreenLanes: []int32{101},
	}
	d.Dispatch(cmd)

	// 订阅者收到后命令必然已经记账
	select {
	case got := <-sub:
		assert.Equal(t, cmd, got)
	case <-time.After(time.Second):
		t.Fatal("no command delivered")
	}

	last, ok := d.Last(1)
	require.True(t, ok)
	assert.Equal(t, "c1", last.ID)
	_, ok = d.Last(2)
	assert.False(t, ok)
}

func TestLastKeepsNewestPerJunction(t *testing.T) {
	d := output.NewDispatcher(16)
	sub, cancel := d.Subscribe()
	defer cancel()

	d.Dispatch(entity.ActuationCommand{ID: "c1", JunctionID: 1, Time: 10})
	d.Dispatch(entity.ActuationCommand{ID: "c2", JunctionID: 1, Time: 11})
	d.Dispatch(entity.ActuationCommand{ID: "c3", JunctionID: 2, Time: 11})
	for range 3 {
		<-sub
	}

	last, ok := d.Last(1)
	require.True(t, ok)
	assert.Equal(t, "c2", last.ID)
	assert.Len(t, d.LastAll(), 2)
}

func TestCloseDrainsBuffer(t *testing.T) {
	d := output.NewDispatcher(16)
	for i := range 8 {
		d.Dispatch(entity.ActuationCommand{ID: "c", JunctionID: int32(i), Time: 1})
	}
	// Close等待缓冲内全部命令处理完毕
	d.Close()
	assert.Len(t, d.LastAll(), 8)
}

func TestCloseClosesSubscribers(t *testing.T) {
	d := output.NewDispatcher(16)
	sub, cancel := d.Subscribe()
	defer cancel()

	d.Dispatch(entity.ActuationCommand{ID: "c1", JunctionID: 1})
	d.Close()

	// 缓冲排空后订阅通道关闭，订阅者的range循环自然退出
	var got []entity.ActuationCommand
	for cmd := range sub {
		got = append(got, cmd)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)

	// 关闭后的订阅直接得到已关闭的通道
	late, lateCancel := d.Subscribe()
	defer lateCancel()
	_, ok := <-late
	assert.False(t, ok)
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	d := output.NewDispatcher(16)
	sub, cancel := d.Subscribe()
	cancel()

	d.Dispatch(entity.ActuationCommand{ID: "c1", JunctionID: 1})
	d.Close()
	select {
	case _, ok := <-sub:
		assert.False(t, ok, "cancelled subscriber must not receive")
	default:
	}
}
