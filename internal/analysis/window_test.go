package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_RetainsLastCapacityTicksInOrder(t *testing.T) {
	const capacity = 10
	for _, extra := range []int{0, 1, 7, 10, 23} {
		w := NewWindow(capacity)
		total := capacity + extra
		for n := 0; n < total; n++ {
			w.Append(mkTick(n, 100+float64(n), 1))
		}

		got := w.Snapshot()
		require.Len(t, got, capacity, "extra=%d", extra)
		for i, tick := range got {
			assert.Equal(t, 100+float64(extra+i), tick.Price, "extra=%d index=%d", extra, i)
		}

		last, ok := w.Last()
		require.True(t, ok)
		assert.Equal(t, 100+float64(total-1), last.Price)
	}
}

func TestWindow_PartiallyFilled(t *testing.T) {
	w := NewWindow(5)
	_, ok := w.Last()
	assert.False(t, ok)
	assert.Empty(t, w.Snapshot())

	w.Append(mkTick(0, 1, 0))
	w.Append(mkTick(1, 2, 0))

	assert.Equal(t, []float64{1, 2}, prices(w.Snapshot()))
	assert.Equal(t, 2, w.Len())
	assert.Equal(t, 5, w.Cap())
	last, _ := w.Last()
	assert.Equal(t, 2.0, last.Price)
}

func TestWindow_SnapshotIsACopy(t *testing.T) {
	w := NewWindow(3)
	w.Append(mkTick(0, 1, 0))
	snap := w.Snapshot()
	snap[0].Price = 99

	assert.Equal(t, 1.0, w.Snapshot()[0].Price)
}

func TestWindow_CapacityOne(t *testing.T) {
	w := NewWindow(0)
	w.Append(mkTick(0, 1, 0))
	w.Append(mkTick(1, 2, 0))
	assert.Equal(t, []float64{2}, prices(w.Snapshot()))
}
