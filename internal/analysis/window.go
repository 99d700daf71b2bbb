package analysis

import (
	"github.com/rewired-gh/tickwatch/internal/models"
)

// Window is a fixed-capacity ring of the most recent ticks.
type Window struct {
	buf      []models.Tick
	index    int
	capacity int
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		buf:      make([]models.Tick, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a tick, overwriting the oldest one once the ring is full.
func (w *Window) Append(t models.Tick) {
	if len(w.buf) < w.capacity {
		w.buf = append(w.buf, t)
	} else {
		w.buf[w.index] = t
	}
	w.index = (w.index + 1) % w.capacity
}

// Snapshot returns the ticks oldest first. The result is a copy.
func (w *Window) Snapshot() []models.Tick {
	out := make([]models.Tick, 0, len(w.buf))
	if len(w.buf) < w.capacity {
		return append(out, w.buf...)
	}
	out = append(out, w.buf[w.index:]...)
	return append(out, w.buf[:w.index]...)
}

func (w *Window) Len() int {
	return len(w.buf)
}

func (w *Window) Cap() int {
	return w.capacity
}

// Last returns the newest tick.
func (w *Window) Last() (models.Tick, bool) {
	if len(w.buf) == 0 {
		return models.Tick{}, false
	}
	i := (w.index - 1 + w.capacity) % w.capacity
	if len(w.buf) < w.capacity {
		i = len(w.buf) - 1
	}
	return w.buf[i], true
}

func (w *Window) clone() *Window {
	c := &Window{
		buf:      make([]models.Tick, len(w.buf), w.capacity),
		index:    w.index,
		capacity: w.capacity,
	}
	copy(c.buf, w.buf)
	return c
}
