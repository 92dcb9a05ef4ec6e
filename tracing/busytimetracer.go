package tracing

import (
	"container/list"
	"sync"

	"github.com/sarchlab/procsim/sim"
)

type busyInterval struct {
	start, end sim.VTimeInSec
	completed  bool
}

// BusyTimeTracer measures the simulated time during which at least one of the
// traced processes is busy. A process becomes busy when it is dispatched and
// stays busy, across its holds, until it cancels itself, passivates or
// terminates. Overlapping busy periods of different processes are counted
// once.
//
// A reset closes every open period, since the clock is about to go back to
// zero.
type BusyTimeTracer struct {
	filter    ProcessFilter
	lock      sync.Mutex
	inflight  map[string]*list.Element
	intervals *list.List
	busyTime  sim.VTimeInSec
}

// NewBusyTimeTracer creates a new BusyTimeTracer.
func NewBusyTimeTracer(filter ProcessFilter) *BusyTimeTracer {
	return &BusyTimeTracer{
		filter:    filter,
		inflight:  make(map[string]*list.Element),
		intervals: list.New(),
	}
}

// BusyTime returns the total busy time of the completed periods.
func (t *BusyTimeTracer) BusyTime() sim.VTimeInSec {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// Func updates the busy periods.
func (t *BusyTimeTracer) Func(ctx sim.HookCtx) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if ctx.Pos == sim.HookPosReset {
		t.closeAll(ctx.Now)
		return
	}

	p, ok := processOf(ctx, t.filter)
	if !ok {
		return
	}

	switch ctx.Pos {
	case sim.HookPosBeforeDispatch:
		t.start(p.ID(), ctx.Now)
	case sim.HookPosCancel, sim.HookPosTerminate:
		t.end(p.ID(), ctx.Now)
	}
}

// CloseAll ends every open period at the given time.
func (t *BusyTimeTracer) CloseAll(now sim.VTimeInSec) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.closeAll(now)
}

func (t *BusyTimeTracer) start(id string, now sim.VTimeInSec) {
	if _, busy := t.inflight[id]; busy {
		return
	}

	t.inflight[id] = t.intervals.PushBack(&busyInterval{start: now})
}

func (t *BusyTimeTracer) end(id string, now sim.VTimeInSec) {
	elem, ok := t.inflight[id]
	if !ok {
		return
	}

	interval := elem.Value.(*busyInterval)
	interval.end = now
	interval.completed = true
	delete(t.inflight, id)

	t.collapse(now)
}

func (t *BusyTimeTracer) closeAll(now sim.VTimeInSec) {
	for e := t.intervals.Front(); e != nil; e = e.Next() {
		interval := e.Value.(*busyInterval)
		if !interval.completed {
			interval.completed = true
			interval.end = now
		}
	}

	t.inflight = make(map[string]*list.Element)
	t.collapse(now)
}

// collapse folds the completed periods that no open period can overlap into
// the busy time.
func (t *BusyTimeTracer) collapse(now sim.VTimeInSec) {
	start, found := t.startOfFirstOpenInterval()
	if found && start < now {
		return
	}

	finished := make([]*busyInterval, 0)

	var next *list.Element
	for e := t.intervals.Front(); e != nil; e = next {
		next = e.Next()

		interval := e.Value.(*busyInterval)
		if !interval.completed {
			break
		}

		if interval.end <= now {
			finished = append(finished, interval)
			t.intervals.Remove(e)
		}
	}

	t.busyTime += unionLength(finished)
}

func (t *BusyTimeTracer) startOfFirstOpenInterval() (sim.VTimeInSec, bool) {
	for e := t.intervals.Front(); e != nil; e = e.Next() {
		interval := e.Value.(*busyInterval)
		if !interval.completed {
			return interval.start, true
		}
	}

	return 0, false
}

func unionLength(intervals []*busyInterval) sim.VTimeInSec {
	length := sim.VTimeInSec(0.0)
	covered := make(map[int]bool)

	for i, t1 := range intervals {
		if covered[i] {
			continue
		}

		covered[i] = true
		ext := busyInterval{start: t1.start, end: t1.end}

		for j, t2 := range intervals {
			if covered[j] {
				continue
			}

			if overlap(&ext, t2) {
				covered[j] = true
				extend(&ext, t2)
			}
		}

		length += ext.end - ext.start
	}

	return length
}

func overlap(t1, t2 *busyInterval) bool {
	if t1.start <= t2.start && t1.end >= t2.start {
		return true
	}

	if t1.start <= t2.end && t1.end >= t2.end {
		return true
	}

	if t1.start >= t2.start && t1.end <= t2.end {
		return true
	}

	return false
}

func extend(base, t2 *busyInterval) {
	if t2.start < base.start {
		base.start = t2.start
	}

	if t2.end > base.end {
		base.end = t2.end
	}
}
