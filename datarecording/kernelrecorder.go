package datarecording

import (
	"github.com/rs/xid"

	"github.com/sarchlab/procsim/sim"
)

// EventTableName is the table the KernelRecorder writes into.
const EventTableName = "kernel_event"

// EventEntry is a row of the event table.
type EventEntry struct {
	ID        string
	Time      float64
	Kind      string
	Process   string
	ProcessID string
}

// KernelRecorder is a hook that records every kernel event of a scheduler:
// activations, dispatches, cancellations, terminations and resets.
type KernelRecorder struct {
	recorder DataRecorder
}

// NewKernelRecorder creates the event table and returns the hook.
func NewKernelRecorder(recorder DataRecorder) *KernelRecorder {
	recorder.CreateTable(EventTableName, EventEntry{})

	return &KernelRecorder{recorder: recorder}
}

// Func records the event.
func (r *KernelRecorder) Func(ctx sim.HookCtx) {
	entry := EventEntry{
		ID:   xid.New().String(),
		Time: float64(ctx.Now),
		Kind: ctx.Pos.Name,
	}

	if p, ok := ctx.Item.(*sim.Process); ok && p != nil {
		entry.Process = p.Name()
		entry.ProcessID = p.ID()
	}

	r.recorder.InsertData(EventTableName, entry)
}

// Flush writes the buffered events into the database.
func (r *KernelRecorder) Flush() {
	r.recorder.Flush()
}
