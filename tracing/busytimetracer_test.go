package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/procsim/sim"
)

var _ = Describe("BusyTimeTracer", func() {
	var (
		s      *sim.Scheduler
		p1, p2 *sim.Process
		t      *BusyTimeTracer
	)

	noop := sim.BodyFunc(func(*sim.Process) error { return nil })

	at := func(pos *sim.HookPos, p *sim.Process, now sim.VTimeInSec) {
		t.Func(sim.HookCtx{Domain: s, Now: now, Pos: pos, Item: p})
	}

	BeforeEach(func() {
		s = sim.NewScheduler()
		p1 = sim.NewProcess(s, "p1", noop)
		p2 = sim.NewProcess(s, "p2", noop)
		t = NewBusyTimeTracer(nil)
	})

	It("should track busy time, one process", func() {
		at(sim.HookPosBeforeDispatch, p1, 1)
		at(sim.HookPosBeforeDispatch, p1, 1.5)
		at(sim.HookPosCancel, p1, 2)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.0)))
	})

	It("should track busy time, two periods", func() {
		at(sim.HookPosBeforeDispatch, p1, 1)
		at(sim.HookPosCancel, p1, 2)
		at(sim.HookPosBeforeDispatch, p1, 3)
		at(sim.HookPosTerminate, p1, 4)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should track busy time, two periods adjacent", func() {
		at(sim.HookPosBeforeDispatch, p1, 1)
		at(sim.HookPosCancel, p1, 2)
		at(sim.HookPosBeforeDispatch, p2, 2)
		at(sim.HookPosCancel, p2, 3)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2.0)))
	})

	It("should count overlapping periods once", func() {
		at(sim.HookPosBeforeDispatch, p1, 1)
		at(sim.HookPosBeforeDispatch, p2, 1.5)
		at(sim.HookPosCancel, p1, 2)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(0)))

		at(sim.HookPosCancel, p2, 2.5)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1.5)))
	})

	It("should ignore the end of a period that never started", func() {
		at(sim.HookPosCancel, p1, 2)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(0)))
	})

	It("should close every period on reset", func() {
		at(sim.HookPosBeforeDispatch, p1, 1)
		at(sim.HookPosBeforeDispatch, p2, 2)
		t.Func(sim.HookCtx{Domain: s, Now: 4, Pos: sim.HookPosReset})

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(3)))

		at(sim.HookPosBeforeDispatch, p1, 0)
		at(sim.HookPosCancel, p1, 1)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(4)))
	})

	It("should only trace the filtered processes", func() {
		t = NewBusyTimeTracer(NamePrefix("p2"))

		at(sim.HookPosBeforeDispatch, p1, 0)
		at(sim.HookPosBeforeDispatch, p2, 1)
		at(sim.HookPosCancel, p2, 2)
		at(sim.HookPosCancel, p1, 5)

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(1)))
	})

	It("should trace a running simulation", func() {
		t = NewBusyTimeTracer(AllProcesses)
		s = sim.MakeBuilder().WithHook(t).Started().Build()
		DeferCleanup(s.Shutdown)

		worker := sim.NewProcess(s, "worker", sim.BodyFunc(
			func(p *sim.Process) error {
				if err := p.Hold(2); err != nil {
					return err
				}

				return p.Passivate()
			}))
		Expect(worker.ActivateAt(1, false)).To(Succeed())

		Expect(s.Run()).To(Succeed())

		Expect(t.BusyTime()).To(Equal(sim.VTimeInSec(2)))
	})
})
