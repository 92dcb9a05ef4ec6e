package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type hookFunc func(ctx HookCtx)

func (f hookFunc) Func(ctx HookCtx) {
	f(ctx)
}

var _ = Describe("Reset", func() {
	var (
		s      *Scheduler
		resets []*Process
	)

	BeforeEach(func() {
		resets = nil
		s = MakeBuilder().
			WithHook(hookFunc(func(ctx HookCtx) {
				if ctx.Pos == HookPosReset {
					p, _ := ctx.Item.(*Process)
					resets = append(resets, p)
				}
			})).
			Started().
			Build()
	})

	AfterEach(func() {
		s.Shutdown()
	})

	It("should rewind the simulation from a process", func() {
		var (
			ticks      []VTimeInSec
			restarts   int
			afterReset VTimeInSec
			idle       bool
			queued     int
			live       int
		)

		worker := NewProcess(s, "worker", BodyFunc(func(p *Process) error {
			for {
				err := p.Hold(1)
				if IsRestart(err) {
					restarts++
					if err := p.Cancel(); err != nil {
						return err
					}

					continue
				}

				if err != nil {
					return err
				}

				ticks = append(ticks, p.Time())
				if len(ticks) == 4 {
					return nil
				}
			}
		}))

		controller := NewProcess(s, "controller", BodyFunc(func(p *Process) error {
			if err := p.Hold(2.5); err != nil {
				return err
			}

			if err := p.Scheduler().Reset(); err != nil {
				return err
			}

			afterReset = p.Time()
			idle = worker.Idle()
			queued = len(p.Scheduler().QueueSnapshot())
			live = len(p.Scheduler().Processes())

			return worker.Activate()
		}))

		Expect(worker.ActivateAt(0, false)).To(Succeed())
		Expect(controller.ActivateAt(0, false)).To(Succeed())

		Expect(s.Run()).To(Succeed())

		Expect(afterReset).To(Equal(VTimeInSec(0)))
		Expect(idle).To(BeTrue())
		Expect(queued).To(Equal(0))
		Expect(live).To(Equal(0))
		Expect(restarts).To(Equal(1))
		Expect(ticks).To(Equal([]VTimeInSec{1, 2, 1, 2}))
		Expect(s.CurrentTime()).To(Equal(VTimeInSec(2)))
		Expect(resets).To(Equal([]*Process{controller}))
		Expect(s.IsResetting()).To(BeFalse())
	})

	It("should rewind the simulation from the driver", func() {
		var (
			restarted   bool
			resetting   bool
			activateErr error
			nestedErr   error
		)

		trace := &tracer{}
		other := NewProcess(s, "other", trace.body())

		worker := NewProcess(s, "worker", BodyFunc(func(p *Process) error {
			if err := p.Hold(3); err != nil {
				return err
			}

			err := p.Passivate()
			if !IsRestart(err) {
				return err
			}

			restarted = true
			resetting = p.Scheduler().IsResetting()
			activateErr = other.Activate()
			nestedErr = p.Scheduler().Reset()

			return nil
		}))

		Expect(worker.Activate()).To(Succeed())
		Expect(s.Run()).To(Succeed())
		Expect(s.CurrentTime()).To(Equal(VTimeInSec(3)))

		Expect(s.Reset()).To(Succeed())

		Expect(restarted).To(BeTrue())
		Expect(resetting).To(BeTrue())
		Expect(activateErr).To(MatchError(ErrResetInProgress))
		Expect(nestedErr).To(MatchError(ErrResetInProgress))
		Expect(worker.Terminated()).To(BeTrue())
		Expect(other.Idle()).To(BeTrue())
		Expect(s.CurrentTime()).To(Equal(VTimeInSec(0)))
		Expect(s.Processes()).To(BeEmpty())
		Expect(resets).To(Equal([]*Process{nil}))

		_, err := s.Current()
		Expect(err).To(MatchError(ErrCurrentNotSet))

		Expect(other.ActivateDelay(1, false)).To(Succeed())
		Expect(s.Processes()).To(ConsistOf(other))
		Expect(s.Run()).To(Succeed())

		Expect(trace.records).To(Equal([]string{"other@1"}))
	})
})
