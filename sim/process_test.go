package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

func procNames(procs []*Process) []string {
	out := make([]string, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Name())
	}

	return out
}

var _ = Describe("Process", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Scheduler
		a, b, c  *Process
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = NewScheduler()
		a = NewProcess(s, "a", NewMockBody(mockCtrl))
		b = NewProcess(s, "b", NewMockBody(mockCtrl))
		c = NewProcess(s, "c", NewMockBody(mockCtrl))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start idle and registered", func() {
		Expect(a.Idle()).To(BeTrue())
		Expect(a.Passivated()).To(BeTrue())
		Expect(a.Terminated()).To(BeFalse())
		Expect(a.EvTime()).To(Equal(Never))
		Expect(a.ID()).To(Equal("1"))
		Expect(a.Scheduler()).To(BeIdenticalTo(s))
		Expect(procNames(s.Processes())).To(Equal([]string{"a", "b", "c"}))
	})

	It("should be scheduled by ActivateAt", func() {
		Expect(a.ActivateAt(3, false)).To(Succeed())

		Expect(a.Idle()).To(BeFalse())
		Expect(a.Passivated()).To(BeFalse())
		Expect(a.EvTime()).To(Equal(VTimeInSec(3)))
		Expect(s.QueueSnapshot()).To(ConsistOf(a))
	})

	It("should reject a time in the past", func() {
		err := a.ActivateAt(-1, false)

		Expect(err).To(MatchError(ErrInvalidTime))
		Expect(IsSimulationError(err)).To(BeTrue())
		Expect(a.Idle()).To(BeTrue())
	})

	It("should reject a negative delay", func() {
		err := a.ActivateDelay(-0.5, true)

		Expect(err).To(MatchError(ErrInvalidDelay))
		Expect(a.Idle()).To(BeTrue())
	})

	It("should ignore activating a scheduled process", func() {
		Expect(a.ActivateAt(3, false)).To(Succeed())
		Expect(a.ActivateAt(1, false)).To(Succeed())
		Expect(a.Activate()).To(Succeed())

		Expect(a.EvTime()).To(Equal(VTimeInSec(3)))
		Expect(s.QueueSnapshot()).To(HaveLen(1))
	})

	It("should ignore activating a terminated process", func() {
		a.Terminate()

		Expect(a.ActivateDelay(1, false)).To(Succeed())
		Expect(a.Idle()).To(BeTrue())
		Expect(s.QueueSnapshot()).To(BeEmpty())
	})

	It("should put Activate in front of the current time band", func() {
		Expect(a.ActivateAt(0, false)).To(Succeed())
		Expect(b.Activate()).To(Succeed())

		Expect(procNames(s.QueueSnapshot())).To(Equal([]string{"b", "a"}))
	})

	Context("when activating next to an anchor", func() {
		It("should take the time of the anchor", func() {
			Expect(a.ActivateAt(2, false)).To(Succeed())
			Expect(b.ActivateBefore(a)).To(Succeed())
			Expect(c.ActivateAfter(a)).To(Succeed())

			Expect(procNames(s.QueueSnapshot())).
				To(Equal([]string{"b", "a", "c"}))
			Expect(b.EvTime()).To(Equal(VTimeInSec(2)))
			Expect(c.EvTime()).To(Equal(VTimeInSec(2)))
		})

		It("should fail if the anchor is not scheduled", func() {
			Expect(b.ActivateBefore(a)).To(MatchError(ErrAnchorNotScheduled))
			Expect(b.ActivateAfter(nil)).To(MatchError(ErrAnchorNotScheduled))
			Expect(b.Idle()).To(BeTrue())
		})

		It("should fail if the anchor is the process itself", func() {
			Expect(a.ActivateBefore(a)).To(MatchError(ErrSelfAnchor))
			Expect(a.ActivateAfter(a)).To(MatchError(ErrSelfAnchor))
		})
	})

	Context("when reactivating", func() {
		It("should move a scheduled process", func() {
			Expect(a.ActivateAt(2, false)).To(Succeed())
			Expect(b.ActivateAt(3, false)).To(Succeed())

			Expect(a.ReactivateAt(5, false)).To(Succeed())

			Expect(procNames(s.QueueSnapshot())).To(Equal([]string{"b", "a"}))
			Expect(a.EvTime()).To(Equal(VTimeInSec(5)))
		})

		It("should schedule an idle process", func() {
			Expect(a.ReactivateDelay(4, false)).To(Succeed())
			Expect(a.EvTime()).To(Equal(VTimeInSec(4)))
		})

		It("should move next to an anchor", func() {
			Expect(a.ActivateAt(1, false)).To(Succeed())
			Expect(b.ActivateAt(2, false)).To(Succeed())
			Expect(c.ActivateAt(3, false)).To(Succeed())

			Expect(c.ReactivateBefore(a)).To(Succeed())
			Expect(procNames(s.QueueSnapshot())).
				To(Equal([]string{"c", "a", "b"}))

			Expect(c.ReactivateAfter(b)).To(Succeed())
			Expect(procNames(s.QueueSnapshot())).
				To(Equal([]string{"a", "b", "c"}))
			Expect(c.EvTime()).To(Equal(VTimeInSec(2)))
		})

		It("should bring a process to the front with Reactivate", func() {
			Expect(a.ActivateAt(0, false)).To(Succeed())
			Expect(b.ActivateAt(4, false)).To(Succeed())

			Expect(b.Reactivate()).To(Succeed())
			Expect(procNames(s.QueueSnapshot())).To(Equal([]string{"b", "a"}))
		})
	})

	Context("when cancelling", func() {
		It("should unschedule a scheduled process", func() {
			Expect(a.ActivateAt(3, false)).To(Succeed())

			Expect(a.Cancel()).To(Succeed())

			Expect(a.Idle()).To(BeTrue())
			Expect(a.Passivated()).To(BeTrue())
			Expect(a.EvTime()).To(Equal(Never))
			Expect(s.QueueSnapshot()).To(BeEmpty())
		})

		It("should do nothing on an idle process", func() {
			Expect(a.Cancel()).To(Succeed())
			Expect(a.Passivate()).To(Succeed())
			Expect(a.Idle()).To(BeTrue())
		})
	})

	Context("when moving the appointment", func() {
		It("should fail on an idle process", func() {
			Expect(a.SetEvTime(3)).To(MatchError(ErrIdleProcess))
		})

		It("should fail on a time in the past", func() {
			Expect(a.ActivateAt(3, false)).To(Succeed())
			Expect(a.SetEvTime(-2)).To(MatchError(ErrInvalidTime))
			Expect(a.EvTime()).To(Equal(VTimeInSec(3)))
		})

		It("should keep the queue sorted", func() {
			Expect(a.ActivateAt(1, false)).To(Succeed())
			Expect(b.ActivateAt(2, false)).To(Succeed())

			Expect(a.SetEvTime(2)).To(Succeed())

			Expect(procNames(s.QueueSnapshot())).To(Equal([]string{"b", "a"}))
		})
	})

	Context("when asking for the next process", func() {
		It("should fail on an idle process", func() {
			_, err := a.NextEv()
			Expect(err).To(MatchError(ErrNotScheduled))
		})

		It("should return the follower", func() {
			Expect(a.ActivateAt(1, false)).To(Succeed())
			Expect(b.ActivateAt(2, false)).To(Succeed())

			next, err := a.NextEv()
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeIdenticalTo(b))

			next, err = b.NextEv()
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeNil())
		})
	})

	It("should refuse a hold from the driver before any dispatch", func() {
		Expect(a.Hold(1)).To(MatchError(ErrInactiveHold))
		Expect(a.Idle()).To(BeTrue())
		Expect(s.QueueSnapshot()).To(BeEmpty())
	})

	It("should refuse to hold a process that is not running", func() {
		Expect(a.ActivateAt(1, false)).To(Succeed())

		Expect(a.Hold(2)).To(MatchError(ErrInactiveHold))
		Expect(a.EvTime()).To(Equal(VTimeInSec(1)))
	})

	It("should terminate", func() {
		Expect(a.ActivateAt(1, false)).To(Succeed())

		a.Terminate()
		a.Terminate()

		Expect(a.Terminated()).To(BeTrue())
		Expect(a.Idle()).To(BeTrue())
		Expect(s.QueueSnapshot()).To(BeEmpty())
		Expect(procNames(s.Processes())).To(Equal([]string{"b", "c"}))
	})

	It("should be made idle by Unschedule", func() {
		Expect(a.ActivateAt(1, false)).To(Succeed())
		Expect(b.ActivateAt(2, false)).To(Succeed())

		s.Unschedule(a)
		s.Unschedule(c)

		Expect(a.Idle()).To(BeTrue())
		Expect(a.Passivated()).To(BeTrue())
		Expect(a.EvTime()).To(Equal(Never))
		Expect(c.Idle()).To(BeTrue())
		Expect(s.QueueSnapshot()).To(Equal([]*Process{b}))
	})
})
