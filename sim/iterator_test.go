package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProcessIterator", func() {
	var (
		s       *Scheduler
		a, b, c *Process
	)

	BeforeEach(func() {
		s = NewScheduler()
		a = NewProcess(s, "a", BodyFunc(func(*Process) error { return nil }))
		b = NewProcess(s, "b", BodyFunc(func(*Process) error { return nil }))
		c = NewProcess(s, "c", BodyFunc(func(*Process) error { return nil }))
	})

	It("should walk the live processes in registration order", func() {
		it := s.ProcessIterator()

		Expect(it.Next()).To(BeIdenticalTo(a))
		Expect(it.Next()).To(BeIdenticalTo(b))
		Expect(it.HasNext()).To(BeTrue())
		Expect(it.Next()).To(BeIdenticalTo(c))
		Expect(it.HasNext()).To(BeFalse())
		Expect(it.Next()).To(BeNil())
	})

	It("should not be disturbed by terminations", func() {
		it := s.ProcessIterator()

		Expect(it.Next()).To(BeIdenticalTo(a))
		b.Terminate()

		Expect(it.Next()).To(BeIdenticalTo(b))
		Expect(it.Next()).To(BeIdenticalTo(c))
		Expect(procNames(s.Processes())).To(Equal([]string{"a", "c"}))
	})

	It("should walk the ready queue in dispatch order", func() {
		Expect(a.ActivateAt(3, false)).To(Succeed())
		Expect(c.ActivateAt(1, false)).To(Succeed())

		it := s.QueueIterator()

		Expect(it.Next()).To(BeIdenticalTo(c))
		Expect(it.Next()).To(BeIdenticalTo(a))
		Expect(it.Next()).To(BeNil())
	})

	It("should walk an empty sequence", func() {
		it := NewProcessIterator(nil)

		Expect(it.HasNext()).To(BeFalse())
		Expect(it.Next()).To(BeNil())
	})
})

var _ = Describe("processRegistry", func() {
	It("should keep the registration order on removal", func() {
		s := NewScheduler()
		r := newProcessRegistry()
		procs := make([]*Process, 4)
		for i := range procs {
			procs[i] = &Process{sched: s, name: string(rune('a' + i))}
			r.add(procs[i])
		}

		r.add(procs[0])
		Expect(r.len()).To(Equal(4))

		Expect(r.remove(procs[1])).To(BeTrue())
		Expect(r.remove(procs[1])).To(BeFalse())
		Expect(r.contains(procs[1])).To(BeFalse())

		Expect(r.remove(procs[2])).To(BeTrue())
		Expect(procNames(r.snapshot())).To(Equal([]string{"a", "d"}))
		Expect(r.contains(procs[3])).To(BeTrue())
	})
})
