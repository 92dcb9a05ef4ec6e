package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var _ = Describe("DispatchLogger", func() {
	var (
		logger *logrus.Logger
		hook   *test.Hook
		s      *Scheduler
	)

	BeforeEach(func() {
		logger, hook = test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)
	})

	AfterEach(func() {
		s.Shutdown()
	})

	It("should log dispatches and terminations", func() {
		s = MakeBuilder().
			WithHook(NewDispatchLogger(logger).WithLevel(logrus.InfoLevel)).
			Started().
			Build()

		p := NewProcess(s, "p", BodyFunc(func(p *Process) error {
			return p.Hold(2)
		}))
		Expect(p.ActivateDelay(1, false)).To(Succeed())

		Expect(s.Run()).To(Succeed())

		entries := hook.AllEntries()
		Expect(entries).To(HaveLen(3))
		Expect(entries[0].Message).To(Equal("dispatch"))
		Expect(entries[0].Level).To(Equal(logrus.InfoLevel))
		Expect(entries[0].Data).To(HaveKeyWithValue("sim_time", 1.0))
		Expect(entries[0].Data).To(HaveKeyWithValue("process", "p"))
		Expect(entries[0].Data).NotTo(HaveKey("time"))
		Expect(entries[1].Data).To(HaveKeyWithValue("sim_time", 3.0))
		Expect(entries[2].Message).To(Equal("terminate"))
	})

	It("should ignore the other hook positions", func() {
		s = NewScheduler()
		l := NewDispatchLogger(logger)

		l.Func(HookCtx{Pos: HookPosActivate, Item: &Process{name: "p"}})
		l.Func(HookCtx{Pos: HookPosReset})

		Expect(hook.AllEntries()).To(BeEmpty())
	})

	It("should log the kernel clock apart from the timestamp", func() {
		s = MakeBuilder().WithLogger(logger).Started().Build()

		Expect(s.Reset()).To(Succeed())

		entries := hook.AllEntries()
		Expect(entries).NotTo(BeEmpty())
		Expect(entries[0].Message).To(Equal("simulation reset"))
		Expect(entries[0].Data).To(HaveKeyWithValue("sim_time", 0.0))
		Expect(entries[0].Data).NotTo(HaveKey("time"))
	})
})
