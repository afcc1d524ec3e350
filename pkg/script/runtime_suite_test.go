package script_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/script"
	"yqhp/hookrunner/pkg/types"
)

var _ = Describe("Runtime", func() {
	var (
		rt  *script.Runtime
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		rt, err = script.New(script.WithLogger(zap.NewNop()))
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		rt.Close()
	})

	runTree := func(tree *lifecycle.Tree) *types.FileReport {
		runner := lifecycle.NewRunner(lifecycle.WithLogger(zap.NewNop()), lifecycle.WithTimeout(time.Second))
		return runner.Run(ctx, tree)
	}

	Describe("collection", func() {
		It("builds the tree without running anything", func() {
			err := rt.Load(ctx, "cities.test.js", `
beforeAll(() => console.log('setup'));
describe('matching cities to foods', () => {
  beforeEach(() => console.log('food db'));
  test('Vienna <3 veal', () => {});
  test('San Juan <3 plantains', () => {});
});
`)
			Expect(err).NotTo(HaveOccurred())
			Expect(rt.ConsoleLogs()).To(BeEmpty())

			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())
			Expect(tree.NumTests()).To(Equal(2))
			Expect(tree.Source()).To(Equal("cities.test.js"))
			Expect(tree.Root().Hooks(types.HookBeforeAll)).To(HaveLen(1))

			group := tree.Root().Children()[0].(*lifecycle.Group)
			Expect(group.Name()).To(Equal("matching cities to foods"))
			Expect(group.Hooks(types.HookBeforeEach)).To(HaveLen(1))
		})

		It("refuses a second file", func() {
			Expect(rt.Load(ctx, "a.test.js", `test('a', () => {})`)).To(Succeed())
			Expect(rt.Load(ctx, "b.test.js", `test('b', () => {})`)).NotTo(Succeed())
		})

		It("fails to build before loading", func() {
			_, err := rt.Build()
			Expect(err).To(HaveOccurred())
		})

		It("stops a runaway file when the context is cancelled", func() {
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			err := rt.Load(cctx, "spin.test.js", `while (true) {}`)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})

	Describe("execution", func() {
		It("reruns a built tree with the same order", func() {
			Expect(rt.Load(ctx, "order.test.js", `
beforeEach(() => console.log('connection setup'));
afterEach(() => console.log('connection teardown'));
test('test 1', () => console.log('test 1'));
`)).To(Succeed())
			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())

			first := runTree(tree)
			second := runTree(tree)

			Expect(first.Success()).To(BeTrue())
			Expect(second.Success()).To(BeTrue())
			Expect(rt.ConsoleLogs()).To(Equal([]string{
				"[LOG] connection setup",
				"[LOG] test 1",
				"[LOG] connection teardown",
				"[LOG] connection setup",
				"[LOG] test 1",
				"[LOG] connection teardown",
			}))
		})

		It("keeps state shared through closures between tests", func() {
			Expect(rt.Load(ctx, "shared.test.js", `
let count = 0;
beforeAll(() => { count = 10; });
test('first', () => { count++; });
test('second', () => { if (count !== 11) throw new Error('count is ' + count); });
`)).To(Succeed())
			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())

			report := runTree(tree)
			Expect(report.Totals.Passed).To(Equal(2))
		})

		It("runs timers in order of their deadline", func() {
			Expect(rt.Load(ctx, "timers.test.js", `
test('timers', (done) => {
  setTimeout(() => console.log('late'), 20);
  const cancelled = setTimeout(() => console.log('never'), 5);
  clearTimeout(cancelled);
  setTimeout(() => console.log('early'), 1);
  setTimeout(done, 40);
});
`)).To(Succeed())
			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())

			report := runTree(tree)
			Expect(report.Totals.Passed).To(Equal(1))
			Expect(rt.ConsoleLogs()).To(Equal([]string{"[LOG] early", "[LOG] late"}))
		})

		It("fails the test whose timer throws", func() {
			Expect(rt.Load(ctx, "timer-error.test.js", `
test('timer throws', (done) => {
  setTimeout(() => { throw new Error('boom'); }, 1);
  setTimeout(done, 20);
});
test('unaffected', (done) => setTimeout(done, 1));
`)).To(Succeed())
			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())

			report := runTree(tree)
			Expect(report.Verdicts).To(HaveLen(2))
			Expect(report.Verdicts[0].Status).To(Equal(types.TestStatusFailed))
			Expect(report.Verdicts[0].Error).To(Equal("boom"))
			Expect(report.Verdicts[1].Status).To(Equal(types.TestStatusPassed))
			Expect(rt.ConsoleLogs()).To(ContainElement(ContainSubstring("uncaught error in timer: boom")))
		})

		It("runs intervals until they are cleared", func() {
			Expect(rt.Load(ctx, "interval.test.js", `
test('ticks', (done) => {
  let ticks = 0;
  const id = setInterval(() => {
    ticks++;
    console.log('tick ' + ticks);
    if (ticks === 3) {
      clearInterval(id);
      setTimeout(done, 10);
    }
  }, 1);
});
`)).To(Succeed())
			tree, err := rt.Build()
			Expect(err).NotTo(HaveOccurred())

			report := runTree(tree)
			Expect(report.Totals.Passed).To(Equal(1))
			Expect(rt.ConsoleLogs()).To(Equal([]string{"[LOG] tick 1", "[LOG] tick 2", "[LOG] tick 3"}))
		})
	})
})
