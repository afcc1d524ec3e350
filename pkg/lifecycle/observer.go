package lifecycle

import "yqhp/hookrunner/pkg/types"

// Observer receives events while a tree runs. Calls happen on the runner goroutine.
type Observer interface {
	StepFinished(result *types.StepResult)
	TestFinished(verdict types.Verdict)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnStep func(result *types.StepResult)
	OnTest func(verdict types.Verdict)
}

func (o ObserverFuncs) StepFinished(result *types.StepResult) {
	if o.OnStep != nil {
		o.OnStep(result)
	}
}

func (o ObserverFuncs) TestFinished(verdict types.Verdict) {
	if o.OnTest != nil {
		o.OnTest(verdict)
	}
}

type observers []Observer

func (os observers) StepFinished(result *types.StepResult) {
	for _, o := range os {
		o.StepFinished(result)
	}
}

func (os observers) TestFinished(verdict types.Verdict) {
	for _, o := range os {
		o.TestFinished(verdict)
	}
}
