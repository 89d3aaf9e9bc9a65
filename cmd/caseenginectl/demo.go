package main

import (
	"context"

	"github.com/caseflow-io/caseengine/engine"
	"github.com/caseflow-io/caseengine/engine/registry"
)

// demoDefinition is a three-step smoke-test workflow (start -> echo ->
// end) bundled with caseenginectl so an operator can verify a Store and
// Config are wired correctly without writing a definition first.
func demoDefinition() *engine.WorkflowDefinition {
	return &engine.WorkflowDefinition{
		Name:    "smoketest",
		Version: "v1",
		Start:   "start",
		Steps: map[string]engine.Step{
			"start": {Name: "start", Kind: engine.StepStart, Next: "echo"},
			"echo":  {Name: "echo", Kind: engine.StepTask, Capability: "echo", Next: "end"},
			"end":   {Name: "end", Kind: engine.StepEnd},
		},
	}
}

// demoRegistry resolves demoDefinition's single "echo" capability to a task
// that always proceeds, recording the path's variables back unchanged.
func demoRegistry() engine.CapabilityRegistry {
	reg := registry.NewMapRegistry()
	reg.AddTask("echo", engine.TaskFunc(func(_ context.Context, _ engine.StepContext) engine.Response {
		return engine.Response{Kind: engine.ResponseOKProceed}
	}))
	return reg
}
