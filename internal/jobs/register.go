package jobs

import "github.com/dyluth/parliament/pkg/parliament"

// TriggerTask is the CREATE_ARCHIVE trigger that builds a Task.
const TriggerTask = "task"

// RegisterHooks installs the job hooks. Pod fields are written by both the
// scheduler and the node agents, so Task.pods is ordered by the system of
// record; every other attribute uses the plain hook.
func RegisterHooks(reg *parliament.Registry, recorder parliament.Recorder) {
	reg.Register(ClassTask, "pods", parliament.NewPathHook(recorder))
}

// RegisterTriggers installs the job archive constructors.
func RegisterTriggers(t *parliament.Triggers) {
	t.Register(TriggerTask, DecodeTask)
}
