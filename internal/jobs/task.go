// Package jobs defines the job-manager objects mirrored through the
// parliament: tasks and the pods they run on.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/parliament/pkg/parliament"
)

// ClassTask is the archive class name of Task.
const ClassTask = "Task"

// Task status values.
const (
	TaskQueued    = "queued"
	TaskRunning   = "running"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
	TaskCancelled = "cancelled"
)

// Task is a GPU job: a named unit of work scheduled onto one or more pods.
type Task struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	GPUs   int    `json:"gpus"`
	Pods   Pods   `json:"pods"`
}

// ClassName implements parliament.Object.
func (t *Task) ClassName() string { return ClassTask }

// ValidateAttr implements parliament.Object; tasks are keyed by id.
func (t *Task) ValidateAttr() string { return "id" }

// GetAttr implements parliament.AttrGetter.
func (t *Task) GetAttr(name string) (any, error) {
	switch name {
	case "id":
		return t.ID, nil
	case "name":
		return t.Name, nil
	case "status":
		return t.Status, nil
	case "gpus":
		return t.GPUs, nil
	case "pods":
		return t.Pods, nil
	default:
		return nil, fmt.Errorf("%w: Task has no attribute %q", parliament.ErrNavigation, name)
	}
}

// SetAttr implements parliament.AttrSetter. The id is immutable because it
// is part of the archive key.
func (t *Task) SetAttr(name string, raw json.RawMessage) error {
	var target any
	switch name {
	case "name":
		target = &t.Name
	case "status":
		target = &t.Status
	case "gpus":
		target = &t.GPUs
	case "pods":
		target = &t.Pods
	case "id":
		return fmt.Errorf("task id is immutable: it is part of the archive key")
	default:
		return fmt.Errorf("%w: Task has no attribute %q", parliament.ErrNavigation, name)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid value for Task.%s: %w", name, err)
	}
	return nil
}

// DecodeTask builds a Task from its JSON encoding. It is the constructor
// behind the "task" archive trigger.
func DecodeTask(raw json.RawMessage) (parliament.Object, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	if t.ID <= 0 {
		return nil, fmt.Errorf("task id must be positive, got %d", t.ID)
	}
	return &t, nil
}
