package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/dyluth/parliament/pkg/parliament"
)

// Pod status values.
const (
	PodPending   = "pending"
	PodRunning   = "running"
	PodSucceeded = "succeeded"
	PodFailed    = "failed"
)

// Pod is one placement of a task on a node.
type Pod struct {
	Name   string `json:"name"`
	Node   string `json:"node"`
	Status string `json:"status"`
}

// GetAttr implements parliament.AttrGetter.
func (p *Pod) GetAttr(name string) (any, error) {
	switch name {
	case "name":
		return p.Name, nil
	case "node":
		return p.Node, nil
	case "status":
		return p.Status, nil
	default:
		return nil, fmt.Errorf("%w: Pod has no attribute %q", parliament.ErrNavigation, name)
	}
}

// SetAttr implements parliament.AttrSetter.
func (p *Pod) SetAttr(name string, raw json.RawMessage) error {
	var target *string
	switch name {
	case "name":
		target = &p.Name
	case "node":
		target = &p.Node
	case "status":
		target = &p.Status
	default:
		return fmt.Errorf("%w: Pod has no attribute %q", parliament.ErrNavigation, name)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("invalid value for Pod.%s: %w", name, err)
	}
	return nil
}

// Pods is the ordered pod list of a task. Integer indices address pods by
// position, text indices by pod name.
type Pods []*Pod

func (ps Pods) find(key parliament.IndexKey) (int, error) {
	if key.IsText {
		for i, p := range ps {
			if p != nil && p.Name == key.Text {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: no pod named %q", parliament.ErrNavigation, key.Text)
	}
	if key.Pos < 0 || key.Pos >= len(ps) {
		return -1, fmt.Errorf("%w: pod index %d out of range [0,%d)", parliament.ErrNavigation, key.Pos, len(ps))
	}
	return key.Pos, nil
}

// ResolveIndex implements parliament.IndexResolver: a pod name resolves to
// the pod's position.
func (ps Pods) ResolveIndex(key parliament.IndexKey) (parliament.IndexKey, error) {
	i, err := ps.find(key)
	if err != nil {
		return parliament.IndexKey{}, err
	}
	return parliament.IntIndex(i), nil
}

// GetIndex implements parliament.IndexGetter.
func (ps Pods) GetIndex(key parliament.IndexKey) (any, error) {
	i, err := ps.find(key)
	if err != nil {
		return nil, err
	}
	return ps[i], nil
}

// SetIndex implements parliament.IndexSetter by replacing the whole pod.
func (ps Pods) SetIndex(key parliament.IndexKey, raw json.RawMessage) error {
	i, err := ps.find(key)
	if err != nil {
		return err
	}
	var p Pod
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("invalid pod: %w", err)
	}
	ps[i] = &p
	return nil
}
