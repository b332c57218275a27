package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownAgent is returned when no task is registered under a name.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrInvalidPayload marks payloads a task cannot accept.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Task is a unit of work the worker runs on behalf of the host.
type Task interface {
	Name() string
	Run(ctx context.Context, payload map[string]any) (any, error)
}

// Registry maps agent names to tasks.
type Registry struct {
	tasks map[string]Task
}

// NewRegistry registers the given tasks. Duplicate names are an error.
func NewRegistry(tasks ...Task) (*Registry, error) {
	r := &Registry{tasks: make(map[string]Task, len(tasks))}
	for _, task := range tasks {
		name := task.Name()
		if name == "" {
			return nil, errors.New("task name is empty")
		}
		if _, ok := r.tasks[name]; ok {
			return nil, fmt.Errorf("task %q registered twice", name)
		}
		r.tasks[name] = task
	}
	return r, nil
}

// Lookup returns the task registered as name.
func (r *Registry) Lookup(name string) (Task, error) {
	task, ok := r.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, name)
	}
	return task, nil
}

// Names returns the registered agent names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
