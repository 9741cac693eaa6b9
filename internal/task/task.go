// Package task enumerates the output streams of the model and the loss regimes built on them.
package task

import (
	"fmt"
	"strings"
)

// Task identifies one output stream, or all of them combined.
type Task int

const (
	// LogicalForm is the generated logical-form token stream.
	LogicalForm Task = iota
	// PredicatePointer selects a predicate per decoding step.
	PredicatePointer
	// TypePointer selects an entity type per decoding step.
	TypePointer
	// EntityPointer points at an entity mention in the input context.
	EntityPointer
	// MultiTask combines the four streams into one loss.
	MultiTask
)

// Streams lists the four decoded streams in their canonical order.
var Streams = []Task{LogicalForm, PredicatePointer, TypePointer, EntityPointer}

// String returns the config and results name of the task.
func (t Task) String() string {
	switch t {
	case LogicalForm:
		return "logical_form"
	case PredicatePointer:
		return "predicate_pointer"
	case TypePointer:
		return "type_pointer"
	case EntityPointer:
		return "entity_pointer"
	case MultiTask:
		return "multitask"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// IsStream reports whether the task is a single output stream.
func (t Task) IsStream() bool {
	return t >= LogicalForm && t <= EntityPointer
}

// Parse converts a task name into a Task.
func Parse(name string) (Task, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "logical_form":
		return LogicalForm, nil
	case "predicate_pointer":
		return PredicatePointer, nil
	case "type_pointer":
		return TypePointer, nil
	case "entity_pointer":
		return EntityPointer, nil
	case "multitask":
		return MultiTask, nil
	default:
		return 0, fmt.Errorf("unknown task %q", name)
	}
}

// ParseStreams parses a list of stream names, rejecting duplicates and MultiTask.
func ParseStreams(names []string) ([]Task, error) {
	seen := map[Task]struct{}{}
	out := make([]Task, 0, len(names))
	for _, name := range names {
		parsed, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if !parsed.IsStream() {
			return nil, fmt.Errorf("%s is not a single stream", parsed)
		}
		if _, ok := seen[parsed]; ok {
			return nil, fmt.Errorf("duplicate task %q", parsed)
		}
		seen[parsed] = struct{}{}
		out = append(out, parsed)
	}
	return out, nil
}

// Order returns the position of a stream in Streams, or -1.
func Order(t Task) int {
	for i, stream := range Streams {
		if stream == t {
			return i
		}
	}
	return -1
}
