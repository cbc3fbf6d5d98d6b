package workqueue

import (
	"context"
	"errors"
)

// Named queues. Workers always drain QueueHigh before the others.
const (
	QueueHigh      = "high"
	QueueDefault   = "default"
	QueueScheduled = "scheduled"
)

var Queues = []string{QueueHigh, QueueDefault, QueueScheduled}

// Task is a unit of background work.
type Task interface {
	// ID identifies this task instance in logs, e.g. a job uuid.
	ID() string

	// Name is the kind of task, used as a metrics label.
	Name() string

	Execute(ctx context.Context) error
}

// FailureHandler is implemented by tasks that must react once they are given up on.
type FailureHandler interface {
	OnFailure(ctx context.Context, err error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc struct {
	TaskID   string
	TaskName string
	Fn       func(ctx context.Context) error
}

func (t TaskFunc) ID() string                        { return t.TaskID }
func (t TaskFunc) Name() string                      { return t.TaskName }
func (t TaskFunc) Execute(ctx context.Context) error { return t.Fn(ctx) }
