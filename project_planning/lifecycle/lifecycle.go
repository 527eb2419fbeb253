package lifecycle

import (
	"errors"
	"fmt"
)

// State is the collaboration state of a help request.
type State string

const (
	Open       State = "open"
	InProgress State = "in_progress"
	Done       State = "done"
)

func (s State) Valid() bool {
	return s == Open || s == InProgress || s == Done
}

type Event string

const (
	Propose  Event = "propose"
	Accept   Event = "accept"
	Reject   Event = "reject"
	Complete Event = "complete"
)

var (
	ErrAlreadyDone       = errors.New("request is already complete")
	ErrAlreadyInProgress = errors.New("request already has a collaboration in progress")
	ErrUnknownState      = errors.New("unknown request state")
	ErrUnknownEvent      = errors.New("unknown lifecycle event")
)

var transitions = map[State]map[Event]State{
	Open: {
		Propose:  InProgress,
		Accept:   InProgress,
		Reject:   Open,
		Complete: Done,
	},
	InProgress: {
		Accept:   InProgress,
		Reject:   Open,
		Complete: Done,
	},
	Done: {},
}

// Transition returns the state reached by applying event to from. Done is
// terminal, every event applied to it fails with ErrAlreadyDone.
func Transition(from State, event Event) (State, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, from)
	}

	if !event.valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	to, ok := edges[event]
	if !ok {
		if from == Done {
			return "", ErrAlreadyDone
		}
		return "", ErrAlreadyInProgress
	}

	return to, nil
}

// SourceStates lists the states from which event is allowed, in a stable
// order. It is used to build conditional updates at the storage layer.
func SourceStates(event Event) []State {
	sources := make([]State, 0, 2)
	for _, s := range []State{Open, InProgress, Done} {
		if _, ok := transitions[s][event]; ok {
			sources = append(sources, s)
		}
	}
	return sources
}

func (e Event) valid() bool {
	return e == Propose || e == Accept || e == Reject || e == Complete
}

// ProjectStatus is the execution status of a project.
type ProjectStatus string

const (
	Pending   ProjectStatus = "pending"
	Executing ProjectStatus = "executing"
	Completed ProjectStatus = "completed"
)

var ErrInvalidProjectStatus = errors.New("invalid project status transition")

// AdvanceProject checks that a project can move from one status to the next.
// Projects only move forward: pending to executing to completed.
func AdvanceProject(from, to ProjectStatus) error {
	switch {
	case from == Pending && to == Executing:
		return nil
	case from == Executing && to == Completed:
		return nil
	}
	return fmt.Errorf("%w: cannot move project from %v to %v", ErrInvalidProjectStatus, from, to)
}
