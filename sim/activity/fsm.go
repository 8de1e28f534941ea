package activity

import "fmt"

// State is a stage in the activity lifecycle.
type State int

const (
	StateInit State = iota
	StateInitialised
	StateResourcesSeized
	StateRunning
	StateCompleted
	StateStopped
	StateEnded
)

var stateNames = [...]string{
	StateInit:            "init",
	StateInitialised:     "initialised",
	StateResourcesSeized: "resources_seized",
	StateRunning:         "running",
	StateCompleted:       "completed",
	StateStopped:         "stopped",
	StateEnded:           "ended",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// States lists every activity state.
func States() []State {
	return []State{StateInit, StateInitialised, StateResourcesSeized, StateRunning, StateCompleted, StateStopped, StateEnded}
}

// Command is a message sent by the owning entity to the activity.
type Command int

const (
	CmdInitialise Command = iota
	CmdSeizeResources
	CmdStart
	CmdReleaseResources
	CmdEnd
)

var commandNames = [...]string{
	CmdInitialise:       "initialise",
	CmdSeizeResources:   "seize_resources",
	CmdStart:            "start",
	CmdReleaseResources: "release_resources",
	CmdEnd:              "end",
}

func (c Command) String() string {
	if c >= 0 && int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Commands lists every command.
func Commands() []Command {
	return []Command{CmdInitialise, CmdSeizeResources, CmdStart, CmdReleaseResources, CmdEnd}
}

// Reply is the message an activity posts to its owner after a transition.
type Reply int

const (
	ReplyInitialised Reply = iota
	ReplyResourcesSeized
	ReplyCompleted
	ReplyResourcesReleased
	ReplyEnded
)

var replyNames = [...]string{
	ReplyInitialised:       "initialised",
	ReplyResourcesSeized:   "resources_seized",
	ReplyCompleted:         "completed",
	ReplyResourcesReleased: "resources_released",
	ReplyEnded:             "ended",
}

func (r Reply) String() string {
	if r >= 0 && int(r) < len(replyNames) {
		return replyNames[r]
	}
	return fmt.Sprintf("Reply(%d)", int(r))
}

// Step names the hook sequence run by a transition.
type Step int

const (
	StepInitialise Step = iota
	StepSeize
	StepSeizeAndRun
	StepRun
	StepRelease
	StepReleaseAndEnd
	StepEnd
)

var stepNames = [...]string{
	StepInitialise:    "initialise",
	StepSeize:         "seize_resources",
	StepSeizeAndRun:   "seize_resources_and_run",
	StepRun:           "do_activity",
	StepRelease:       "release_resources",
	StepReleaseAndEnd: "release_resources_and_end",
	StepEnd:           "end",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// runs reports whether the step executes DoActivity.
func (s Step) runs() bool { return s == StepRun || s == StepSeizeAndRun }

// Transition is one row of the activity state table.
type Transition struct {
	Step  Step
	Next  State
	Reply Reply
}

// Next looks up the transition for cmd received in state s.
// Any pair not in the table is a *ProtocolError.
//
//	init             + initialise        -> initialised      (initialised)
//	initialised      + seize_resources   -> resources_seized (resources_seized)
//	initialised      + start             -> completed        (completed)
//	resources_seized + start             -> completed        (completed)
//	completed        + release_resources -> stopped          (resources_released)
//	completed        + end               -> ended            (ended)
//	stopped          + end               -> ended            (ended)
func Next(s State, cmd Command) (Transition, error) {
	switch s {
	case StateInit:
		switch cmd {
		case CmdInitialise:
			return Transition{StepInitialise, StateInitialised, ReplyInitialised}, nil
		}
	case StateInitialised:
		switch cmd {
		case CmdSeizeResources:
			return Transition{StepSeize, StateResourcesSeized, ReplyResourcesSeized}, nil
		case CmdStart:
			return Transition{StepSeizeAndRun, StateCompleted, ReplyCompleted}, nil
		}
	case StateResourcesSeized:
		switch cmd {
		case CmdStart:
			return Transition{StepRun, StateCompleted, ReplyCompleted}, nil
		}
	case StateCompleted:
		switch cmd {
		case CmdReleaseResources:
			return Transition{StepRelease, StateStopped, ReplyResourcesReleased}, nil
		case CmdEnd:
			return Transition{StepReleaseAndEnd, StateEnded, ReplyEnded}, nil
		}
	case StateStopped:
		switch cmd {
		case CmdEnd:
			return Transition{StepEnd, StateEnded, ReplyEnded}, nil
		}
	}
	return Transition{}, &ProtocolError{State: s, Command: cmd}
}

// ProtocolError reports a command that is not valid in the activity's current
// state. It signals a driver bug and is never retried.
type ProtocolError struct {
	Activity string
	State    State
	Command  Command
}

func (e *ProtocolError) Error() string {
	if e.Activity == "" {
		return fmt.Sprintf("activity protocol violation: state=%s command=%s", e.State, e.Command)
	}
	return fmt.Sprintf("activity %s protocol violation: state=%s command=%s", e.Activity, e.State, e.Command)
}
