package person

import (
	"fmt"

	"github.com/healthdes/healthdes/sim/activity"
)

// State is a stage of the person state machine.
type State int

const (
	StateInit State = iota
	StateInitialisedA
	StateResourcesSeizedA
	StateStartedA
	StateBranchIfEnd
	StateInitialisedB
	StateResourcesSeizedB
	StateResourcesReleasedA
	StateStopATransferToB
	StateEnd
)

var stateNames = [...]string{
	StateInit:               "init",
	StateInitialisedA:       "initialised_a",
	StateResourcesSeizedA:   "resources_seized_a",
	StateStartedA:           "started_a",
	StateBranchIfEnd:        "branch_if_end",
	StateInitialisedB:       "initialised_b",
	StateResourcesSeizedB:   "resources_seized_b",
	StateResourcesReleasedA: "resources_released_a",
	StateStopATransferToB:   "stop_a_transfer_to_b",
	StateEnd:                "end",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// States lists every person state.
func States() []State {
	out := make([]State, len(stateNames))
	for i := range out {
		out[i] = State(i)
	}
	return out
}

// Slot names one of the two activity slots.
type Slot int

const (
	SlotNone Slot = iota
	SlotA
	SlotB
)

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "a"
	case SlotB:
		return "b"
	}
	return "none"
}

// Message is the input of the person state machine: an activity reply tagged
// with the slot it came from, or a message produced by a local action.
type Message struct {
	Reply activity.Reply
	Slot  Slot
	Local Local
}

// Local messages are produced by the person itself.
type Local int

const (
	LocalNone Local = iota
	LocalInitialiseA
	LocalInitialiseB
	LocalBranchToEnd
)

var (
	MsgInitialiseA = Message{Local: LocalInitialiseA}
	MsgInitialiseB = Message{Local: LocalInitialiseB}
	MsgBranchToEnd = Message{Local: LocalBranchToEnd}
)

// Tag returns the message for reply r received from slot s.
func Tag(r activity.Reply, s Slot) Message {
	return Message{Reply: r, Slot: s}
}

func (m Message) String() string {
	switch m.Local {
	case LocalInitialiseA:
		return "initialise_a"
	case LocalInitialiseB:
		return "initialise_b"
	case LocalBranchToEnd:
		return "branch_to_end"
	}
	return m.Reply.String() + "_" + m.Slot.String()
}

// Messages lists every message the state machine can receive.
func Messages() []Message {
	out := []Message{MsgInitialiseA, MsgInitialiseB, MsgBranchToEnd}
	for _, s := range []Slot{SlotA, SlotB} {
		for _, r := range []activity.Reply{
			activity.ReplyInitialised,
			activity.ReplyResourcesSeized,
			activity.ReplyCompleted,
			activity.ReplyResourcesReleased,
			activity.ReplyEnded,
		} {
			out = append(out, Tag(r, s))
		}
	}
	return out
}

// Action is the local action run on a transition.
type Action int

const (
	ActionNone Action = iota
	ActionRunA
	ActionRunB
	ActionNextNode
	ActionTransferBToA
)

func (a Action) String() string {
	switch a {
	case ActionRunA:
		return "run_a"
	case ActionRunB:
		return "run_b"
	case ActionNextNode:
		return "get_next_node"
	case ActionTransferBToA:
		return "b_to_a"
	}
	return "nop"
}

// Transition is one row of the person state table. Send is only meaningful
// when To is not SlotNone.
type Transition struct {
	Action Action
	To     Slot
	Send   activity.Command
	Next   State
}

var (
	msgInitialisedA      = Tag(activity.ReplyInitialised, SlotA)
	msgResourcesSeizedA  = Tag(activity.ReplyResourcesSeized, SlotA)
	msgCompletedA        = Tag(activity.ReplyCompleted, SlotA)
	msgResourcesReleaseA = Tag(activity.ReplyResourcesReleased, SlotA)
	msgEndedA            = Tag(activity.ReplyEnded, SlotA)
	msgInitialisedB      = Tag(activity.ReplyInitialised, SlotB)
	msgResourcesSeizedB  = Tag(activity.ReplyResourcesSeized, SlotB)
)

// Next looks up the transition for msg received in state s.
//
//	init                 + initialise_a         run_a          a<-initialise         initialised_a
//	initialised_a        + initialised_a                       a<-seize_resources    resources_seized_a
//	resources_seized_a   + resources_seized_a                  a<-start              started_a
//	started_a            + completed_a          get_next_node                        branch_if_end
//	branch_if_end        + initialise_b         run_b          b<-initialise         initialised_b
//	branch_if_end        + branch_to_end                       a<-end                end
//	initialised_b        + initialised_b                       b<-seize_resources    resources_seized_b
//	resources_seized_b   + resources_seized_b                  a<-release_resources  resources_released_a
//	resources_released_a + resources_released_a                a<-end                stop_a_transfer_to_b
//	stop_a_transfer_to_b + ended_a              b_to_a                               resources_seized_a
func Next(s State, msg Message) (Transition, error) {
	switch s {
	case StateInit:
		if msg == MsgInitialiseA {
			return Transition{ActionRunA, SlotA, activity.CmdInitialise, StateInitialisedA}, nil
		}
	case StateInitialisedA:
		if msg == msgInitialisedA {
			return Transition{ActionNone, SlotA, activity.CmdSeizeResources, StateResourcesSeizedA}, nil
		}
	case StateResourcesSeizedA:
		if msg == msgResourcesSeizedA {
			return Transition{ActionNone, SlotA, activity.CmdStart, StateStartedA}, nil
		}
	case StateStartedA:
		if msg == msgCompletedA {
			return Transition{Action: ActionNextNode, Next: StateBranchIfEnd}, nil
		}
	case StateBranchIfEnd:
		switch msg {
		case MsgInitialiseB:
			return Transition{ActionRunB, SlotB, activity.CmdInitialise, StateInitialisedB}, nil
		case MsgBranchToEnd:
			return Transition{ActionNone, SlotA, activity.CmdEnd, StateEnd}, nil
		}
	case StateInitialisedB:
		if msg == msgInitialisedB {
			return Transition{ActionNone, SlotB, activity.CmdSeizeResources, StateResourcesSeizedB}, nil
		}
	case StateResourcesSeizedB:
		if msg == msgResourcesSeizedB {
			return Transition{ActionNone, SlotA, activity.CmdReleaseResources, StateResourcesReleasedA}, nil
		}
	case StateResourcesReleasedA:
		if msg == msgResourcesReleaseA {
			return Transition{ActionNone, SlotA, activity.CmdEnd, StateStopATransferToB}, nil
		}
	case StateStopATransferToB:
		if msg == msgEndedA {
			return Transition{Action: ActionTransferBToA, Next: StateResourcesSeizedA}, nil
		}
	}
	return Transition{}, &ProtocolError{Person: -1, State: s, Message: msg}
}

// ProtocolError reports a message that is not valid in the person's current state.
type ProtocolError struct {
	Person  int64
	State   State
	Message Message
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("person %d protocol violation: state=%s message=%s", e.Person, e.State, e.Message)
}

// RoutingError reports a decision node that did not resolve to exactly one
// next activity.
type RoutingError struct {
	Person int64
	Node   string
	Count  int
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("person %d: node %s resolved to %d next activities, want exactly 1", e.Person, e.Node, e.Count)
}
