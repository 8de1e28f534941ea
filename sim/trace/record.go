// Package trace records state-machine transitions for post-run analysis.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// Machine names which state machine produced a record.
type Machine string

const (
	MachineActivity Machine = "activity"
	MachinePerson   Machine = "person"
)

// TransitionRecord captures one state-machine transition.
type TransitionRecord struct {
	Machine Machine
	Owner   int64  // person ID
	Subject string // activity name or person label
	Clock   int64
	From    string
	Message string
	To      string
}

// RoutingRecord captures one next-activity decision taken by a person.
type RoutingRecord struct {
	Owner    int64
	Clock    int64
	Node     string
	Chosen   []string // activity IDs returned by the routing graph
	Decision string   // decision class name, empty when none is attached
}
