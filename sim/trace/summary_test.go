package trace

import (
	"testing"
)

func TestSummarize_NilTrace_ReturnsZeroSummary(t *testing.T) {
	summary := Summarize(nil)
	if summary.ActivityTransitions != 0 || summary.PersonTransitions != 0 {
		t.Errorf("expected zero counts, got %+v", summary)
	}
	if summary.StateVisits == nil {
		t.Error("expected non-nil StateVisits map")
	}
}

func TestSummarize_CountsByMachineAndState(t *testing.T) {
	// GIVEN two owners with mixed transitions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelTransitions})
	st.RecordTransition(TransitionRecord{Machine: MachinePerson, Owner: 0, To: "initialised_a"})
	st.RecordTransition(TransitionRecord{Machine: MachineActivity, Owner: 0, To: "initialised"})
	st.RecordTransition(TransitionRecord{Machine: MachinePerson, Owner: 1, To: "initialised_a"})
	st.RecordRouting(RoutingRecord{Owner: 0, Node: "start", Chosen: []string{"visit"}})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts reflect each machine, owner and target state
	if summary.PersonTransitions != 2 {
		t.Errorf("PersonTransitions = %d, want 2", summary.PersonTransitions)
	}
	if summary.ActivityTransitions != 1 {
		t.Errorf("ActivityTransitions = %d, want 1", summary.ActivityTransitions)
	}
	if summary.RoutingDecisions != 1 {
		t.Errorf("RoutingDecisions = %d, want 1", summary.RoutingDecisions)
	}
	if summary.UniqueOwners != 2 {
		t.Errorf("UniqueOwners = %d, want 2", summary.UniqueOwners)
	}
	if summary.StateVisits["person:initialised_a"] != 2 {
		t.Errorf("person:initialised_a visits = %d, want 2", summary.StateVisits["person:initialised_a"])
	}
}
