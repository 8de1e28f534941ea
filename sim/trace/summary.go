package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	ActivityTransitions int
	PersonTransitions   int
	RoutingDecisions    int
	UniqueOwners        int
	StateVisits         map[string]int // "machine:state" → number of transitions into it
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StateVisits: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	owners := make(map[int64]bool)
	for _, r := range st.Transitions {
		switch r.Machine {
		case MachineActivity:
			summary.ActivityTransitions++
		case MachinePerson:
			summary.PersonTransitions++
		}
		owners[r.Owner] = true
		summary.StateVisits[string(r.Machine)+":"+r.To]++
	}
	summary.RoutingDecisions = len(st.Routings)
	summary.UniqueOwners = len(owners)

	return summary
}
