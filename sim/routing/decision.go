package routing

import (
	"fmt"

	"github.com/healthdes/healthdes/sim/activity"
)

// Pick is a DecisionClass that keeps only the candidate whose activity ID
// matches the "activity" argument of the decision.
type Pick struct{}

func (Pick) Name() string { return "pick" }

func (Pick) Choose(node string, candidates []Activity, args activity.Args) ([]Activity, error) {
	want, err := args.Text("activity")
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node, err)
	}
	var out []Activity
	for _, c := range candidates {
		if c.ID == want {
			out = append(out, c)
		}
	}
	return out, nil
}
