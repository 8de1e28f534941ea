// Package routing holds the routing graph: a directed multigraph whose nodes
// are decision points and whose edges are activities. People walk the graph
// from StartNode to EndNode, asking at each node which activity comes next.
//
// The graph and its registries are built once before the simulation starts
// and only read afterwards. Every lookup hands out fresh copies, so running
// activity instances never share argument maps with the registry or with
// each other.
package routing

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim/activity"
	"github.com/healthdes/healthdes/sim/attrs"
)

// Well-known node names.
const (
	StartNode = "start"
	EndNode   = "end"
)

// ErrDuplicateID is returned when an activity or decision ID is registered twice.
var ErrDuplicateID = errors.New("duplicate id")

// EdgeRef identifies an edge: source node, destination node and the index of
// the edge among parallel edges between the same pair.
type EdgeRef struct {
	From string
	To   string
	Key  int
}

func (r EdgeRef) String() string {
	return fmt.Sprintf("(%s,%s,%d)", r.From, r.To, r.Key)
}

// Activity is a registered activity, or a copy of one bound to an edge.
type Activity struct {
	ID    string
	Class activity.Class
	Args  activity.Args
	Ref   EdgeRef // zero for registry templates
}

// Clone returns a copy whose Args share nothing with a.
func (a Activity) Clone() Activity {
	a.Args = a.Args.Clone()
	return a
}

// DecisionClass narrows the candidate activities leaving a node.
type DecisionClass interface {
	Name() string
	Choose(node string, candidates []Activity, args activity.Args) ([]Activity, error)
}

// Decision is a registered decision. Its ID is the node it is attached to.
type Decision struct {
	ID    string
	Class DecisionClass
	Args  activity.Args
}

// Choose applies the decision class to candidates with a copy of the
// decision's arguments.
func (d *Decision) Choose(node string, candidates []Activity) ([]Activity, error) {
	return d.Class.Choose(node, candidates, d.Args.Clone())
}

type edge struct {
	ref        EdgeRef
	activityID string
}

type node struct {
	id  string
	out []edge
}

// Routing is the routing graph plus its activity and decision registries.
type Routing struct {
	activities map[string]Activity
	decisions  map[string]*Decision
	nodes      map[string]*node
	order      []string          // node creation order
	parallel   map[[2]string]int // next key per (from, to)
}

// New creates an empty routing graph.
func New() *Routing {
	return &Routing{
		activities: make(map[string]Activity),
		decisions:  make(map[string]*Decision),
		nodes:      make(map[string]*node),
		parallel:   make(map[[2]string]int),
	}
}

// RegisterActivity adds an activity template. The args are copied.
func (r *Routing) RegisterActivity(id string, class activity.Class, args activity.Args) error {
	if class == nil {
		return fmt.Errorf("register activity %s: nil class", id)
	}
	if _, ok := r.activities[id]; ok {
		return fmt.Errorf("register activity %s: %w", id, ErrDuplicateID)
	}
	r.activities[id] = Activity{ID: id, Class: class, Args: args.Clone()}
	return nil
}

// RegisterDecision adds a decision for the node of the same ID.
func (r *Routing) RegisterDecision(id string, class DecisionClass, args activity.Args) error {
	if class == nil {
		return fmt.Errorf("register decision %s: nil class", id)
	}
	if _, ok := r.decisions[id]; ok {
		return fmt.Errorf("register decision %s: %w", id, ErrDuplicateID)
	}
	r.decisions[id] = &Decision{ID: id, Class: class, Args: args.Clone()}
	return nil
}

// Activity returns a copy of the registered template.
func (r *Routing) Activity(id string) (Activity, error) {
	a, ok := r.activities[id]
	if !ok {
		return Activity{}, &attrs.NotFoundError{Registry: "activity", Key: id}
	}
	return a.Clone(), nil
}

// Decision returns the registered decision, or nil.
func (r *Routing) Decision(id string) *Decision {
	return r.decisions[id]
}

// AddDecision adds a decision node. Adding an existing node only logs a
// warning so a graph can be patched during setup.
func (r *Routing) AddDecision(id string) {
	if _, ok := r.nodes[id]; ok {
		logrus.Warnf("routing: node %s already exists, updating", id)
		return
	}
	r.addNode(id)
}

func (r *Routing) addNode(id string) *node {
	n, ok := r.nodes[id]
	if !ok {
		logrus.Debugf("routing: creating node %s", id)
		n = &node{id: id}
		r.nodes[id] = n
		r.order = append(r.order, id)
	}
	return n
}

// AddActivity adds an edge from -> to tagged with a registered activity,
// creating missing nodes, and returns the edge's reference.
func (r *Routing) AddActivity(activityID, from, to string) (EdgeRef, error) {
	if _, ok := r.activities[activityID]; !ok {
		return EdgeRef{}, fmt.Errorf("add activity %s: %w", activityID, &attrs.NotFoundError{Registry: "activity", Key: activityID})
	}
	src := r.addNode(from)
	r.addNode(to)
	pair := [2]string{from, to}
	ref := EdgeRef{From: from, To: to, Key: r.parallel[pair]}
	r.parallel[pair]++
	src.out = append(src.out, edge{ref: ref, activityID: activityID})
	return ref, nil
}

// ActivitiesFrom returns a fresh copy of every activity leaving node, in
// edge insertion order, each bound to its edge.
func (r *Routing) ActivitiesFrom(nodeID string) ([]Activity, error) {
	n, ok := r.nodes[nodeID]
	if !ok {
		return nil, &attrs.NotFoundError{Registry: "node", Key: nodeID}
	}
	out := make([]Activity, 0, len(n.out))
	for _, e := range n.out {
		a := r.activities[e.activityID].Clone()
		a.Ref = e.ref
		out = append(out, a)
	}
	return out, nil
}

// DecisionFor returns the decision attached to the destination of ref, or nil.
func (r *Routing) DecisionFor(ref EdgeRef) *Decision {
	return r.decisions[ref.To]
}

// Next resolves the activities that follow node. When a decision is
// registered for the node it narrows the candidates.
func (r *Routing) Next(nodeID string) ([]Activity, *Decision, error) {
	candidates, err := r.ActivitiesFrom(nodeID)
	if err != nil {
		return nil, nil, err
	}
	d := r.decisions[nodeID]
	if d == nil {
		return candidates, nil, nil
	}
	chosen, err := d.Choose(nodeID, candidates)
	if err != nil {
		return nil, d, fmt.Errorf("decision %s (%s): %w", d.ID, d.Class.Name(), err)
	}
	return chosen, d, nil
}

// Nodes returns node IDs in creation order.
func (r *Routing) Nodes() []string {
	return append([]string(nil), r.order...)
}

// Edges returns every edge reference in node then insertion order.
func (r *Routing) Edges() []EdgeRef {
	var out []EdgeRef
	for _, id := range r.order {
		for _, e := range r.nodes[id].out {
			out = append(out, e.ref)
		}
	}
	return out
}

// ActivityAt returns the activity ID tagged on ref.
func (r *Routing) ActivityAt(ref EdgeRef) (string, error) {
	if n, ok := r.nodes[ref.From]; ok {
		for _, e := range n.out {
			if e.ref == ref {
				return e.activityID, nil
			}
		}
	}
	return "", &attrs.NotFoundError{Registry: "edge", Key: ref.String()}
}

// Validate checks that every node reachable from StartNode, other than
// EndNode, resolves to activities, and that EndNode is reachable.
func (r *Routing) Validate() error {
	if _, ok := r.nodes[StartNode]; !ok {
		return fmt.Errorf("routing: missing %s node", StartNode)
	}
	seen := map[string]bool{StartNode: true}
	queue := []string{StartNode}
	reachedEnd := false
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == EndNode {
			reachedEnd = true
			continue
		}
		n := r.nodes[id]
		if len(n.out) == 0 {
			return fmt.Errorf("routing: node %s has no outgoing activity", id)
		}
		if len(n.out) > 1 && r.decisions[id] == nil {
			return fmt.Errorf("routing: node %s has %d outgoing activities and no decision", id, len(n.out))
		}
		for _, e := range n.out {
			if !seen[e.ref.To] {
				seen[e.ref.To] = true
				queue = append(queue, e.ref.To)
			}
		}
	}
	if !reachedEnd {
		return fmt.Errorf("routing: %s is not reachable from %s", EndNode, StartNode)
	}
	return nil
}
