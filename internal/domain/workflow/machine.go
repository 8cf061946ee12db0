package workflow

// Table is the read-only adjacency map of one workflow type
type Table interface {
	// WorkflowType returns the workflow type this table belongs to
	WorkflowType() WorkflowType

	// States returns every state of the workflow type in declaration order
	States() []State

	// Has reports whether the state belongs to this workflow type
	Has(state State) bool

	// CanTransition reports whether from -> to is a permitted edge
	CanTransition(from, to State) bool

	// Allowed returns the permitted targets of a state
	Allowed(from State) []State
}

// transitionTable implements Table
type transitionTable struct {
	workflowType WorkflowType
	states       []State
	edges        map[State]map[State]bool
	targets      map[State][]State
}

func (t *transitionTable) WorkflowType() WorkflowType {
	return t.workflowType
}

func (t *transitionTable) States() []State {
	return append([]State{}, t.states...)
}

func (t *transitionTable) Has(state State) bool {
	_, ok := t.edges[state]
	return ok
}

func (t *transitionTable) CanTransition(from, to State) bool {
	return t.edges[from][to]
}

func (t *transitionTable) Allowed(from State) []State {
	return append([]State{}, t.targets[from]...)
}
