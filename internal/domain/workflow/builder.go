package workflow

import "fmt"

// TableBuilder builds an immutable transition table for one workflow type
type TableBuilder interface {
	// Configure returns the configuration of outgoing edges for the given state
	Configure(state State) StateConfiguration

	// Build freezes the configured edges into a Table
	Build() Table
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows moving from the configured state to each of the target states
	Permit(toStates ...State) StateConfiguration
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	fromState State
	targets   []State
}

// tableBuilder implements TableBuilder
type tableBuilder struct {
	workflowType   WorkflowType
	order          []State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder(workflowType WorkflowType) TableBuilder {
	if !workflowType.IsValid() {
		panic(fmt.Sprintf("invalid workflow type: %s", workflowType))
	}

	return &tableBuilder{
		workflowType:   workflowType,
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *tableBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{fromState: state}
		b.configurations[state] = config
		b.order = append(b.order, state)
	}

	return config
}

// Build creates the table. Later Configure calls do not affect tables already built.
func (b *tableBuilder) Build() Table {
	t := &transitionTable{
		workflowType: b.workflowType,
		states:       append([]State{}, b.order...),
		edges:        make(map[State]map[State]bool, len(b.configurations)),
		targets:      make(map[State][]State, len(b.configurations)),
	}

	for state, config := range b.configurations {
		set := make(map[State]bool, len(config.targets))
		for _, to := range config.targets {
			set[to] = true
		}
		t.edges[state] = set
		t.targets[state] = append([]State{}, config.targets...)
	}

	return t
}

// Permit allows transitions to the target states
func (c *stateConfig) Permit(toStates ...State) StateConfiguration {
	for _, to := range toStates {
		if !to.IsValid() {
			panic(fmt.Sprintf("invalid target state: %s", to))
		}
		c.targets = append(c.targets, to)
	}

	return c
}
