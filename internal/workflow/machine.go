// Package workflow implements the checklist review lifecycle as a small
// guarded state machine. A checklist is reviewed exactly once: both
// approval and rejection are terminal.
package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a transition may fire.
type GuardFunc func(ctx context.Context) bool

type transition struct {
	toState State
	guard   GuardFunc
}

// Machine tracks the current review state and validates transitions.
type Machine struct {
	current     State
	transitions map[State]map[Trigger][]transition
}

// Builder configures the transitions of a Machine.
type Builder struct {
	transitions map[State]map[Trigger][]transition
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger][]transition)}
}

// Permit allows trigger to move from state to toState unconditionally.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	return b.PermitIf(from, trigger, to, nil)
}

// PermitIf allows trigger to move from state to toState when guard passes.
func (b *Builder) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source state: %s", from))
	}
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}

	byTrigger, ok := b.transitions[from]
	if !ok {
		byTrigger = make(map[Trigger][]transition)
		b.transitions[from] = byTrigger
	}
	byTrigger[trigger] = append(byTrigger[trigger], transition{toState: to, guard: guard})
	return b
}

// Build creates a machine starting at initialState. The builder's
// configuration is copied so machines do not share mutable state.
func (b *Builder) Build(initialState State) *Machine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	copied := make(map[State]map[Trigger][]transition, len(b.transitions))
	for from, byTrigger := range b.transitions {
		inner := make(map[Trigger][]transition, len(byTrigger))
		for trigger, ts := range byTrigger {
			inner[trigger] = append([]transition{}, ts...)
		}
		copied[from] = inner
	}

	return &Machine{current: initialState, transitions: copied}
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// CanFire returns true if at least one transition exists for the trigger
// in the current state. Guards are not evaluated here.
func (m *Machine) CanFire(trigger Trigger) bool {
	byTrigger, ok := m.transitions[m.current]
	if !ok {
		return false
	}
	return len(byTrigger[trigger]) > 0
}

// Fire executes the trigger, moving to the first transition whose guard
// passes. Transitions without a guard always pass.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	byTrigger, ok := m.transitions[m.current]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	ts := byTrigger[trigger]
	if len(ts) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range ts {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns the triggers that can fire in the current state
func (m *Machine) PermittedTriggers() []Trigger {
	byTrigger, ok := m.transitions[m.current]
	if !ok {
		return nil
	}
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	return triggers
}
