package pipeline

import (
	"fmt"
	"slices"
)

// State is a step of one platform pipeline.
type State string

const (
	StateStart            State = "start"
	StateDecide           State = "decide"
	StatePreprocess       State = "preprocess"
	StateSkipPreprocess   State = "skip_preprocess"
	StateToolchainBuild   State = "toolchain_build"
	StateManifestSanitize State = "manifest_sanitize"
	StatePublish          State = "publish"
	StateRunAfterBuild    State = "run_after_build"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// transitions lists the forward edges. Every non-terminal state may also move to failed.
var transitions = map[State][]State{
	StateStart:            {StateDecide},
	StateDecide:           {StatePreprocess, StateSkipPreprocess},
	StatePreprocess:       {StateToolchainBuild},
	StateSkipPreprocess:   {StateToolchainBuild},
	StateToolchainBuild:   {StateManifestSanitize, StatePublish},
	StateManifestSanitize: {StatePublish},
	StatePublish:          {StateRunAfterBuild, StateDone},
	StateRunAfterBuild:    {StateDone},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether the pipeline may move from s to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return slices.Contains(transitions[s], next)
}

// machine records the path a pipeline took.
type machine struct {
	current State
	history []State
}

func newMachine() *machine {
	return &machine{current: StateStart, history: []State{StateStart}}
}

func (m *machine) advance(next State) error {
	if !m.current.CanTransition(next) {
		return fmt.Errorf("invalid pipeline transition %s -> %s", m.current, next)
	}
	m.current = next
	m.history = append(m.history, next)
	return nil
}

func (m *machine) fail() {
	if !m.current.Terminal() {
		m.current = StateFailed
		m.history = append(m.history, StateFailed)
	}
}
