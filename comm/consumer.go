package comm

import "github.com/itchio/headway/state"

// NewStateConsumer returns a *state.Consumer that prints
// directly to the console via imzconv's logging functions.
func NewStateConsumer() *state.Consumer {
	return &state.Consumer{
		OnProgress:       Progress,
		OnProgressLabel:  ProgressLabel,
		OnPauseProgress:  PauseProgress,
		OnResumeProgress: ResumeProgress,
		OnMessage:        Logl,
	}
}
