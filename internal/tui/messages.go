package tui

import (
	"github.com/fitpro/fitsync/internal/reactive"
)

// Message types for the TUI

// ViewMsg carries a new reactive store view
type ViewMsg struct {
	View reactive.View
}

// OpDoneMsg signals that an engine operation finished
type OpDoneMsg struct {
	Op      string
	Message string
	Err     error
}

// TickMsg is sent periodically to animate the spinner
type TickMsg struct{}

// ClearStatusMsg signals that the status message should be cleared
type ClearStatusMsg struct{}
