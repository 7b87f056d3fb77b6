package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fitpro/fitsync/internal/reactive"
)

// ViewSource is the read side of the reactive store.
type ViewSource interface {
	Watch(fn func(reactive.View)) (cancel func())
}

// ChannelObserver adapts reactive store notifications to a channel for Bubble Tea.
// Only the latest view matters, so a full channel drops the older pending one.
type ChannelObserver struct {
	ch     chan reactive.View
	cancel func()
}

// NewChannelObserver starts watching src.
func NewChannelObserver(src ViewSource) *ChannelObserver {
	o := &ChannelObserver{ch: make(chan reactive.View, 1)}
	o.cancel = src.Watch(o.onView)
	return o
}

func (o *ChannelObserver) onView(v reactive.View) {
	for {
		select {
		case o.ch <- v:
			return
		default:
		}
		// replace the stale pending view
		select {
		case <-o.ch:
		default:
		}
	}
}

// Next returns a command that waits for the next view.
func (o *ChannelObserver) Next() tea.Cmd {
	return func() tea.Msg {
		return ViewMsg{View: <-o.ch}
	}
}

// Views exposes the pending view for callers outside Bubble Tea.
func (o *ChannelObserver) Views() <-chan reactive.View {
	return o.ch
}

// Close stops watching.
func (o *ChannelObserver) Close() {
	o.cancel()
}
