package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) listen(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, online)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestMonitorReportsTransitionsOnly(t *testing.T) {
	m := NewMonitor(nil)
	rec := &recorder{}
	cancel := m.Listen(rec.listen)

	assert.True(t, m.Online())

	m.Report(true) // initial state, not a transition
	m.Report(true)
	m.Report(false)
	m.Report(false)
	m.Report(true)

	assert.Equal(t, []bool{false, true}, rec.get())
	assert.True(t, m.Online())

	cancel()
	m.Report(false)
	assert.Equal(t, []bool{false, true}, rec.get())
	assert.False(t, m.Online())
}

func TestMonitorInitialOffline(t *testing.T) {
	m := NewMonitor(nil)
	rec := &recorder{}
	m.Listen(rec.listen)

	m.Report(false)
	assert.Equal(t, []bool{false}, rec.get())
}

func TestMonitorMarkOffline(t *testing.T) {
	m := NewMonitor(nil)
	rec := &recorder{}
	m.Listen(rec.listen)

	m.Report(true)
	m.MarkOffline()
	assert.False(t, m.Online())
	assert.Empty(t, rec.get(), "marking offline does not notify")

	m.Report(true)
	m.Report(true)
	assert.Equal(t, []bool{true}, rec.get())
}

func TestMarkOfflineFromListener(t *testing.T) {
	m := NewMonitor(nil)
	rec := &recorder{}
	m.Report(false)
	// a reconnect attempt that fails again marks the monitor offline mid-report
	m.Listen(func(online bool) {
		rec.listen(online)
		if online {
			m.MarkOffline()
		}
	})

	m.Report(true)
	assert.False(t, m.Online())
	m.Report(true)
	assert.Equal(t, []bool{true, true}, rec.get())
}

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestProberProbe(t *testing.T) {
	pinger := &fakePinger{}
	m := NewMonitor(nil)
	rec := &recorder{}
	m.Listen(rec.listen)

	p, err := NewProber(pinger, m, "", time.Second, nil)
	require.NoError(t, err)

	p.Probe()
	pinger.set(errors.New("unreachable"))
	p.Probe()
	pinger.set(nil)
	p.Probe()

	assert.Equal(t, []bool{false, true}, rec.get())
}

func TestProberSchedule(t *testing.T) {
	pinger := &fakePinger{err: errors.New("unreachable")}
	m := NewMonitor(nil)

	p, err := NewProber(pinger, m, "@every 1s", time.Second, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	assert.Eventually(t, func() bool { return !m.Online() }, 3*time.Second, 50*time.Millisecond)
}

func TestProberRejectsBadSchedule(t *testing.T) {
	_, err := NewProber(&fakePinger{}, NewMonitor(nil), "every now and then", time.Second, nil)
	assert.Error(t, err)
}
