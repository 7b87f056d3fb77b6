package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule probes every ten seconds.
const DefaultSchedule = "@every 10s"

// Pinger is anything that can cheaply check reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober pings the remote store on a cron schedule and reports the result
// to a Monitor.
type Prober struct {
	pinger  Pinger
	monitor *Monitor
	timeout time.Duration
	cron    *cron.Cron
	logger  *slog.Logger
}

// NewProber schedules probes. schedule accepts standard cron expressions and
// descriptors such as "@every 5s"; empty uses DefaultSchedule.
func NewProber(pinger Pinger, monitor *Monitor, schedule string, timeout time.Duration, logger *slog.Logger) (*Prober, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	p := &Prober{
		pinger:  pinger,
		monitor: monitor,
		timeout: timeout,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
	}
	if _, err := p.cron.AddFunc(schedule, p.Probe); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins probing in the background.
func (p *Prober) Start() {
	p.cron.Start()
	p.logger.Debug("connectivity prober started")
}

// Stop halts probing and waits for a running probe to finish.
func (p *Prober) Stop() {
	<-p.cron.Stop().Done()
}

// Probe pings once and reports the result.
func (p *Prober) Probe() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.pinger.Ping(ctx)
	if err != nil {
		p.logger.Debug("probe failed", "error", err)
	}
	p.monitor.Report(err == nil)
}
