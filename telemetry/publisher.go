package telemetry

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"lkas-actuation-core/utils"
)

// Publisher moves status snapshots off the control loop. Offer never blocks;
// a snapshot not yet written is replaced by the newer one.
type Publisher struct {
	store Store
	log   *utils.Logger
	ch    chan Status

	dropped atomic.Uint64
	failing bool

	// last snapshot whose cutout state reached the store
	lastCutout   bool
	cutoutCycles uint64
}

func NewPublisher(store Store, log *utils.Logger) *Publisher {
	if log == nil {
		log = utils.NopLogger()
	}
	return &Publisher{store: store, log: log, ch: make(chan Status, 1)}
}

// Offer queues s for publishing and reports whether it was queued.
func (p *Publisher) Offer(s Status) bool {
	select {
	case p.ch <- s:
		return true
	default:
	}
	select {
	case <-p.ch:
		p.dropped.Add(1)
	default:
	}
	select {
	case p.ch <- s:
		return true
	default:
		return false
	}
}

// Dropped is the number of snapshots replaced before they were written.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Run writes queued snapshots until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	p.log.Debug("telemetry publisher started")
	defer p.log.Debug("telemetry publisher stopped")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-p.ch:
			p.write(ctx, s)
		}
	}
}

func (p *Publisher) write(ctx context.Context, s Status) {
	var err error
	if p.cutoutSince(s) {
		ferr := p.store.ReportFault(ctx, map[string]any{
			"group":         "lkas",
			"session":       s.Session,
			"cycle":         strconv.FormatUint(s.Cycle, 10),
			"cutout-cycles": strconv.FormatUint(s.CutoutCycles, 10),
			"ts":            time.Now().Format(time.RFC3339),
		})
		err = multierr.Append(err, ferr)
		if ferr == nil {
			p.lastCutout = s.InCutout
			p.cutoutCycles = s.CutoutCycles
		}
	} else {
		p.lastCutout = s.InCutout
		p.cutoutCycles = s.CutoutCycles
	}
	err = multierr.Append(err, p.store.PublishStatus(ctx, s.Fields()))

	if err != nil {
		if !p.failing && ctx.Err() == nil {
			p.log.Warn("telemetry publish failed, suppressing until it recovers: %v", err)
		}
		p.failing = true
		return
	}
	if p.failing {
		p.log.Info("telemetry publish recovered")
		p.failing = false
	}
}

// cutoutSince reports whether a cutout began since the last reported
// snapshot. A cutout that started and ended between snapshots shows up only
// as growth of the cutout cycle count.
func (p *Publisher) cutoutSince(s Status) bool {
	if p.lastCutout {
		return false
	}
	return s.InCutout || s.CutoutCycles > p.cutoutCycles
}
