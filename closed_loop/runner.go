package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"lkas-actuation-core/closed_loop/carcontrol"
	"lkas-actuation-core/telemetry"
	"lkas-actuation-core/utils"
)

const (
	cyclePeriod   = 10 * time.Millisecond
	feedbackStale = 500 * time.Millisecond
	pidLogEvery   = 100
)

type RunnerConfig struct {
	ConfigPath   string // controller TOML, empty for defaults
	MapPath      string // DBC or CSV signal map
	ScenarioPath string
	Buses        map[int]string // bus index -> SocketCAN interface
	FeedbackBus  int
	MetricsAddr  string // empty disables the /metrics endpoint
	RedisAddr    string // empty disables status publishing
}

type Runner struct {
	cfg     RunnerConfig
	log     *utils.Logger
	scen    Scenario
	ctl     *carcontrol.Controller
	buses   *utils.BusSender
	reader  utils.CANReader
	decoder *feedbackDecoder
	sender  *frameSender
	metrics *telemetry.Metrics
	store   telemetry.Store
	pub     *telemetry.Publisher
	pid     *PIDController
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (r *Runner, err error) {
	ccfg := carcontrol.DefaultConfig()
	if cfg.ConfigPath != "" {
		if ccfg, err = carcontrol.LoadConfig(cfg.ConfigPath); err != nil {
			return nil, err
		}
	}

	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	decoder, err := newFeedbackDecoder(cmap)
	if err != nil {
		return nil, err
	}

	opts := []carcontrol.Option{carcontrol.WithLogger(log)}
	if ccfg.StaticTable != "" {
		rows, err := carcontrol.LoadStaticTable(ccfg.StaticTable)
		if err != nil {
			return nil, err
		}
		opts = append(opts, carcontrol.WithStaticTable(rows))
	}
	ctl, err := carcontrol.NewController(ccfg, cmap, opts...)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	feedbackIface, ok := cfg.Buses[cfg.FeedbackBus]
	if !ok {
		return nil, fmt.Errorf("feedback bus %d has no interface", cfg.FeedbackBus)
	}

	r = &Runner{
		cfg:     cfg,
		log:     log,
		scen:    scen,
		ctl:     ctl,
		decoder: decoder,
		metrics: telemetry.NewMetrics(cfg.MetricsAddr != ""),
	}
	defer func() {
		if err != nil {
			_ = r.Close()
		}
	}()

	if r.buses, err = utils.DialBuses(ctx, cfg.Buses); err != nil {
		return nil, err
	}
	if r.reader, err = utils.NewSocketCANReader(ctx, feedbackIface); err != nil {
		return nil, err
	}
	r.sender = newFrameSender(r.buses, r.metrics)

	if cfg.RedisAddr != "" {
		rs := telemetry.NewRedisStore(cfg.RedisAddr)
		r.store = rs
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err = rs.Ping(pctx); err != nil {
			return nil, err
		}
		r.pub = telemetry.NewPublisher(rs, log.With("component", "telemetry"))
	}

	if scen.Meta.ControlMode == modeVelocityPID {
		r.pid = NewPIDController(*scen.PIDConfig)
		log.Info("PID planner initialized: target=%.2f m/s, Kp=%.2f, Ki=%.2f, Kd=%.2f",
			scen.PIDConfig.TargetVelocityMPS, scen.PIDConfig.Kp, scen.PIDConfig.Ki, scen.PIDConfig.Kd)
	}

	return r, nil
}

func (r *Runner) Close() error {
	var err error
	if r.reader != nil {
		err = multierr.Append(err, r.reader.Close())
	}
	if r.buses != nil {
		err = multierr.Append(err, r.buses.Close())
	}
	if r.store != nil {
		err = multierr.Append(err, r.store.Close())
	}
	return err
}

// Run drives the controller until the scenario ends or ctx is canceled. A
// finished scenario returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting: session=%s scenario=%s duration=%.2fs mode=%s buses=%v feedback_bus=%d ecus=%s",
		r.ctl.Session(), r.scen.Meta.Name, r.scen.Timing.DurationS, r.scen.Meta.ControlMode,
		r.buses.Buses(), r.cfg.FeedbackBus, r.ctl.Capabilities())

	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	g, gctx := errgroup.WithContext(runCtx)

	rx := make(chan SensorFeedback, 100)
	g.Go(func() error { return r.receiveLoop(gctx, rx) })
	g.Go(func() error {
		// the reader blocks in a syscall; closing it is the only way out
		<-gctx.Done()
		_ = r.reader.Close()
		return nil
	})
	g.Go(func() error {
		defer finish()
		return r.controlLoop(gctx, rx)
	})
	if r.pub != nil {
		g.Go(func() error { return r.pub.Run(gctx) })
	}
	if r.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: r.metricsMux()}
		g.Go(func() error {
			r.log.Info("metrics listening on %s", r.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// scenario completed and canceled the helpers
		return nil
	}
	return err
}

func (r *Runner) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	return mux
}

func (r *Runner) controlLoop(ctx context.Context, rx <-chan SensorFeedback) error {
	start := time.Now()
	ticker := time.NewTicker(cyclePeriod)
	defer ticker.Stop()

	endAfter := time.Duration(r.scen.Timing.DurationS * float64(time.Second))
	statusEvery := statusInterval(r.scen.Timing.StatusHz)
	dt := cyclePeriod.Seconds()

	tracker := newStateTracker()
	lastRx := time.Now()
	stale := false
	var cycle uint64

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping control loop")
			r.logSummary(cycle)
			return ctx.Err()

		case fb := <-rx:
			tracker.Apply(fb)
			lastRx = time.Now()
			if stale {
				stale = false
				r.log.Info("Bus feedback resumed")
			}

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				r.log.Info("Scenario complete")
				r.logSummary(cycle)
				return nil
			}
			t := elapsed.Seconds()

			if age := now.Sub(lastRx); age > feedbackStale && !stale {
				stale = true
				r.log.Warn("No bus feedback for %.0f ms; controlling on last known state", age.Seconds()*1000)
			}

			cs := tracker.State()
			cmd := EvalCycleCmd(&r.scen, t)
			if r.pid != nil {
				if seg := r.scen.ActiveSegment(t); seg != nil && seg.TargetVelocityMPS != nil &&
					*seg.TargetVelocityMPS != r.pid.TargetVelocity() {
					r.pid.SetTargetVelocity(*seg.TargetVelocityMPS)
					r.log.Info("PID target -> %.2f m/s at t=%.2f", *seg.TargetVelocityMPS, t)
				}
				u := r.pid.Update(cs.SpeedMPS, dt)
				cmd.Gas, cmd.Brake = splitPedals(u)
				if cycle%pidLogEvery == 0 {
					diag := r.pid.Diagnostics()
					r.log.Debug("PID: v=%.2f err=%.3f u=%.3f P=%.3f I=%.3f",
						cs.SpeedMPS, diag.Error, u, diag.P, diag.I)
				}
			}

			t0 := time.Now()
			out := r.ctl.Cycle(ctx, cmd.CycleInput(cs, cycle), r.sender)
			r.metrics.ObserveCycle(out, r.ctl.Stats(), time.Since(t0))

			if r.pub != nil && statusEvery > 0 && cycle%statusEvery == 0 {
				r.pub.Offer(telemetry.NewStatus(r.ctl.Session().String(), cycle, cmd.Enabled, out, r.ctl.Stats()))
			}

			r.log.Trace("TX t=%.3f cycle=%d steer=%d req=%v accel=%.3f angle=%.2f cutout=%v",
				t, cycle, out.Steer, out.SteerRequest, out.Accel, out.Angle, out.InCutout)
			cycle++
		}
	}
}

func (r *Runner) logSummary(cycles uint64) {
	st := r.ctl.Stats()
	r.log.Info("Completed: cycles=%d frames=%d encode_errors=%d fault_cycles=%d cutout_cycles=%d skipped=%d",
		cycles, st.FramesBuilt, st.EncodeErrors, st.FaultCycles, st.CutoutCycles, r.sender.Skipped())
	if r.pub != nil {
		r.log.Info("Telemetry: dropped=%d", r.pub.Dropped())
	}
}

// receiveLoop reads the feedback bus and forwards tracked frames. A full
// channel drops the frame; the next one carries fresher state.
func (r *Runner) receiveLoop(ctx context.Context, feedback chan<- SensorFeedback) error {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.metrics.ReceiveError()
			return fmt.Errorf("rx: %w", err)
		}
		r.metrics.FrameReceived()

		fb, tracked, err := r.decoder.Decode(frame.ID, frame.Data[:frame.Length])
		if err != nil {
			r.metrics.ReceiveError()
			r.log.Debug("RX %v", err)
			continue
		}
		if !tracked {
			continue
		}
		select {
		case feedback <- fb:
		default:
		}
		r.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
}

// statusInterval converts a publish rate into a cycle count. Zero disables.
func statusInterval(hz float64) uint64 {
	if hz <= 0 {
		return 0
	}
	n := math.Round(1 / (hz * cyclePeriod.Seconds()))
	if n < 1 {
		n = 1
	}
	return uint64(n)
}
