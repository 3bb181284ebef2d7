package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"lkas-actuation-core/utils"
)

func main() {
	var (
		cfgPath     = flag.String("config", "", "Controller TOML config (defaults when empty)")
		dbcPath     = flag.String("dbc", "config/dbc/toyota_lkas.dbc", "DBC signal database")
		canMapPath  = flag.String("can-map", "", "can_map.csv signal map, used instead of --dbc when set")
		scenPath    = flag.String("scenario", "closed_loop/scenarios/lane_keep_60s.json", "Scenario JSON file")
		busSpecs    = flag.StringArray("bus", []string{"0=vcan0"}, "Bus mapping index=iface, repeatable")
		feedbackBus = flag.Int("feedback-bus", 0, "Bus index carrying EPS, speed and cruise frames")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
		redisAddr   = flag.String("redis-addr", "", "Publish status to this Redis server")
		logLevel    = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		logFile     = flag.String("log-file", "closed_loop.log", "Log file path")
	)
	flag.Parse()

	log, err := utils.NewFileLogger(*logFile, utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + *logFile + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	buses, err := parseBusSpecs(*busSpecs)
	if err != nil {
		log.Critical("Bad --bus: %v", err)
		os.Exit(1)
	}

	mapPath := *dbcPath
	if *canMapPath != "" {
		mapPath = *canMapPath
	}

	cfg := RunnerConfig{
		ConfigPath:   *cfgPath,
		MapPath:      mapPath,
		ScenarioPath: *scenPath,
		Buses:        buses,
		FeedbackBus:  *feedbackBus,
		MetricsAddr:  *metricsAddr,
		RedisAddr:    *redisAddr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("Shutdown: %v", err)
		}
	}()

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}

// parseBusSpecs turns "0=can0" entries into a bus index map.
func parseBusSpecs(specs []string) (map[int]string, error) {
	out := make(map[int]string, len(specs))
	for _, entry := range specs {
		idx, iface, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(iface) == "" {
			return nil, fmt.Errorf("%q: want index=iface", entry)
		}
		bus, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || bus < 0 {
			return nil, fmt.Errorf("%q: bad bus index", entry)
		}
		if _, dup := out[bus]; dup {
			return nil, fmt.Errorf("bus %d given twice", bus)
		}
		out[bus] = strings.TrimSpace(iface)
	}
	if len(out) == 0 {
		return nil, errors.New("no buses")
	}
	return out, nil
}
