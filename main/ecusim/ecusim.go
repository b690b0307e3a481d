package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jd3nn1s/ecusim"
	"github.com/jd3nn1s/ecusim/config"
	"github.com/jd3nn1s/ecusim/forwarder"
	"github.com/jd3nn1s/ecusim/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		interval    time.Duration
		count       int
		seed        int64
		mode        string
		logLevel    string
		metricsAddr string
		noStdout    bool
	)

	cmd := &cobra.Command{
		Use:          "ecusim",
		Short:        "Emit simulated live ECU telemetry as JSON",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			flags := cmd.Flags()
			if flags.Changed("interval") {
				cfg.Simulator.Interval = interval
			}
			if flags.Changed("count") {
				cfg.Simulator.Count = count
			}
			if flags.Changed("seed") {
				cfg.Simulator.Seed = seed
			}
			if flags.Changed("mode") {
				cfg.Simulator.Mode = mode
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if noStdout {
				cfg.Stdout = false
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			level, _ := log.ParseLevel(cfg.LogLevel)
			log.SetLevel(level)
			log.SetOutput(cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a TOML or YAML configuration file")
	flags.DurationVar(&interval, "interval", ecusim.DefaultInterval, "time between samples")
	flags.IntVar(&count, "count", 0, "number of samples to emit, 0 runs until interrupted; queued UDP and MQTT samples are flushed before exit")
	flags.Int64Var(&seed, "seed", 0, "random seed, 0 seeds from the clock")
	flags.StringVar(&mode, "mode", string(ecusim.ModeRandom), "generator mode: random or sweep")
	flags.StringVar(&logLevel, "log-level", "info", "log level")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flags.BoolVar(&noStdout, "no-stdout", false, "do not print telemetry to stdout")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	mode, err := ecusim.ParseMode(cfg.Simulator.Mode)
	if err != nil {
		return err
	}
	gen, err := ecusim.NewGenerator(mode, cfg.Simulator.Ranges, cfg.Simulator.Seed)
	if err != nil {
		return err
	}
	sim := ecusim.NewSimulator(gen, cfg.Simulator.Interval)
	sim.SetCount(cfg.Simulator.Count)

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer srv.Close()
		log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wg := sync.WaitGroup{}
	background := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithField("err", err).Errorf("%s done", name)
			}
		}()
	}

	if cfg.Stdout {
		sim.AddForwarder(forwarder.NewJSONForwarder(out))
	}
	if cfg.UDP != nil {
		udp, err := forwarder.NewUDPForwarder(cfg.UDP)
		if err != nil {
			return errors.Wrap(err, "unable to load UDP forwarder")
		}
		defer udp.Close()
		background(udp.Name(), udp.Start)
		sim.AddForwarder(udp)
	}
	if cfg.WebSocket != nil {
		ws := forwarder.NewWebSocketForwarder(cfg.WebSocket)
		background(ws.Name(), ws.Start)
		sim.AddForwarder(ws)
	}
	if cfg.MQTT != nil {
		mqtt, err := forwarder.NewMQTTForwarder(cfg.MQTT)
		if err != nil {
			return errors.Wrap(err, "unable to load MQTT forwarder")
		}
		background(mqtt.Name(), mqtt.Start)
		sim.AddForwarder(mqtt)
	}
	if cfg.CAN != nil {
		can := forwarder.NewCANForwarder(cfg.CAN)
		background(can.Name(), func(ctx context.Context) error {
			return ecusim.Retry(ctx, can)
		})
		sim.AddForwarder(can)
	}

	err = sim.Run(ctx)
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
