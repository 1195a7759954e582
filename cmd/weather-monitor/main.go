package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	weathermon "github.com/kobidavid/weather-monitoring-system"
	"github.com/kobidavid/weather-monitoring-system/internal/adapters/observability"
)

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "run":
		err = runCommand(args)
	case "validate":
		err = validateCommand(args)
	case "stats":
		err = statsCommand(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fail(cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	once := fs.Bool("once", false, "Fetch and publish a single record, then exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := weathermon.LoadConfig()
	if err != nil {
		return err
	}

	log, err := observability.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	rt, err := weathermon.NewRuntime(cfg, weathermon.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		return rt.RunOnce(ctx)
	}
	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	dump := fs.Bool("print", false, "Print the effective configuration as YAML (secrets masked)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := weathermon.LoadConfig()
	if err != nil {
		return err
	}
	if *dump {
		return cfg.WriteYAML(os.Stdout)
	}
	fmt.Printf("config looks good: location=%s interval=%s broker=%s queue=%s\n",
		cfg.Provider.Location, cfg.Policy.SampleInterval, cfg.BrokerAddr(), cfg.Broker.Queue)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := fetchSnapshot(ctx, &cliHTTPClient, *url)
			if err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
				continue
			}
			fmt.Println(snap.format(time.Now()))
		}
	}
}

// fail reports err and exits non-zero. Configuration problems also go to
// stderr as plain text for whoever is starting the container.
func fail(cmd string, err error) {
	log, lerr := observability.NewLogger("info")
	if lerr != nil {
		log = zap.NewNop()
	}

	switch {
	case errors.Is(err, weathermon.ErrConfig):
		log.Error("configuration invalid", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintf(os.Stderr, "\nweather-monitor cannot start: %v\n", err)
	case errors.Is(err, weathermon.ErrConnection):
		log.Error("broker unreachable", zap.String("command", cmd), zap.Error(err))
	default:
		log.Error("command failed", zap.String("command", cmd), zap.Error(err))
	}
	_ = log.Sync()
	os.Exit(1)
}

func printUsage() {
	fmt.Printf(`weather-monitor

Usage:
  weather-monitor [command] [flags]

Commands:
  run        Poll the weather provider and publish to RabbitMQ (default)
  validate   Load and validate configuration without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters

Configuration is read from the environment (OPENWEATHER_API_KEY, CITY_NAME,
RABBITMQ_HOST, RABBITMQ_PORT, RABBITMQ_QUEUE, ...) and optionally from the
YAML file named by CONFIG_FILE.

Examples:
  weather-monitor run
  weather-monitor run -once
  weather-monitor validate
  weather-monitor validate -print
  weather-monitor stats -url http://localhost:9100/metrics -interval 1s
`)
}
