package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	weathermon "github.com/kobidavid/weather-monitoring-system"
)

func main() {
	flow, err := weathermon.Conf()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("weather monitor exited: %v", err)
	}
}
