package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	weathermon "github.com/kobidavid/weather-monitoring-system"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, records, closeRecords := weathermon.NewChannelPublisher("fanout", 4)
	defer closeRecords()

	go fanoutWorker("dashboard", records)

	flow, err := weathermon.Conf(weathermon.PublishTo(pub))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, records <-chan weathermon.Record) {
	for rec := range records {
		fmt.Printf("[%s] %s %.1fC at %s\n", name, rec.LocationName, float64(rec.TemperatureC), time.UnixMilli(rec.CapturedAtEpochMillis).Format(time.RFC3339))
	}
}
