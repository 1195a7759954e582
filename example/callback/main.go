package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kobidavid/weather-monitoring-system/pkg/weathermon"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(rec weathermon.Record) error {
		fmt.Printf("%s %s/%s temp=%.1fC humidity=%d%% %s\n",
			rec.CapturedAt,
			rec.LocationName,
			rec.CountryCode,
			float64(rec.TemperatureC),
			rec.HumidityPct,
			rec.Condition,
		)
		return nil
	}

	flow, err := weathermon.Conf(
		weathermon.AtLocation("Haifa"),
		weathermon.Every(time.Minute),
		weathermon.OnRecord("stdout", callback),
	)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := flow.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
