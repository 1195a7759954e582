package ports

// Metric names shared by the pipeline and the observability adapters.
const (
	MetricCycles          = "weather_cycles_total"
	MetricCyclesSkipped   = "weather_cycles_skipped_total"
	MetricFetchFailures   = "weather_fetch_failures_total"
	MetricPublishFailures = "weather_publish_failures_total"
	MetricPublished       = "weather_records_published_total"
	MetricConnectAttempts = "weather_broker_connect_attempts_total"
	MetricBrokerConnected = "weather_broker_connected"
	MetricLastTemperature = "weather_last_temperature_celsius"
	MetricFetchLatency    = "weather_fetch_latency_seconds"
	MetricPublishLatency  = "weather_publish_latency_seconds"
)
