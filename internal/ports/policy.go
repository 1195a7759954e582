package ports

import "time"

type Policy struct {
	SampleInterval    time.Duration `yaml:"sample_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ConnectAttempts   int           `yaml:"connect_attempts"`
	ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
}
