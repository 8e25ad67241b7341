package main

import "time"

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	DatabaseURL          string        `env:"DATABASE_URL,required=true"`
	QueueURL             string        `env:"QUEUE_URL,required=true"`
	QueueStream          string        `env:"QUEUE_STREAM,default=livepoll"`
	QueueSubject         string        `env:"QUEUE_SUBJECT,default=livepoll.notifications"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`
	StorageTimeout       time.Duration `env:"STORAGE_TIMEOUT,default=5s"`
	ConsumerRetryWait    time.Duration `env:"CONSUMER_RETRY_WAIT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	TargetedTallies      bool          `env:"TARGETED_TALLIES,default=false"`
	AutoMigrate          bool          `env:"AUTO_MIGRATE,default=false"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}
