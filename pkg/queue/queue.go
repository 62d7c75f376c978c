package queue

import (
	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/pkg/config"
)

// Queue names. Registrations outrank everything else the worker may pick up.
const (
	QueueRegistrations = "registrations"
	QueueDefault       = "default"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int, logger asynq.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueRegistrations: 6,
				QueueDefault:       1,
			},
			Logger: logger,
		},
	)
}

func NewInspector(cfg *config.RedisConfig) *asynq.Inspector {
	return asynq.NewInspector(redisOpt(cfg))
}
