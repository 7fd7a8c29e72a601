package mq

import (
	"fmt"

	"dapp-core/pkg/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewProducer picks the producer named by redis.mq_type. "none" or empty
// returns nil, nil.
func NewProducer(cfg config.Config) (Producer, error) {
	switch cfg.Redis.MQType {
	case "", "none":
		return nil, nil
	case "redis":
		return NewRedisProducer(NewRedisClient(cfg.Redis)), nil
	case "kafka":
		return NewKafkaProducer(cfg.Kafka.Brokers), nil
	}
	return nil, fmt.Errorf("unknown mq_type %q", cfg.Redis.MQType)
}

// NewConsumer is the consumer side of NewProducer.
func NewConsumer(cfg config.Config, group, name string) (Consumer, error) {
	switch cfg.Redis.MQType {
	case "redis":
		return NewRedisConsumer(NewRedisClient(cfg.Redis), group, name), nil
	case "kafka":
		return NewKafkaConsumer(cfg.Kafka.Brokers, group), nil
	}
	return nil, fmt.Errorf("mq_type %q has no consumer", cfg.Redis.MQType)
}
