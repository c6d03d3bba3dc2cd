package svc

import (
	"time"

	"ix-pipeline-sol/internal/config"
	"ix-pipeline-sol/internal/logic/progress"
	"ix-pipeline-sol/internal/metrics"
	"ix-pipeline-sol/internal/mq"
	"ix-pipeline-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 聚合 pipeline 服务的共享资源。
type ServiceContext struct {
	Config   config.Config
	Producer *kafka.Producer
	Progress *progress.RedisProgressStore
	Metrics  *metrics.Collection
}

// NewServiceContext 创建服务上下文
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	// 1. 初始化 Kafka 生产者（trade / dead_letter topic）
	producer, err := mq.NewKafkaProducer(c.KafkaProducerConf)
	if err != nil {
		logger.Errorf("Kafka producer 初始化失败: %v", err)
		return nil, err
	}

	// 2. 初始化 Redis 客户端（slot 进度判重）
	rdb := redis.NewClient(&redis.Options{
		Addr: c.RedisAddr, // eg: "127.0.0.1:6379"
	})

	ctx := &ServiceContext{
		Config:   c,
		Producer: producer,
		Progress: progress.NewRedisProgressStore(rdb, time.Duration(c.ProgressConf.SlotTtlSec)*time.Second),
		Metrics:  metrics.NewCollection(),
	}

	logger.Infof("pipeline 服务上下文初始化完成")
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *ServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Close()
	}
}
