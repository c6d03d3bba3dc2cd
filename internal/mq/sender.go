package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ix-pipeline-sol/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// KafkaJob 表示一条需要发送的 Kafka 消息。
// 分区交由 key 哈希决定，不再手工指定分区号。
type KafkaJob struct {
	Topic string
	Key   []byte
	Value []byte
}

// KafkaSendResult 表示每条消息的发送结果
type KafkaSendResult struct {
	Job *KafkaJob
	Err error
}

// SendKafkaJobs 并发发送多条 Kafka 消息，支持外部 context 控制超时/取消
func SendKafkaJobs(
	ctx context.Context,
	producer *kafka.Producer,
	jobs []*KafkaJob,
	perMessageTimeout time.Duration,
) (ok []*KafkaJob, failed []KafkaSendResult) {
	var wg sync.WaitGroup
	resultCh := make(chan KafkaSendResult, len(jobs)) // 缓冲避免阻塞

	for _, job := range jobs {
		wg.Add(1)
		go func(job *KafkaJob) {
			defer wg.Done()

			deliveryChan := make(chan kafka.Event, 1)
			err := producer.Produce(&kafka.Message{
				TopicPartition: kafka.TopicPartition{
					Topic:     &job.Topic,
					Partition: kafka.PartitionAny,
				},
				Key:   job.Key,
				Value: job.Value,
			}, deliveryChan)
			if err != nil {
				resultCh <- KafkaSendResult{Job: job, Err: fmt.Errorf("produce error: %w", err)}
				return
			}

			select {
			case e, open := <-deliveryChan:
				if !open {
					resultCh <- KafkaSendResult{Job: job, Err: fmt.Errorf("delivery channel closed unexpectedly")}
					return
				}
				msg, isMsg := e.(*kafka.Message)
				if !isMsg {
					resultCh <- KafkaSendResult{Job: job, Err: fmt.Errorf("invalid message type: %T", e)}
					return
				}
				resultCh <- KafkaSendResult{Job: job, Err: msg.TopicPartition.Error}
			case <-time.After(perMessageTimeout):
				go safeDrain(deliveryChan, job.Topic)
				resultCh <- KafkaSendResult{Job: job, Err: fmt.Errorf("delivery timeout (>%v)", perMessageTimeout)}
			case <-ctx.Done():
				go safeDrain(deliveryChan, job.Topic)
				resultCh <- KafkaSendResult{Job: job, Err: fmt.Errorf("ctx cancelled: %w", ctx.Err())}
			}
		}(job)
	}

	// 等待所有发送完成再关闭结果通道
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// 聚合结果
	for res := range resultCh {
		if res.Err != nil {
			failed = append(failed, res)
		} else {
			ok = append(ok, res.Job)
		}
	}
	return ok, failed
}

// SendKafkaJob 发送单条消息并等待 ack，pipeline processor 的便捷入口。
func SendKafkaJob(
	ctx context.Context,
	producer *kafka.Producer,
	job *KafkaJob,
	timeout time.Duration,
) error {
	_, failed := SendKafkaJobs(ctx, producer, []*KafkaJob{job}, timeout)
	if len(failed) > 0 {
		return failed[0].Err
	}
	return nil
}

// safeDrain 在超时/取消后托底消费 delivery 事件，避免 goroutine 泄漏
func safeDrain(deliveryChan chan kafka.Event, topic string) {
	select {
	case e := <-deliveryChan:
		if msg, isMsg := e.(*kafka.Message); isMsg && msg.TopicPartition.Error != nil {
			logger.Warnf("[mq] late delivery failure on topic %s: %v", topic, msg.TopicPartition.Error)
		}
	case <-time.After(30 * time.Second):
		logger.Warnf("[mq] delivery event never arrived for topic %s", topic)
	}
}
