// Package kafka carries ingestion tasks from the upload endpoint to the pipeline.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"juris-rag-go/internal/config"
	"juris-rag-go/pkg/log"
	"juris-rag-go/pkg/tasks"
)

// TaskProcessor processes one ingestion task. The Kafka consumer does not
// depend on the concrete pipeline.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestionTask) error
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer publishes ingestion tasks.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the configured topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// ProduceIngestionTask publishes task keyed by its jurisdiction, so tasks for
// one code land on one partition in order.
func (p *Producer) ProduceIngestionTask(ctx context.Context, task tasks.IngestionTask) error {
	value, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ISOCode),
		Value: value,
	})
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Ping dials the first reachable broker.
func Ping(ctx context.Context, cfg config.KafkaConfig) error {
	var lastErr error = errors.New("no brokers configured")
	for _, addr := range brokers(cfg) {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return lastErr
}

// AttemptCounter tracks how often a message has failed, across restarts.
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisAttempts struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAttemptCounter keeps attempt counts in Redis for ttl.
func NewRedisAttemptCounter(rdb *redis.Client, ttl time.Duration) AttemptCounter {
	return &redisAttempts{rdb: rdb, ttl: ttl}
}

func (a *redisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, a.ttl).Err()
	return n, nil
}

func (a *redisAttempts) Reset(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, key).Err()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds ingestion tasks to a TaskProcessor. A message is committed
// once it succeeds, is undecodable, or has failed maxAttempts times.
type Consumer struct {
	reader      messageReader
	processor   TaskProcessor
	attempts    AttemptCounter
	maxAttempts int
	retryDelay  time.Duration
}

// NewConsumer creates a consumer group reader for the configured topic.
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(r, processor, attempts, cfg.MaxAttempts, 5*time.Second)
}

func newConsumer(r messageReader, processor TaskProcessor, attempts AttemptCounter, maxAttempts int, retryDelay time.Duration) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Consumer{
		reader:      r,
		processor:   processor,
		attempts:    attempts,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Run consumes until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info("[Consumer] started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("[Consumer] close reader: %v", err)
		}
	}()
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("[Consumer] stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// handle processes m until it can be committed. It returns an error only when
// the commit itself fails or ctx ends.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	log.Infof("[Consumer] received message: partition %d offset %d", m.Partition, m.Offset)

	var task tasks.IngestionTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("[Consumer] undecodable message, skipping: %v, value: %s", err, string(m.Value))
		return c.commit(ctx, m)
	}

	key := fmt.Sprintf("kafka:attempts:%s:%d:%d", m.Topic, m.Partition, m.Offset)
	var local int64
	for {
		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("[Consumer] task done: %s (%s)", task.FileName, task.ISOCode)
			_ = c.attempts.Reset(ctx, key)
			return c.commit(ctx, m)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("[Consumer] task failed: %s (%s): %v", task.FileName, task.ISOCode, err)

		local++
		n, incErr := c.attempts.Incr(ctx, key)
		if incErr != nil {
			log.Warnf("[Consumer] attempt counter unavailable: %v", incErr)
		}
		if n < local {
			n = local
		}
		if n >= int64(c.maxAttempts) {
			log.Errorf("[Consumer] task failed %d times, giving up: %s", n, task.FileName)
			_ = c.attempts.Reset(ctx, key)
			return c.commit(ctx, m)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}
