// Package pubsub implements a redis-streams work queue used to hand
// validation requests off to an independent consumer process and collect
// their results, backing the Council.RequestValidation contract's
// no-synchronous-callback rule with a real queue instead of a goroutine.
package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/TomTaehoonKim/kroma/util/containers"
	"github.com/TomTaehoonKim/kroma/util/stopwaiter"
)

// defaultGroup is the consumer group name used when callers don't need more
// than one logical queue per stream.
const defaultGroup = "default"

const messageKey = "value"

func resultKey(group, id string) string {
	return fmt.Sprintf("%s:result:%s", group, id)
}

// Value is the constraint on types carried through the queue: they must be
// able to round-trip through a single redis field value.
type Value[T any] interface {
	Marshal() any
	Unmarshal(val any) (T, error)
}

// ProducerConfig configures a Producer.
type ProducerConfig struct {
	RedisURL             string
	RedisStream          string
	RedisGroup           string
	CheckPendingInterval time.Duration
	KeepAliveTimeout     time.Duration
	CheckResultInterval  time.Duration
	ResultTTL            time.Duration
}

func (c *ProducerConfig) withDefaults() ProducerConfig {
	out := *c
	if out.RedisGroup == "" {
		out.RedisGroup = defaultGroup
	}
	if out.CheckPendingInterval == 0 {
		out.CheckPendingInterval = 5 * time.Second
	}
	if out.KeepAliveTimeout == 0 {
		out.KeepAliveTimeout = 30 * time.Second
	}
	if out.CheckResultInterval == 0 {
		out.CheckResultInterval = 100 * time.Millisecond
	}
	if out.ResultTTL == 0 {
		out.ResultTTL = time.Hour
	}
	return out
}

// Producer publishes values onto a redis stream and resolves a Promise per
// value once a consumer has recorded a result for it.
type Producer[T Value[T]] struct {
	stopwaiter.StopWaiter

	cfg    ProducerConfig
	client redis.UniversalClient

	promisesMu sync.Mutex
	promises   map[string]*containers.Promise[T]
}

// NewProducer constructs a Producer bound to cfg.RedisURL. It does not start
// any background goroutines until Start is called.
func NewProducer[T Value[T]](cfg *ProducerConfig) (*Producer[T], error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return &Producer[T]{
		cfg:      cfg.withDefaults(),
		client:   redis.NewClient(opts),
		promises: make(map[string]*containers.Promise[T]),
	}, nil
}

// Start launches the producer's background result-polling and
// pending-message reclamation loops.
func (p *Producer[T]) Start(ctx context.Context) {
	p.StopWaiter.Start(ctx)
	p.StopWaiter.LaunchThread(p.pollResults)
	p.StopWaiter.LaunchThread(p.reapPending)
}

// Produce appends value to the stream and returns a Promise that resolves
// once some consumer calls SetResult for the resulting message ID.
func (p *Producer[T]) Produce(ctx context.Context, value T) (*containers.Promise[T], error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.cfg.RedisStream,
		Values: map[string]any{messageKey: value.Marshal()},
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "publishing message")
	}
	promise := containers.NewPromise[T]()
	p.promisesMu.Lock()
	p.promises[id] = promise
	p.promisesMu.Unlock()
	return promise, nil
}

func (p *Producer[T]) pollResults(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckResultInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkResults(ctx)
		}
	}
}

func (p *Producer[T]) checkResults(ctx context.Context) {
	p.promisesMu.Lock()
	ids := make([]string, 0, len(p.promises))
	for id := range p.promises {
		ids = append(ids, id)
	}
	p.promisesMu.Unlock()
	for _, id := range ids {
		raw, err := p.client.Get(ctx, resultKey(p.cfg.RedisGroup, id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			logrus.WithError(err).WithField("id", id).Warn("checking pubsub result")
			continue
		}
		var zero T
		val, err := zero.Unmarshal(raw)
		p.promisesMu.Lock()
		promise, ok := p.promises[id]
		if ok {
			delete(p.promises, id)
		}
		p.promisesMu.Unlock()
		if !ok {
			continue
		}
		if err != nil {
			promise.SetError(err)
			continue
		}
		promise.SetResult(val)
	}
}

// reapPending re-delivers messages that have sat unacknowledged for longer
// than KeepAliveTimeout, under the assumption their consumer died.
func (p *Producer[T]) reapPending(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckPendingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reclaimStale(ctx)
		}
	}
}

func (p *Producer[T]) reclaimStale(ctx context.Context) {
	claimed, _, err := p.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   p.cfg.RedisStream,
		Group:    p.cfg.RedisGroup,
		Consumer: "producer-reaper",
		MinIdle:  p.cfg.KeepAliveTimeout,
		Start:    "0",
		Count:    64,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logrus.WithError(err).Warn("reclaiming stale pubsub messages")
		return
	}
	for _, msg := range claimed {
		if err := p.client.XAck(ctx, p.cfg.RedisStream, p.cfg.RedisGroup, msg.ID).Err(); err != nil {
			logrus.WithError(err).WithField("id", msg.ID).Warn("acking stale message after reclaim")
			continue
		}
		if _, err := p.client.XAdd(ctx, &redis.XAddArgs{
			Stream: p.cfg.RedisStream,
			Values: msg.Values,
		}).Result(); err != nil {
			logrus.WithError(err).WithField("id", msg.ID).Warn("re-publishing stale message")
		}
	}
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	RedisURL          string
	RedisStream       string
	RedisGroup        string
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	ResultTTL         time.Duration
}

func (c *ConsumerConfig) withDefaults() ConsumerConfig {
	out := *c
	if out.RedisGroup == "" {
		out.RedisGroup = defaultGroup
	}
	if out.KeepAliveInterval == 0 {
		out.KeepAliveInterval = 5 * time.Second
	}
	if out.KeepAliveTimeout == 0 {
		out.KeepAliveTimeout = 30 * time.Second
	}
	if out.ResultTTL == 0 {
		out.ResultTTL = time.Hour
	}
	return out
}

// Result is one message handed back by Consume.
type Result[T any] struct {
	ID    string
	Value T
}

// Consumer reads messages from a redis stream consumer group, claiming
// abandoned pending entries from dead peers as it goes.
type Consumer[T Value[T]] struct {
	stopwaiter.StopWaiter

	cfg    ConsumerConfig
	client redis.UniversalClient
	name   string
}

// NewConsumer constructs a Consumer with a unique name within its group. It
// does not create the stream or the consumer group.
func NewConsumer[T Value[T]](ctx context.Context, cfg *ConsumerConfig) (*Consumer[T], error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	c := &Consumer[T]{
		cfg:    cfg.withDefaults(),
		client: redis.NewClient(opts),
		name:   uuid.NewString(),
	}
	return c, nil
}

// Start launches the consumer's background claim-reaping loop.
func (c *Consumer[T]) Start(ctx context.Context) {
	c.StopWaiter.Start(ctx)
	c.StopWaiter.LaunchThread(c.claimAbandoned)
}

func (c *Consumer[T]) claimAbandoned(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   c.cfg.RedisStream,
				Group:    c.cfg.RedisGroup,
				Consumer: c.name,
				MinIdle:  c.cfg.KeepAliveTimeout,
				Start:    "0",
				Count:    64,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				logrus.WithError(err).Warn("claiming abandoned pubsub messages")
			}
		}
	}
}

// Consume waits up to a millisecond for a message that has not yet been
// delivered to any consumer in the group and returns it, or returns nil, nil
// when none arrives in that time. Entries this consumer has claimed from
// dead peers stay in its pending list and are not returned here.
func (c *Consumer[T]) Consume(ctx context.Context) (*Result[T], error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.RedisGroup,
		Consumer: c.name,
		Streams:  []string{c.cfg.RedisStream, ">"},
		Count:    1,
		Block:    time.Millisecond,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values[messageKey]
			if !ok {
				continue
			}
			var zero T
			val, err := zero.Unmarshal(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "unmarshaling message %s", msg.ID)
			}
			return &Result[T]{ID: msg.ID, Value: val}, nil
		}
	}
	return nil, nil
}

// ACK acknowledges id, removing it from the consumer group's pending list.
func (c *Consumer[T]) ACK(ctx context.Context, id string) error {
	return c.client.XAck(ctx, c.cfg.RedisStream, c.cfg.RedisGroup, id).Err()
}

// SetResult records the result for id so the originating Producer's
// Promise can resolve.
func (c *Consumer[T]) SetResult(ctx context.Context, id string, value T) error {
	return c.client.Set(ctx, resultKey(c.cfg.RedisGroup, id), fmt.Sprint(value.Marshal()), c.cfg.ResultTTL).Err()
}
