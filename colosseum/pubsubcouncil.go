package colosseum

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/TomTaehoonKim/kroma/pubsub"
)

// approvalJob is the unit of work enqueued for an independent security
// council validator process. As a request it carries only the payload; as a
// result (set via a Consumer's SetResult) Approved additionally carries the
// council's vote outcome.
type approvalJob struct {
	Request  ApprovalRequest
	Approved bool
}

// Marshal satisfies pubsub.Value.
func (j *approvalJob) Marshal() any {
	b, err := json.Marshal(j)
	if err != nil {
		return ""
	}
	return string(b)
}

// Unmarshal satisfies pubsub.Value. The receiver is unused; a fresh instance
// is always built from val.
func (j *approvalJob) Unmarshal(val any) (*approvalJob, error) {
	s, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("pubsubcouncil: unexpected result type %T", val)
	}
	var out approvalJob
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PubSubCouncil is the production Council (spec §5/§9): RequestValidation
// enqueues the approval payload onto a redis stream and returns immediately,
// deferring callback invocation until an independent consumer process calls
// SetResult for that request. Each request gets one background goroutine
// that awaits the request's promise, which honors the interface's
// no-synchronous-callback rule.
type PubSubCouncil struct {
	producer *pubsub.Producer[*approvalJob]
}

// NewPubSubCouncil constructs a PubSubCouncil backed by producer, which must
// already have Start called on it.
func NewPubSubCouncil(producer *pubsub.Producer[*approvalJob]) *PubSubCouncil {
	return &PubSubCouncil{producer: producer}
}

// NewPubSubCouncilFromConfig builds and starts the redis producer itself,
// for callers outside this package that cannot name approvalJob directly.
func NewPubSubCouncilFromConfig(ctx context.Context, cfg *pubsub.ProducerConfig) (*PubSubCouncil, error) {
	producer, err := pubsub.NewProducer[*approvalJob](cfg)
	if err != nil {
		return nil, errors.Wrap(err, "constructing approval producer")
	}
	producer.Start(ctx)
	return NewPubSubCouncil(producer), nil
}

// RunApprovalConsumerFromConfig builds, starts, and drives an approval
// consumer for callers outside this package, blocking until consuming,
// acking, or setting a result returns an error (including once ctx is
// done). An error from decide counts as a rejection and does not stop the
// loop.
func RunApprovalConsumerFromConfig(ctx context.Context, cfg *pubsub.ConsumerConfig, decide func(ctx context.Context, req ApprovalRequest) (bool, error)) error {
	consumer, err := pubsub.NewConsumer[*approvalJob](ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "constructing approval consumer")
	}
	consumer.Start(ctx)
	defer consumer.StopAndWait()
	return RunApprovalConsumer(ctx, consumer, decide)
}

// RequestValidation enqueues payload and, once the council's consumer
// process reports an approving result via the returned promise, invokes
// callback asynchronously. A rejection or a failed await never invokes it.
func (c *PubSubCouncil) RequestValidation(ctx context.Context, payload ApprovalRequest, callback func(ctx context.Context) error) error {
	promise, err := c.producer.Produce(ctx, &approvalJob{Request: payload})
	if err != nil {
		return errors.Wrap(err, "enqueueing approval request")
	}
	go func() {
		result, err := promise.Await(context.Background())
		if err != nil || !result.Approved {
			return
		}
		_ = callback(context.Background())
	}()
	return nil
}

// RunApprovalConsumer drives a single consumer's read-decide-ack loop until
// ctx is done: each job is handed to decide, whose verdict is both ACKed on
// the stream and reported back to the waiting Producer via SetResult.
func RunApprovalConsumer(ctx context.Context, consumer *pubsub.Consumer[*approvalJob], decide func(ctx context.Context, req ApprovalRequest) (bool, error)) error {
	for {
		res, err := consumer.Consume(ctx)
		if err != nil {
			return err
		}
		if res == nil {
			continue
		}
		approved, err := decide(ctx, res.Value.Request)
		if err != nil {
			approved = false
		}
		if ackErr := consumer.ACK(ctx, res.ID); ackErr != nil {
			return errors.Wrap(ackErr, "acking approval job")
		}
		if setErr := consumer.SetResult(ctx, res.ID, &approvalJob{Request: res.Value.Request, Approved: approved}); setErr != nil {
			return errors.Wrap(setErr, "setting approval result")
		}
	}
}
