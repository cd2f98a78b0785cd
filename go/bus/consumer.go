package bus

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/broker/client"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/message"
	"go.gazette.dev/core/task"

	"github.com/fspswitch/transfers/go/transfer"
)

// MessageFunc handles one consumed envelope. |commit| durably records the
// envelope's offset; on manual-commit topics the handler invokes it once a
// terminal outcome is reached, always before producing downstream. A
// returned error is fatal to the consumer: the offset is not committed and
// the message is redelivered on restart.
type MessageFunc func(ctx context.Context, env *transfer.Envelope, commit func() error) error

// OffsetStore checkpoints per-topic consumption offsets.
type OffsetStore interface {
	TopicOffset(ctx context.Context, topic string) (int64, error)
	CommitTopicOffset(ctx context.Context, topic string, offset int64) error
}

// Consumer binds a handler to one topic. Messages of the topic are
// processed strictly sequentially; distinct consumers run concurrently.
type Consumer struct {
	// Topic consumed by this Consumer.
	Topic pb.Journal
	// ClientID identifies this consumer to the bus; it equals the topic name.
	ClientID string
	// Config keyed from (CONSUMER, TRANSFER, <ACTION>).
	Config ConsumerConfig
	// RJC is the shared broker client.
	RJC pb.RoutedJournalClient
	// Offsets is the checkpoint store.
	Offsets OffsetStore
	// Handle is invoked for every consumed envelope.
	Handle MessageFunc
}

// QueueTasks queues the consumer's run loop onto |tasks|.
func (c *Consumer) QueueTasks(tasks *task.Group) {
	tasks.Queue(c.ClientID, func() error { return c.Run(tasks.Context()) })
}

// Run consumes the topic from its committed offset until |ctx| is
// cancelled, or a handler or bus dispatch error makes it exit fatally.
func (c *Consumer) Run(ctx context.Context) error {
	var offset, err = c.Offsets.TopicOffset(ctx, c.Topic.String())
	if err != nil {
		return fmt.Errorf("restoring offset of %s: %w", c.Topic, err)
	}

	log.WithFields(log.Fields{
		"clientID": c.ClientID,
		"topic":    c.Topic,
		"offset":   offset,
		"group":    c.Config.Group,
	}).Info("consumer starting")

	var rr = client.NewRetryReader(ctx, c.RJC, pb.ReadRequest{
		Journal: c.Topic,
		Offset:  offset,
		Block:   true,
	})
	var it = message.NewReadUncommittedIter(rr, func(*pb.JournalSpec) (message.Message, error) {
		return new(transfer.Envelope), nil
	})

	for {
		var env, err = it.Next()
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			// A bus dispatch error is fatal; restart policy is the
			// supervisor's concern.
			return fmt.Errorf("reading %s: %w", c.Topic, err)
		}

		if message.GetFlags(env.Message.GetUUID()) == message.Flag_ACK_TXN {
			continue
		}
		var (
			msg = env.Message.(*transfer.Envelope)
			end = env.End
		)

		var commit func() error
		if c.Config.AutoCommit {
			commit = func() error { return nil } // Committed by the pump below.
		} else {
			commit = func() error {
				return c.Offsets.CommitTopicOffset(ctx, c.Topic.String(), end)
			}
		}

		if err = c.Handle(ctx, msg, commit); err != nil {
			return fmt.Errorf("handling message of %s: %w", c.Topic, err)
		}
		if c.Config.AutoCommit {
			if err = c.Offsets.CommitTopicOffset(ctx, c.Topic.String(), end); err != nil {
				return err
			}
		}
	}
}
