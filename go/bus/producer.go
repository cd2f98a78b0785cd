package bus

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.gazette.dev/core/broker/client"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/labels"
	"go.gazette.dev/core/message"

	"github.com/fspswitch/transfers/go/transfer"
)

// Producer publishes envelopes onto switch topics. Produces are
// at-least-once: a Produce which returns nil has been durably appended.
type Producer interface {
	// ProduceGeneral publishes |env| onto the shared topic of |action|.
	ProduceGeneral(ctx context.Context, action string, env *transfer.Envelope) error
	// ProduceParticipant publishes |env| onto the per-participant
	// position topic of |action|.
	ProduceParticipant(ctx context.Context, participant, action string, env *transfer.Envelope) error
}

// JournalProducer is a Producer over gazette journals.
type JournalProducer struct {
	pub *message.Publisher
}

var _ Producer = (*JournalProducer)(nil)

// NewJournalProducer builds a JournalProducer over |rjc|. The underlying
// append service and publisher are shared and thread-safe.
func NewJournalProducer(ctx context.Context, rjc pb.RoutedJournalClient) *JournalProducer {
	var ajc = client.NewAppendService(ctx, rjc)
	return &JournalProducer{pub: message.NewPublisher(ajc, nil)}
}

// ProduceGeneral implements Producer.
func (p *JournalProducer) ProduceGeneral(ctx context.Context, action string, env *transfer.Envelope) error {
	return p.produce(GeneralTopic(action), env)
}

// ProduceParticipant implements Producer.
func (p *JournalProducer) ProduceParticipant(ctx context.Context, participant, action string, env *transfer.Envelope) error {
	return p.produce(PositionTopic(participant, action), env)
}

func (p *JournalProducer) produce(topic pb.Journal, env *transfer.Envelope) error {
	var aa, err = p.pub.PublishCommitted(topicMapping(topic), env)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	<-aa.Done()
	if err = aa.Err(); err != nil {
		return fmt.Errorf("appending to %s: %w", topic, err)
	}

	log.WithFields(log.Fields{
		"topic":  topic,
		"id":     env.ID,
		"type":   env.Metadata.Event.Type,
		"action": env.Metadata.Event.Action,
		"status": env.Metadata.Event.State.Status,
	}).Debug("produced envelope")
	return nil
}

// topicMapping returns a MappingFunc which maps every message onto the
// single |topic| journal, JSON-framed.
func topicMapping(topic pb.Journal) message.MappingFunc {
	return func(message.Mappable) (pb.Journal, string, error) {
		return topic, labels.ContentType_JSONLines, nil
	}
}
