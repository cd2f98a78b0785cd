// Package handlers implements the transfer core's coordinators: the
// prepare and fulfil pipelines, the transfer-event router, and the
// registrar which binds them to bus topics. Pipelines return explicit
// Outcome variants; a single Dispatch translates an Outcome into the
// commit-then-produce discipline.
package handlers

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/fspswitch/transfers/go/bus"
	"github.com/fspswitch/transfers/go/transfer"
)

// Kind discriminates pipeline outcomes.
type Kind int

const (
	// KindOk: the pipeline reached a successful terminal state (which may
	// be a deliberate no-op).
	KindOk Kind = iota
	// KindProtocolFailure: the request violated the protocol; a failure
	// notification is produced and the offset committed.
	KindProtocolFailure
	// KindInternal: a store or internal fault; reported as failure 2001,
	// offset committed, not retried at the bus layer.
	KindInternal
	// KindFatal: processing must abort without committing; the message
	// will be redelivered.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindProtocolFailure:
		return "protocol-failure"
	case KindInternal:
		return "internal"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is a downstream envelope to produce once the offset is committed.
type Event struct {
	// Participant routes to the participant's position topic when set.
	Participant string
	// TopicAction selects the topic: the position action for participant
	// events, or the shared topic name otherwise.
	TopicAction string
	// Envelope to produce.
	Envelope *transfer.Envelope
}

// NotificationEvent routes |env| to the shared notification topic.
func NotificationEvent(env *transfer.Envelope) Event {
	return Event{TopicAction: bus.GeneralNotification, Envelope: env}
}

// PositionEvent routes |env| to the participant's position topic of |action|.
func PositionEvent(participant, action string, env *transfer.Envelope) Event {
	return Event{Participant: participant, TopicAction: action, Envelope: env}
}

// Outcome is the terminal disposition of one handled message.
type Outcome struct {
	Kind        Kind
	Code        int
	Description string
	// Err is set only for KindFatal.
	Err error
	// Events to produce after the offset commit.
	Events []Event
}

// Handler processes one envelope into a terminal Outcome.
type Handler interface {
	Handle(ctx context.Context, env *transfer.Envelope) Outcome
}

// Dispatch applies |out|: commit the offset, then produce its events in
// order. Produce is at-least-once and runs strictly after the commit;
// redelivery after a produce fault re-produces only the downstream event.
func Dispatch(ctx context.Context, handler string, out Outcome, commit func() error, producer bus.Producer) error {
	messagesTotal.WithLabelValues(handler, out.Kind.String(), strconv.Itoa(out.Code)).Inc()

	if out.Kind == KindFatal {
		return out.Err
	}
	if out.Kind != KindOk {
		log.WithFields(log.Fields{
			"handler": handler,
			"outcome": out.Kind.String(),
			"code":    out.Code,
			"reason":  out.Description,
		}).Warn("message failed processing")
	}

	if err := commit(); err != nil {
		return fmt.Errorf("committing offset: %w", err)
	}
	for _, ev := range out.Events {
		var err error
		if ev.Participant != "" {
			err = producer.ProduceParticipant(ctx, ev.Participant, ev.TopicAction, ev.Envelope)
		} else {
			err = producer.ProduceGeneral(ctx, ev.TopicAction, ev.Envelope)
		}
		if err != nil {
			return err
		}
		eventsTotal.WithLabelValues(handler, ev.TopicAction).Inc()
	}
	return nil
}

// failure builds the Outcome reporting a protocol failure of |req| back to
// its originator via the notification topic.
func failure(req *transfer.Envelope, action string, code int, detail string, extensions transfer.ExtensionList) Outcome {
	var kind = KindProtocolFailure
	if code == transfer.CodeInternal {
		kind = KindInternal
	}
	return Outcome{
		Kind:        kind,
		Code:        code,
		Description: detail,
		Events: []Event{
			NotificationEvent(transfer.NewFailure(req, action, code, detail, extensions)),
		},
	}
}
